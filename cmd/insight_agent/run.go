package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anish877/phrase-score-insight-sub002/internal/llm"
	"github.com/anish877/phrase-score-insight-sub002/internal/observability"
	"github.com/anish877/phrase-score-insight-sub002/internal/pipeline"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Run the visibility analysis pipeline for a domain",
	Long: `Drives the analysis for a domain from wherever it can safely resume:
context extraction -> keyword discovery -> phrase generation -> model querying.
Progress is saved after every stage; rerunning a finished analysis is a no-op.`,
	RunE: runPipelineCmd,
}

var (
	runConfigPath string
	runDomainID   int64
	runVersionID  int64
	runURL        string
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to YAML config file")
	runCommand.Flags().Int64Var(&runDomainID, "domain-id", 0, "Domain ID to analyze (required)")
	runCommand.Flags().Int64Var(&runVersionID, "version-id", 0, "Version snapshot to analyze (optional)")
	runCommand.Flags().StringVar(&runURL, "url", "", "Domain URL (required for a fresh analysis)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed stage output")
	_ = runCommand.MarkFlagRequired("domain-id")
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	eng, err := setupEngine(ctx, runConfigPath)
	if err != nil {
		return err
	}
	defer eng.close()

	if eng.cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), eng.cfg.APIKey)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	defer client.Close() //nolint:errcheck

	key := subjectKeyFromFlags(runDomainID, runVersionID)

	stages := pipeline.NewGeminiStages(client)
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Store:     eng.store,
		Extractor: pipeline.WebExtractor{},
		Keywords:  stages,
		Phrases:   stages,
		Querier:   stages,
		Notify: func(ev pipeline.Event) {
			if ev.Total > 0 {
				fmt.Printf("[%s] %s (%d/%d)\n", ev.Stage, ev.Message, ev.Done, ev.Total)
			} else {
				fmt.Printf("[%s] %s\n", ev.Stage, ev.Message)
			}
		},
	})

	rec, err := runner.Run(ctx, key, runURL)
	if err != nil {
		return err
	}

	if runVerbose {
		printBundle(rec.StepData)
	}

	fmt.Printf("Analysis for %s finished at %s\n", key.String(), rec.CurrentStep.String())
	return nil
}

// printBundle renders the full stage output in verbose mode.
func printBundle(bundle *progress.StageBundle) {
	if bundle == nil {
		return
	}
	printer := observability.NewPrinter(os.Stdout)
	printer.PrintBrandContext(bundle.DomainURL, bundle.BrandContext)
	printer.PrintKeywords(bundle.SelectedKeywords)
	printer.PrintPhrases(bundle.GeneratedPhrases)

	if len(bundle.QueryStats) > 0 {
		var stats pipeline.QueryStats
		if err := json.Unmarshal(bundle.QueryStats, &stats); err == nil {
			printer.PrintStats(&stats)
		}
	}
}

func subjectKeyFromFlags(domainID, versionID int64) progress.SubjectKey {
	if versionID > 0 {
		return progress.NewVersionedKey(domainID, versionID)
	}
	return progress.NewSubjectKey(domainID)
}
