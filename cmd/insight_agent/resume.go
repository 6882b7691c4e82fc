package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/anish877/phrase-score-insight-sub002/internal/observability"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Show where an interrupted analysis would resume",
	Long: `Validates the stored progress for a domain and prints the step the
analysis would continue from. If stored data does not substantiate the
recorded step, the record is corrected downward and the correction is
persisted.`,
	RunE: runResume,
}

var (
	resumeConfigPath string
	resumeDomainID   int64
	resumeVersionID  int64
)

func init() {
	resumeCmd.Flags().StringVar(&resumeConfigPath, "config", "", "Path to YAML config file")
	resumeCmd.Flags().Int64Var(&resumeDomainID, "domain-id", 0, "Domain ID (required)")
	resumeCmd.Flags().Int64Var(&resumeVersionID, "version-id", 0, "Version snapshot (optional)")
	_ = resumeCmd.MarkFlagRequired("domain-id")
	rootCmd.AddCommand(resumeCmd)
}

func runResume(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	eng, err := setupEngine(ctx, resumeConfigPath)
	if err != nil {
		return err
	}
	defer eng.close()

	coordinator := progress.NewCoordinator(eng.store)
	result, err := coordinator.Resume(ctx, subjectKeyFromFlags(resumeDomainID, resumeVersionID))
	if err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintResume(result)
	return nil
}
