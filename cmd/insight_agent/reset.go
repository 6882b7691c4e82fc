package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete stored progress for a domain",
	Long: `Deletes stored analysis progress. By default only the unversioned line
is removed; --version-id targets one snapshot and --all-versions wipes
every line for the domain.`,
	RunE: runReset,
}

var (
	resetConfigPath  string
	resetDomainID    int64
	resetVersionID   int64
	resetAllVersions bool
)

func init() {
	resetCmd.Flags().StringVar(&resetConfigPath, "config", "", "Path to YAML config file")
	resetCmd.Flags().Int64Var(&resetDomainID, "domain-id", 0, "Domain ID (required)")
	resetCmd.Flags().Int64Var(&resetVersionID, "version-id", 0, "Version snapshot to delete")
	resetCmd.Flags().BoolVar(&resetAllVersions, "all-versions", false, "Delete every line for the domain")
	_ = resetCmd.MarkFlagRequired("domain-id")
	rootCmd.AddCommand(resetCmd)
}

func runReset(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	if resetAllVersions && resetVersionID > 0 {
		return fmt.Errorf("--version-id and --all-versions are mutually exclusive")
	}

	eng, err := setupEngine(ctx, resetConfigPath)
	if err != nil {
		return err
	}
	defer eng.close()

	scope := progress.DeleteScope{AllVersions: resetAllVersions}
	if resetVersionID > 0 {
		scope.VersionID = &resetVersionID
	}

	if err := eng.store.Delete(ctx, resetDomainID, scope); err != nil {
		return err
	}

	fmt.Printf("Deleted progress for domain %d\n", resetDomainID)
	return nil
}
