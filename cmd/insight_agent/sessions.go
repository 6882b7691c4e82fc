package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/anish877/phrase-score-insight-sub002/internal/observability"
	"github.com/anish877/phrase-score-insight-sub002/internal/progress"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List an owner's active analysis sessions",
	Long:  `Lists incomplete analyses with recent activity for an owner, most recent first. Stale sessions are hidden but stay resumable by key.`,
	RunE:  runSessions,
}

var (
	sessionsConfigPath string
	sessionsOwnerID    int64
)

func init() {
	sessionsCmd.Flags().StringVar(&sessionsConfigPath, "config", "", "Path to YAML config file")
	sessionsCmd.Flags().Int64Var(&sessionsOwnerID, "owner", 0, "Owner ID (required)")
	_ = sessionsCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(_ *cobra.Command, _ []string) error {
	ctx := context.Background()

	eng, err := setupEngine(ctx, sessionsConfigPath)
	if err != nil {
		return err
	}
	defer eng.close()

	registry := progress.NewRegistry(eng.store, eng.cfg.StalenessWindow)
	sessions, err := registry.ListForOwner(ctx, sessionsOwnerID)
	if err != nil {
		return err
	}

	observability.NewPrinter(os.Stdout).PrintSessions(sessions)
	return nil
}
