package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/anish877/phrase-score-insight-sub002/internal/config"
	"github.com/anish877/phrase-score-insight-sub002/internal/db"
	"github.com/anish877/phrase-score-insight-sub002/internal/llm"
	"github.com/anish877/phrase-score-insight-sub002/internal/pipeline"
	"github.com/anish877/phrase-score-insight-sub002/internal/server"
)

var (
	servePort       int
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes progress, resume, session and analysis endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (defaults to PORT env var or 8080)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	eng, err := setupEngine(ctx, serveConfigPath)
	if err != nil {
		return err
	}

	if eng.cfg.APIKey == "" {
		eng.close()
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), eng.cfg.APIKey)
	if err != nil {
		eng.close()
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		eng.close()
		return err
	}

	port := servePort
	if !cmd.Flags().Changed("port") {
		port = eng.cfg.Port
	}

	stages := pipeline.NewGeminiStages(client)
	srv, err := server.New(server.Config{
		Port:      port,
		Engine:    eng.cfg,
		JWT:       jwtConfig,
		Store:     db.NewProgressStore(eng.database),
		Ownership: eng.database,
		Stages: server.Stages{
			Extractor: pipeline.WebExtractor{},
			Keywords:  stages,
			Phrases:   stages,
			Querier:   stages,
		},
	})
	if err != nil {
		eng.close()
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv.OnShutdown(eng.close)
	srv.OnShutdown(func() { _ = client.Close() })

	return srv.Start()
}
