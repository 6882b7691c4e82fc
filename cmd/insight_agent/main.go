// Package main provides the entry point for the domain visibility
// analysis agent.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "insight_agent",
	Short: "Domain visibility analysis engine",
	Long:  "Analyzes how visible a domain is in generative model answers: extracts brand context, discovers keywords, generates query phrases, queries models and scores mentions. Progress is persisted after every stage and any interrupted analysis resumes from its last verified step.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
