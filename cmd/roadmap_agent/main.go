// Package main provides the entry point for the roadmap agent CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "roadmap_agent",
	Short: "Learning Roadmap Agent",
	Long:  "Roadmap Agent turns a free-text career goal into a staged learning roadmap with matched posts and courses.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
