package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/postsearch"
)

var searchPostsCommand = &cobra.Command{
	Use:   "search-posts",
	Short: "Search stored posts by keyword or semantic similarity",
	RunE:  runSearchPostsCmd,
}

var (
	searchConfigPath  string
	searchQuery       string
	searchLimit       int
	searchAdvanced    bool
	searchDatabaseURL string
	searchAPIKey      string
)

func init() {
	searchPostsCommand.Flags().StringVar(&searchConfigPath, "config", "", "Path to config.json file")
	searchPostsCommand.Flags().StringVarP(&searchQuery, "query", "q", "", "Search text")
	searchPostsCommand.Flags().IntVarP(&searchLimit, "limit", "l", postsearch.DefaultLimit, "Maximum number of posts")
	searchPostsCommand.Flags().BoolVar(&searchAdvanced, "advanced", false, "Use semantic search (requires a Gemini API key)")
	searchPostsCommand.Flags().StringVar(&searchDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	searchPostsCommand.Flags().StringVar(&searchAPIKey, "api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	_ = searchPostsCommand.MarkFlagRequired("query")

	rootCmd.AddCommand(searchPostsCommand)
}

func runSearchPostsCmd(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.Resolve(searchConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cmd.Flags().Changed("db-url") {
		cfg.DatabaseURL = searchDatabaseURL
	}
	if cmd.Flags().Changed("api-key") {
		cfg.APIKey = searchAPIKey
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL environment variable or --db-url flag is required")
	}
	if searchAdvanced && cfg.APIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required for --advanced")
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return err
	}
	defer log.Sync()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	var svc *postsearch.Service
	if searchAdvanced {
		client, err := llm.NewClient(ctx, llmConfig(cfg), cfg.APIKey)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		svc = postsearch.NewService(database, client, database, log)
	} else {
		svc = postsearch.NewService(database, nil, nil, log)
	}

	posts, err := svc.Search(ctx, postsearch.Request{Query: searchQuery, Limit: searchLimit, AdvancedMode: searchAdvanced})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(posts)
}
