package main

import (
	"context"
	"fmt"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/search"
)

// runtime holds the live collaborators built from configuration.
type runtime struct {
	services pipeline.Services
	client   *llm.GeminiClient
	database *db.DB
}

func (r *runtime) Close() {
	if r.client != nil {
		_ = r.client.Close()
	}
	if r.database != nil {
		r.database.Close()
	}
}

// llmConfig applies the model override to the default tier mapping.
func llmConfig(cfg config.Config) *llm.Config {
	c := llm.DefaultConfig()
	if cfg.Model != "" {
		c = c.WithAllTiers(cfg.Model)
	}
	return c
}

// newRuntime connects the generation client, web search and database.
// Search and database are optional: missing credentials or a failed
// connection leave them nil and the pipeline degrades.
func newRuntime(ctx context.Context, cfg config.Config, log *logger.Logger) (*runtime, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	client, err := llm.NewClient(ctx, llmConfig(cfg), cfg.APIKey)
	if err != nil {
		return nil, err
	}

	rt := &runtime{client: client}
	rt.services = pipeline.Services{
		Invoker:  llm.NewRetryingInvoker(client, llm.WithLogger(log), llm.WithMaxRetries(cfg.Retries())),
		Embedder: client,
		Logger:   log,
	}

	searcher, err := newSearcher(ctx, cfg)
	if err != nil {
		rt.Close()
		return nil, err
	}
	if searcher != nil {
		rt.services.Searcher = searcher
	} else {
		log.Warn("web search not configured; corpus and course search will be skipped", "backend", cfg.SearchBackend)
	}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn("failed to connect to database; post matching disabled", "error", err)
		} else if err := database.EnsureRunsTable(ctx); err != nil {
			log.Warn("failed to prepare run records; continuing without them", "error", err)
			rt.attachStore(database, false)
		} else {
			rt.attachStore(database, true)
		}
	} else {
		log.Warn("DATABASE_URL not set; post matching disabled")
	}

	return rt, nil
}

func (r *runtime) attachStore(database *db.DB, recordRuns bool) {
	r.database = database
	r.services.Index = database
	r.services.Posts = database
	if recordRuns {
		r.services.Runs = database
	}
}

// newSearcher returns nil without error when the chosen backend lacks credentials.
func newSearcher(ctx context.Context, cfg config.Config) (search.WebSearcher, error) {
	switch cfg.SearchBackend {
	case config.SearchBackendGoogle:
		if cfg.GoogleSearchAPIKey == "" || cfg.GoogleSearchCX == "" {
			return nil, nil
		}
		return search.NewGoogleSearcher(ctx, cfg.GoogleSearchAPIKey, cfg.GoogleSearchCX)
	case config.SearchBackendTavily, "":
		if cfg.TavilyAPIKey == "" {
			return nil, nil
		}
		return search.NewTavilySearcher(cfg.TavilyAPIKey, "", nil)
	default:
		return nil, fmt.Errorf("unknown search backend %q", cfg.SearchBackend)
	}
}
