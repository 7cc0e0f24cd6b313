package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/config"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/search"
)

func TestLLMConfig(t *testing.T) {
	cfg := config.Defaults()
	c := llmConfig(cfg)
	assert.Equal(t, llm.DefaultConfig().GetModel(llm.TierAdvanced), c.GetModel(llm.TierAdvanced))

	cfg.Model = "gemini-2.5-flash"
	c = llmConfig(cfg)
	for _, tier := range []llm.ModelTier{llm.TierLite, llm.TierStandard, llm.TierAdvanced} {
		assert.Equal(t, "gemini-2.5-flash", c.GetModel(tier))
	}
}

func TestNewSearcher(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.Config
		wantNil bool
		wantErr bool
		check   func(t *testing.T, s search.WebSearcher)
	}{
		{
			name:    "tavily without key",
			cfg:     config.Config{SearchBackend: config.SearchBackendTavily},
			wantNil: true,
		},
		{
			name: "tavily with key",
			cfg:  config.Config{SearchBackend: config.SearchBackendTavily, TavilyAPIKey: "tvly-test"},
			check: func(t *testing.T, s search.WebSearcher) {
				_, ok := s.(*search.TavilySearcher)
				assert.True(t, ok)
			},
		},
		{
			name: "empty backend defaults to tavily",
			cfg:  config.Config{TavilyAPIKey: "tvly-test"},
			check: func(t *testing.T, s search.WebSearcher) {
				_, ok := s.(*search.TavilySearcher)
				assert.True(t, ok)
			},
		},
		{
			name:    "google missing cx",
			cfg:     config.Config{SearchBackend: config.SearchBackendGoogle, GoogleSearchAPIKey: "key"},
			wantNil: true,
		},
		{
			name:    "unknown backend",
			cfg:     config.Config{SearchBackend: "bing"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := newSearcher(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, s)
				return
			}
			require.NotNil(t, s)
			if tt.check != nil {
				tt.check(t, s)
			}
		})
	}
}

func TestNewRuntime_RequiresAPIKey(t *testing.T) {
	cfg := config.Defaults()
	cfg.APIKey = ""

	_, err := newRuntime(context.Background(), cfg, logger.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
