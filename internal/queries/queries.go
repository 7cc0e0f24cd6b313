// Package queries derives web-search queries from a learner profile.
package queries

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/profile"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// Query set bounds
const (
	MinQueries = 3
	MaxQueries = 6
)

// ErrNoQueries is returned when generation yields no usable query.
var ErrNoQueries = errors.New("no usable search queries generated")

// Generator produces a SearchQuerySet for a profile.
type Generator struct {
	invoker llm.Invoker
	log     *logger.Logger
}

// NewGenerator creates a Generator.
func NewGenerator(invoker llm.Invoker, log *logger.Logger) *Generator {
	return &Generator{invoker: invoker, log: logger.OrNop(log)}
}

// Generate returns up to MaxQueries distinct, non-blank queries.
func (g *Generator) Generate(ctx context.Context, p *types.LearnerProfile) (*types.SearchQuerySet, error) {
	if p == nil {
		return nil, fmt.Errorf("learner profile is required")
	}

	var resp types.SearchQuerySet
	err := g.invoker.Invoke(ctx, llm.Request{
		Prompt: prompts.KeyGenerateQueries,
		Values: map[string]string{"Profile": profile.JSON(p)},
		Schema: schemas.SearchQueries,
		Tier:   llm.TierLite,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to generate search queries: %w", err)
	}

	cleaned := Clean(resp.Queries)
	if len(cleaned) == 0 {
		return nil, ErrNoQueries
	}
	if len(cleaned) < MinQueries {
		g.log.Warn("fewer search queries than requested", "count", len(cleaned), "min", MinQueries)
	}
	return &types.SearchQuerySet{Queries: cleaned}, nil
}

// Clean trims queries, drops blanks and case-insensitive duplicates,
// and caps the result at MaxQueries. Order is preserved.
func Clean(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, q := range in {
		q = strings.Join(strings.Fields(q), " ")
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, q)
		if len(out) == MaxQueries {
			break
		}
	}
	return out
}
