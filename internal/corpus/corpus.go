// Package corpus gathers web advice for a query set and condenses it into advisement units.
package corpus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/search"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// Search settings for advisement gathering. Searches run one at a time so a
// run stays on a single logical thread and never bursts the search API.
const (
	ResultsPerQuery = 5
	MaxConcurrency  = 1
)

// Curator runs the advisement searches and the cleanup generation call.
type Curator struct {
	invoker  llm.Invoker
	searcher search.WebSearcher
	log      *logger.Logger
}

// NewCurator creates a Curator.
func NewCurator(invoker llm.Invoker, searcher search.WebSearcher, log *logger.Logger) *Curator {
	return &Curator{invoker: invoker, searcher: searcher, log: logger.OrNop(log)}
}

// Curate searches every query independently, in query order, and condenses
// the hits. Failed searches become diagnostics. The cleanup call always
// runs, even with no hits.
func (c *Curator) Curate(ctx context.Context, set *types.SearchQuerySet) (*types.AdvisementCorpus, []types.Diagnostic, error) {
	var queries []string
	if set != nil {
		queries = set.Queries
	}

	results, diags := c.gather(ctx, queries)
	if err := ctx.Err(); err != nil {
		return nil, diags, err
	}

	raw, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, diags, fmt.Errorf("failed to encode search results: %w", err)
	}

	var resp types.AdvisementCorpus
	err = c.invoker.Invoke(ctx, llm.Request{
		Prompt: prompts.KeyCleanAdvisement,
		Values: map[string]string{"Results": string(raw)},
		Schema: schemas.AdvisementCorpus,
		Tier:   llm.TierLite,
	}, &resp)
	if err != nil {
		return nil, diags, fmt.Errorf("failed to clean advisement corpus: %w", err)
	}

	units := make([]string, 0, len(resp.Units))
	for _, u := range resp.Units {
		if u = strings.TrimSpace(u); u != "" {
			units = append(units, u)
		}
	}

	c.log.Info("curated advisement corpus",
		"queries", len(queries),
		"failed_queries", len(diags),
		"results", len(results),
		"units", len(units),
	)
	return &types.AdvisementCorpus{Units: units}, diags, nil
}

func (c *Curator) gather(ctx context.Context, queries []string) ([]types.SearchResult, []types.Diagnostic) {
	var (
		mu      sync.Mutex
		results = make([]types.SearchResult, 0, len(queries)*ResultsPerQuery)
		diags   []types.Diagnostic
	)

	var g errgroup.Group
	g.SetLimit(MaxConcurrency)
	for _, q := range queries {
		g.Go(func() error {
			hits, err := c.searcher.Search(ctx, search.Query{
				Text:       q,
				Depth:      search.DepthAdvanced,
				MaxResults: ResultsPerQuery,
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				c.log.Warn("advisement search failed", "query", q, "error", err)
				diags = append(diags, types.Diagnostic{Stage: types.StageCorpus, Scope: q, Message: err.Error()})
				return nil
			}
			for _, h := range hits {
				if strings.TrimSpace(h.Content) != "" {
					results = append(results, h)
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return results, diags
}
