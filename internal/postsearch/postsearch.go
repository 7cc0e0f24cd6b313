// Package postsearch finds stored posts by keyword or by semantic similarity.
package postsearch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/types"
)

const (
	// DefaultLimit applies when a request leaves Limit unset.
	DefaultLimit = 10
	// MaxLimit bounds a single request.
	MaxLimit = 50
	// overfetch widens the similarity query since several chunks can share one post.
	overfetch = 3
)

// ErrSemanticUnavailable is returned for advanced searches when no embedder or index is configured.
var ErrSemanticUnavailable = errors.New("advanced search not available")

// Request is a post search. AdvancedMode selects semantic search.
type Request struct {
	Query        string `json:"query" validate:"required"`
	Limit        int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
	AdvancedMode bool   `json:"advanced_mode,omitempty"`
}

// Validate checks the request fields.
func (r *Request) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// Store is the relational post store.
type Store interface {
	SearchPostsKeyword(ctx context.Context, query string, limit int) ([]types.Post, error)
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]types.Post, error)
}

// Index returns stored documents nearest to an embedding.
type Index interface {
	Match(ctx context.Context, embedding []float32, count int) ([]types.DocumentMatch, error)
}

// Service runs post searches. embedder and index may be nil, which disables advanced mode.
type Service struct {
	store    Store
	embedder llm.Embedder
	index    Index
	log      *logger.Logger
}

// NewService creates a Service.
func NewService(store Store, embedder llm.Embedder, index Index, log *logger.Logger) *Service {
	return &Service{store: store, embedder: embedder, index: index, log: logger.OrNop(log)}
}

// Search returns at most req.Limit posts. Results are never nil.
func (s *Service) Search(ctx context.Context, req Request) ([]types.Post, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Limit == 0 {
		req.Limit = DefaultLimit
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}
	if s.store == nil {
		return nil, errors.New("post store not configured")
	}

	if req.AdvancedMode {
		return s.semantic(ctx, req.Query, req.Limit)
	}
	return s.keyword(ctx, req.Query, req.Limit)
}

func (s *Service) keyword(ctx context.Context, query string, limit int) ([]types.Post, error) {
	s.log.Debug("keyword post search", "query", query, "limit", limit)
	posts, err := s.store.SearchPostsKeyword(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	if posts == nil {
		posts = []types.Post{}
	}
	return posts, nil
}

func (s *Service) semantic(ctx context.Context, query string, limit int) ([]types.Post, error) {
	if s.embedder == nil || s.index == nil {
		return nil, ErrSemanticUnavailable
	}
	s.log.Debug("semantic post search", "query", query, "limit", limit)

	embedding, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	matches, err := s.index.Match(ctx, embedding, limit*overfetch)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	ids := uniquePostIDs(matches)
	if len(ids) == 0 {
		return []types.Post{}, nil
	}
	byID, err := s.store.GetPostsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	out := make([]types.Post, 0, min(limit, len(ids)))
	for _, id := range ids {
		post, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, post)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// uniquePostIDs returns post ids in similarity order, first occurrence only.
func uniquePostIDs(matches []types.DocumentMatch) []string {
	seen := make(map[string]bool, len(matches))
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		id := m.PostID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
