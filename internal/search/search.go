// Package search provides the web search backends used for advisement
// gathering and course discovery.
package search

import (
	"context"
	"fmt"

	"github.com/jonathan/roadmap-agent/internal/types"
)

// Search depths understood by Tavily. Other backends ignore depth.
const (
	DepthBasic    = "basic"
	DepthAdvanced = "advanced"
)

// TopicGeneral is the default Tavily topic.
const TopicGeneral = "general"

// Query is a single web search request.
type Query struct {
	Text           string
	Depth          string
	Topic          string
	MaxResults     int
	IncludeDomains []string
}

// WebSearcher runs a web search and returns ranked hits.
type WebSearcher interface {
	Search(ctx context.Context, q Query) ([]types.SearchResult, error)
}

// Error represents a failed search call.
type Error struct {
	Backend string
	Query   string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s search for %q: %s: %v", e.Backend, e.Query, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s search for %q: %s", e.Backend, e.Query, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
