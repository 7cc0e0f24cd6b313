package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"

	"github.com/jonathan/roadmap-agent/internal/types"
)

// googleMaxResults is the Custom Search API page size limit.
const googleMaxResults = 10

// GoogleSearcher runs queries through the Google Custom Search JSON API.
type GoogleSearcher struct {
	svc *customsearch.Service
	cx  string
}

// NewGoogleSearcher creates a Custom Search client for the given engine id.
func NewGoogleSearcher(ctx context.Context, apiKey, cx string, opts ...option.ClientOption) (*GoogleSearcher, error) {
	if cx == "" {
		return nil, fmt.Errorf("search engine id (cx) is required")
	}
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	svc, err := customsearch.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create customsearch service: %w", err)
	}
	return &GoogleSearcher{svc: svc, cx: cx}, nil
}

// Search implements WebSearcher. Domain restrictions become site: filters.
func (g *GoogleSearcher) Search(ctx context.Context, q Query) ([]types.SearchResult, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, &Error{Backend: "google", Query: q.Text, Message: "query is empty"}
	}

	call := g.svc.Cse.List().Cx(g.cx).Q(siteQuery(q.Text, q.IncludeDomains)).Context(ctx)
	if n := q.MaxResults; n > 0 {
		if n > googleMaxResults {
			n = googleMaxResults
		}
		call = call.Num(int64(n))
	}

	resp, err := call.Do()
	if err != nil {
		return nil, &Error{Backend: "google", Query: q.Text, Message: "search failed", Cause: err}
	}

	results := make([]types.SearchResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		content := item.Snippet
		if item.HtmlSnippet != "" {
			if text := htmlToText(item.HtmlSnippet); text != "" {
				content = text
			}
		}
		results = append(results, types.SearchResult{URL: item.Link, Title: item.Title, Content: content})
	}
	return results, nil
}

// siteQuery appends an OR'd site: filter for each domain.
func siteQuery(text string, domains []string) string {
	if len(domains) == 0 {
		return text
	}
	sites := make([]string, 0, len(domains))
	for _, d := range domains {
		if d = strings.TrimSpace(d); d != "" {
			sites = append(sites, "site:"+d)
		}
	}
	if len(sites) == 0 {
		return text
	}
	return fmt.Sprintf("%s (%s)", text, strings.Join(sites, " OR "))
}

// htmlToText strips markup from a snippet and normalizes whitespace.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
