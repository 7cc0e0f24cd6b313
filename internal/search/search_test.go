package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestTavilySearcher_Search(t *testing.T) {
	var got tavilyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer tvly-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": [
			{"url": "https://a.dev/roadmap", "title": "Roadmap", "content": "Learn SQL first.", "score": 0.9},
			{"url": "https://b.dev/tips", "title": "Tips", "content": "", "score": 0.5},
			{"url": "https://c.dev/x", "title": "Extra", "content": "extra", "score": 0.1}
		]}`))
	}))
	defer srv.Close()

	s, err := NewTavilySearcher("tvly-test", srv.URL, srv.Client())
	require.NoError(t, err)

	results, err := s.Search(context.Background(), Query{
		Text:           "data engineering roadmap",
		Depth:          DepthAdvanced,
		MaxResults:     2,
		IncludeDomains: []string{"coursera.org"},
	})
	require.NoError(t, err)

	assert.Equal(t, "data engineering roadmap", got.Query)
	assert.Equal(t, DepthAdvanced, got.SearchDepth)
	assert.Equal(t, 2, got.MaxResults)
	assert.Equal(t, []string{"coursera.org"}, got.IncludeDomains)

	require.Len(t, results, 2)
	assert.Equal(t, "https://a.dev/roadmap", results[0].URL)
	assert.Equal(t, "Learn SQL first.", results[0].Content)
	assert.Equal(t, "", results[1].Content)
}

func TestTavilySearcher_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	s, err := NewTavilySearcher("tvly-test", srv.URL, srv.Client())
	require.NoError(t, err)

	_, err = s.Search(context.Background(), Query{Text: "q"})
	require.Error(t, err)

	var searchErr *Error
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "tavily", searchErr.Backend)
	assert.Contains(t, searchErr.Message, "429")
}

func TestTavilySearcher_Validation(t *testing.T) {
	_, err := NewTavilySearcher("", "", nil)
	assert.Error(t, err)

	s, err := NewTavilySearcher("k", "", nil)
	require.NoError(t, err)
	_, err = s.Search(context.Background(), Query{Text: "  "})
	assert.Error(t, err)
}

func TestGoogleSearcher_Search(t *testing.T) {
	var gotQuery, gotNum string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotNum = r.URL.Query().Get("num")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": [
			{"link": "https://www.coursera.org/learn/sql", "title": "SQL Basics", "snippet": "plain", "htmlSnippet": "Learn <b>SQL</b>\n in   weeks"},
			{"link": "https://www.udemy.com/course/go", "title": "Go", "snippet": "Go course"}
		]}`))
	}))
	defer srv.Close()

	g, err := NewGoogleSearcher(context.Background(), "", "cx-1",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	results, err := g.Search(context.Background(), Query{
		Text:           "best online course for SQL",
		MaxResults:     2,
		IncludeDomains: []string{"coursera.org", "udemy.com"},
	})
	require.NoError(t, err)

	assert.Equal(t, "best online course for SQL (site:coursera.org OR site:udemy.com)", gotQuery)
	assert.Equal(t, "2", gotNum)
	require.Len(t, results, 2)
	assert.Equal(t, "Learn SQL in weeks", results[0].Content)
	assert.Equal(t, "Go course", results[1].Content)
	assert.Equal(t, "https://www.udemy.com/course/go", results[1].URL)
}

func TestNewGoogleSearcher_RequiresCX(t *testing.T) {
	_, err := NewGoogleSearcher(context.Background(), "key", "")
	assert.Error(t, err)
}

func TestSiteQuery(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		domains []string
		want    string
	}{
		{"no domains", "go course", nil, "go course"},
		{"blank domains", "go course", []string{" ", ""}, "go course"},
		{"single", "go course", []string{"edx.org"}, "go course (site:edx.org)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, siteQuery(tt.text, tt.domains))
		})
	}
}

func TestHTMLToText(t *testing.T) {
	assert.Equal(t, "Intro to Go", htmlToText("<p>Intro <i>to</i>\nGo</p>"))
	assert.Equal(t, "", htmlToText(""))
}
