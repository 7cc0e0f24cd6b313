package types

import (
	"encoding/json"
	"time"
)

// SearchResult is one web-search hit.
type SearchResult struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// DocumentMatch is one similarity-index neighbour. Metadata carries post_id and url.
// Numeric metadata must be decoded with json.Decoder.UseNumber so large ids
// keep every digit.
type DocumentMatch struct {
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata"`
	Similarity float64        `json:"similarity"`
}

// PostID returns the originating post identifier from the match metadata.
func (m DocumentMatch) PostID() string {
	return metadataString(m.Metadata, "post_id")
}

// URL returns the post URL from the match metadata.
func (m DocumentMatch) URL() string {
	return metadataString(m.Metadata, "url")
}

func metadataString(md map[string]any, key string) string {
	if md == nil {
		return ""
	}
	switch v := md[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// Candidate is a deduplicated post candidate offered to the relevance ranker.
type Candidate struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Post is a row of the posts table.
type Post struct {
	OriginalPostID string     `json:"original_post_id"`
	Platform       string     `json:"platform"`
	URL            string     `json:"url"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	AuthorName     string     `json:"author_name"`
	RawText        string     `json:"raw_text,omitempty"`
	Summary        string     `json:"summary"`
	Sentiment      string     `json:"sentiment,omitempty"`
	Topics         []string   `json:"topics"`
	Category       string     `json:"category,omitempty"`
}
