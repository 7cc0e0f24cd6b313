package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonathan/roadmap-agent/internal/types"
)

// Match returns the count nearest documents to embedding via the
// match_documents function, most similar first.
func (db *DB) Match(ctx context.Context, embedding []float32, count int) ([]types.DocumentMatch, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is empty")
	}
	if count <= 0 {
		return nil, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT content, COALESCE(metadata, '{}'::jsonb), similarity
		 FROM match_documents($1::vector, $2)`,
		vectorLiteral(embedding), count,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to match documents: %w", err)
	}
	defer rows.Close()

	var matches []types.DocumentMatch
	for rows.Next() {
		var m types.DocumentMatch
		var metadata []byte
		if err := rows.Scan(&m.Content, &metadata, &m.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan document match: %w", err)
		}
		if m.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read document matches: %w", err)
	}
	return matches, nil
}

// decodeMetadata keeps numbers as json.Number so numeric post ids are not
// rounded through float64.
func decodeMetadata(raw []byte) (map[string]any, error) {
	md := map[string]any{}
	if len(bytes.TrimSpace(raw)) == 0 {
		return md, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&md); err != nil {
		return nil, fmt.Errorf("failed to decode document metadata: %w", err)
	}
	if md == nil {
		md = map[string]any{}
	}
	return md, nil
}

// vectorLiteral encodes an embedding in pgvector's text input format.
func vectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 10)
	sb.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}
