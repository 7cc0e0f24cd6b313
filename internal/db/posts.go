package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/roadmap-agent/internal/types"
)

const postColumns = `original_post_id, COALESCE(platform, ''), COALESCE(url, ''), published_at,
	COALESCE(author_name, ''), COALESCE(raw_text, ''), COALESCE(summary, ''),
	COALESCE(sentiment, ''), COALESCE(topics, '{}'), COALESCE(category, '')`

// GetPostsByIDs fetches posts by original_post_id in one query.
// Unknown ids are absent from the result map.
func (db *DB) GetPostsByIDs(ctx context.Context, ids []string) (map[string]types.Post, error) {
	out := make(map[string]types.Post, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts WHERE original_post_id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get posts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out[p.OriginalPostID] = *p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posts: %w", err)
	}
	return out, nil
}

// GetPost fetches a single post, returning nil when it does not exist.
func (db *DB) GetPost(ctx context.Context, id string) (*types.Post, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE original_post_id = $1 LIMIT 1`,
		id,
	)
	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

// SearchPostsKeyword returns posts whose raw text or summary contains query,
// case-insensitively, newest first.
func (db *DB) SearchPostsKeyword(ctx context.Context, query string, limit int) ([]types.Post, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts
		 WHERE raw_text ILIKE $1 OR summary ILIKE $1
		 ORDER BY published_at DESC NULLS LAST
		 LIMIT $2`,
		"%"+escapeLike(query)+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search posts: %w", err)
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read posts: %w", err)
	}
	return posts, nil
}

func scanPost(row pgx.Row) (*types.Post, error) {
	var p types.Post
	err := row.Scan(&p.OriginalPostID, &p.Platform, &p.URL, &p.PublishedAt,
		&p.AuthorName, &p.RawText, &p.Summary, &p.Sentiment, &p.Topics, &p.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to scan post: %w", err)
	}
	return &p, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
