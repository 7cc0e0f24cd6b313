// Package projection hydrates enriched stages into the UI-ready roadmap.
package projection

import (
	"context"

	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// PostStore fetches stored posts by their original post id.
type PostStore interface {
	GetPostsByIDs(ctx context.Context, ids []string) (map[string]types.Post, error)
}

// Projector builds the final Roadmap.
type Projector struct {
	store PostStore
	log   *logger.Logger
}

// NewProjector creates a Projector. A nil store yields nodes without posts.
func NewProjector(store PostStore, log *logger.Logger) *Projector {
	return &Projector{store: store, log: logger.OrNop(log)}
}

// Project returns one node per stage in stage order. Enriched stages are
// paired with stages by id. Post references missing from the store are
// dropped silently; a failed lookup drops all posts with a diagnostic.
func (p *Projector) Project(ctx context.Context, goal string, stages []types.RoadmapStage, enriched []types.EnrichedStage) (*types.Roadmap, []types.Diagnostic) {
	var diags []types.Diagnostic

	byID := make(map[string]types.EnrichedStage, len(enriched))
	for _, e := range enriched {
		byID[e.ID] = e
	}

	posts := map[string]types.Post{}
	if ids := collectPostIDs(stages, byID); len(ids) > 0 {
		fetched, err := p.lookup(ctx, ids)
		if err != nil {
			p.log.Warn("post lookup failed", "ids", len(ids), "error", err)
			diags = append(diags, types.Diagnostic{Stage: types.StageProjection, Message: "post lookup failed: " + err.Error()})
		} else {
			posts = fetched
		}
	}

	nodes := make([]types.UINode, 0, len(stages))
	dropped := 0
	for _, s := range stages {
		e := byID[s.ID]

		records := make([]types.PostRecord, 0, len(e.Posts))
		for _, ref := range e.Posts {
			post, ok := posts[ref.ID]
			if !ok {
				dropped++
				continue
			}
			topics := post.Topics
			if topics == nil {
				topics = []string{}
			}
			records = append(records, types.PostRecord{
				ID:      post.OriginalPostID,
				URL:     post.URL,
				Author:  post.AuthorName,
				Summary: post.Summary,
				Topics:  topics,
				Reason:  ref.Reason,
			})
		}

		courses := make([]types.CourseRecord, 0, len(e.Courses))
		for _, c := range e.Courses {
			courses = append(courses, types.CourseRecord{ID: c.ID, Title: c.Title, URL: c.URL, Reason: c.Reason})
		}

		nodes = append(nodes, types.UINode{
			ID:          s.ID,
			Title:       s.Title,
			Description: s.Why,
			Skills:      nonNil(s.Skills),
			Projects:    nonNil(s.Projects),
			Posts:       records,
			Courses:     courses,
		})
	}

	if dropped > 0 {
		p.log.Debug("dropped unresolved post references", "count", dropped)
	}

	return &types.Roadmap{
		Goal:          goal,
		TimelineStyle: types.TimelineStyleHorizontalPath,
		Nodes:         nodes,
	}, diags
}

func (p *Projector) lookup(ctx context.Context, ids []string) (map[string]types.Post, error) {
	if p.store == nil {
		return map[string]types.Post{}, nil
	}
	return p.store.GetPostsByIDs(ctx, ids)
}

// collectPostIDs returns every referenced post id once, in first-seen order.
func collectPostIDs(stages []types.RoadmapStage, byID map[string]types.EnrichedStage) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, s := range stages {
		for _, ref := range byID[s.ID].Posts {
			if !seen[ref.ID] {
				seen[ref.ID] = true
				ids = append(ids, ref.ID)
			}
		}
	}
	return ids
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
