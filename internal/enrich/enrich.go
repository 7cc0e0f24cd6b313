// Package enrich attaches post and course references to each roadmap stage.
//
// Posts come from the similarity index and are re-ranked by a generation call.
// Courses come from a web search restricted to course-hosting domains. Every
// roadmap stage is enriched independently: a failure in one source degrades
// that source to zero references for that stage only.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/search"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// Enrichment bounds
const (
	CandidateCount     = 5
	PreviewLength      = 200
	MaxPostsPerStage   = 3
	MaxCoursesPerStage = 2
)

// CourseDomains is the allow-list for course searches.
var CourseDomains = []string{
	"udemy.com",
	"coursera.org",
	"edx.org",
	"pluralsight.com",
	"udacity.com",
	"freecodecamp.org",
}

// SimilarityIndex returns stored documents nearest to an embedding, most similar first.
type SimilarityIndex interface {
	Match(ctx context.Context, embedding []float32, count int) ([]types.DocumentMatch, error)
}

// Enricher produces EnrichedStage values. Any collaborator may be nil, in
// which case the matching resource kind is skipped with a diagnostic.
type Enricher struct {
	invoker  llm.Invoker
	embedder llm.Embedder
	index    SimilarityIndex
	searcher search.WebSearcher
	log      *logger.Logger
}

// NewEnricher creates an Enricher.
func NewEnricher(invoker llm.Invoker, embedder llm.Embedder, index SimilarityIndex, searcher search.WebSearcher, log *logger.Logger) *Enricher {
	return &Enricher{
		invoker:  invoker,
		embedder: embedder,
		index:    index,
		searcher: searcher,
		log:      logger.OrNop(log),
	}
}

// Enrich returns one EnrichedStage per input stage, in the same order.
func (e *Enricher) Enrich(ctx context.Context, stages []types.RoadmapStage) ([]types.EnrichedStage, []types.Diagnostic) {
	out := make([]types.EnrichedStage, 0, len(stages))
	var diags []types.Diagnostic

	for _, stage := range stages {
		enriched, stageDiags := e.enrichStage(ctx, stage)
		out = append(out, enriched)
		diags = append(diags, stageDiags...)
	}
	return out, diags
}

func (e *Enricher) enrichStage(ctx context.Context, stage types.RoadmapStage) (types.EnrichedStage, []types.Diagnostic) {
	var diags []types.Diagnostic
	degrade := func(msg string, err error) {
		if err != nil {
			msg = fmt.Sprintf("%s: %v", msg, err)
		}
		e.log.Warn("stage enrichment degraded", "stage", stage.ID, "detail", msg)
		diags = append(diags, types.Diagnostic{Stage: types.StageEnrich, Scope: stage.ID, Message: msg})
	}

	posts := []types.PostReference{}
	candidates, err := e.candidates(ctx, stage)
	if err != nil {
		degrade("post retrieval failed", err)
	} else if len(candidates) > 0 {
		ranked, err := e.rank(ctx, stage, candidates)
		if err != nil {
			degrade("post ranking failed", err)
		} else {
			posts = ranked
		}
	}

	courses, err := e.courses(ctx, stage)
	if err != nil {
		degrade("course search failed", err)
		courses = []types.CourseReference{}
	}

	e.log.Debug("enriched stage", "stage", stage.ID, "candidates", len(candidates), "posts", len(posts), "courses", len(courses))
	return types.EnrichedStage{ID: stage.ID, Posts: posts, Courses: courses}, diags
}

// RetrievalQuery builds the similarity query text for a stage.
func RetrievalQuery(stage types.RoadmapStage) string {
	terms := make([]string, 0, len(stage.Focus)+len(stage.Skills))
	terms = append(terms, stage.Focus...)
	terms = append(terms, stage.Skills...)
	return fmt.Sprintf("%s: %s", stage.Title, strings.Join(terms, ", "))
}

func (e *Enricher) candidates(ctx context.Context, stage types.RoadmapStage) ([]types.Candidate, error) {
	if e.embedder == nil || e.index == nil {
		return nil, fmt.Errorf("similarity backend unavailable")
	}

	embedding, err := e.embedder.EmbedQuery(ctx, RetrievalQuery(stage))
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	matches, err := e.index.Match(ctx, embedding, CandidateCount)
	if err != nil {
		return nil, err
	}
	return Dedupe(matches), nil
}

// Dedupe converts matches into candidates unique by post id. The first
// occurrence wins, so similarity order decides ties. Matches without a
// post id are skipped.
func Dedupe(matches []types.DocumentMatch) []types.Candidate {
	out := make([]types.Candidate, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		id := m.PostID()
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, types.Candidate{
			ID:      id,
			Content: preview(m.Content, PreviewLength),
			URL:     m.URL(),
		})
	}
	return out
}

type matchResponse struct {
	Matches []types.PostReference `json:"matches"`
}

func (e *Enricher) rank(ctx context.Context, stage types.RoadmapStage, candidates []types.Candidate) ([]types.PostReference, error) {
	stageJSON, err := json.Marshal(stage)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stage: %w", err)
	}
	postsJSON, err := json.Marshal(candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}

	var resp matchResponse
	err = e.invoker.Invoke(ctx, llm.Request{
		Name:   prompts.KeyMatchPosts + ":" + stage.ID,
		Prompt: prompts.KeyMatchPosts,
		Values: map[string]string{
			"Stage": string(stageJSON),
			"Posts": string(postsJSON),
		},
		Schema: schemas.PostMatches,
		Tier:   llm.TierLite,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return FilterMatches(resp.Matches, candidates), nil
}

// FilterMatches keeps ranked references that name a candidate, drops
// repeats and caps the list at MaxPostsPerStage.
func FilterMatches(matches []types.PostReference, candidates []types.Candidate) []types.PostReference {
	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.ID] = true
	}

	out := make([]types.PostReference, 0, MaxPostsPerStage)
	seen := make(map[string]bool)
	for _, m := range matches {
		id := strings.TrimSpace(m.ID)
		if !allowed[id] || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, types.PostReference{ID: id, Reason: strings.TrimSpace(m.Reason)})
		if len(out) == MaxPostsPerStage {
			break
		}
	}
	return out
}

// CourseQuery builds the course search text for a stage.
func CourseQuery(stage types.RoadmapStage) string {
	q := "best online course for " + stage.Title
	if len(stage.Skills) > 0 {
		q += " " + stage.Skills[0]
	}
	return q
}

func (e *Enricher) courses(ctx context.Context, stage types.RoadmapStage) ([]types.CourseReference, error) {
	if e.searcher == nil {
		return nil, fmt.Errorf("web search unavailable")
	}

	hits, err := e.searcher.Search(ctx, search.Query{
		Text:           CourseQuery(stage),
		Topic:          search.TopicGeneral,
		MaxResults:     MaxCoursesPerStage,
		IncludeDomains: CourseDomains,
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.CourseReference, 0, MaxCoursesPerStage)
	seen := make(map[string]bool)
	for _, h := range hits {
		if h.URL == "" || seen[h.URL] {
			continue
		}
		seen[h.URL] = true
		out = append(out, types.CourseReference{
			ID:     h.URL,
			Title:  h.Title,
			URL:    h.URL,
			Reason: "Recommended resource for " + stage.Title,
		})
		if len(out) == MaxCoursesPerStage {
			break
		}
	}
	return out, nil
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
