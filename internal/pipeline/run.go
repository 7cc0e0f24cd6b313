// Package pipeline orchestrates the six roadmap stages for a single goal.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/roadmap-agent/internal/corpus"
	"github.com/jonathan/roadmap-agent/internal/enrich"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/profile"
	"github.com/jonathan/roadmap-agent/internal/projection"
	"github.com/jonathan/roadmap-agent/internal/queries"
	"github.com/jonathan/roadmap-agent/internal/roadmap"
	"github.com/jonathan/roadmap-agent/internal/search"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// TotalSteps is the number of stages in a run.
const TotalSteps = 6

// Run status values passed to RunRecorder.CompleteRun
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunRecorder persists the outcome of a run. Only the final roadmap is stored.
type RunRecorder interface {
	CreateRun(ctx context.Context, runID uuid.UUID, goal string) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status, errMsg string, roadmap any) error
}

// Services are the external collaborators of a run. Invoker is required;
// the rest may be nil and degrade the stages that use them.
type Services struct {
	Invoker  llm.Invoker
	Embedder llm.Embedder
	Index    enrich.SimilarityIndex
	Searcher search.WebSearcher
	Posts    projection.PostStore
	Runs     RunRecorder
	Logger   *logger.Logger
}

// StageError is a terminal failure of a required stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Result is a completed run.
type Result struct {
	RunID       uuid.UUID          `json:"run_id"`
	Roadmap     *types.Roadmap     `json:"roadmap"`
	Diagnostics []types.Diagnostic `json:"diagnostics"`
}

// RunOptions holds per-run settings.
type RunOptions struct {
	OnProgress ProgressCallback
}

// Pipeline runs the stages in order. It holds no per-run state and is safe
// for concurrent use when its services are.
type Pipeline struct {
	extractor *profile.Extractor
	generator *queries.Generator
	curator   *corpus.Curator
	builder   *roadmap.Builder
	enricher  *enrich.Enricher
	projector *projection.Projector
	runs      RunRecorder
	log       *logger.Logger
}

// New wires the stage components from svc.
func New(svc Services) (*Pipeline, error) {
	if svc.Invoker == nil {
		return nil, errors.New("pipeline: invoker is required")
	}
	log := logger.OrNop(svc.Logger)

	var searcher search.WebSearcher
	if svc.Searcher != nil {
		searcher = svc.Searcher
	} else {
		searcher = unavailableSearcher{}
	}

	return &Pipeline{
		extractor: profile.NewExtractor(svc.Invoker, log),
		generator: queries.NewGenerator(svc.Invoker, log),
		curator:   corpus.NewCurator(svc.Invoker, searcher, log),
		builder:   roadmap.NewBuilder(svc.Invoker, log),
		enricher:  enrich.NewEnricher(svc.Invoker, svc.Embedder, svc.Index, svc.Searcher, log),
		projector: projection.NewProjector(svc.Posts, log),
		runs:      svc.Runs,
		log:       log,
	}, nil
}

// Run produces a roadmap for goal.
func (p *Pipeline) Run(ctx context.Context, goal string) (*Result, error) {
	return p.RunWithOptions(ctx, goal, RunOptions{})
}

// RunWithOptions produces a roadmap for goal, reporting progress through opts.
// It returns a *StageError when a required stage fails or ctx is cancelled.
func (p *Pipeline) RunWithOptions(ctx context.Context, goal string, opts RunOptions) (*Result, error) {
	runID := uuid.New()
	log := p.log.With("run_id", runID.String())
	goal = strings.TrimSpace(goal)

	p.recordStart(ctx, log, runID, goal)

	emit := func(index int, step, message string, content any) {
		if opts.OnProgress != nil {
			opts.OnProgress(ProgressEvent{
				Step:    step,
				Index:   index,
				Total:   TotalSteps,
				Message: message,
				RunID:   runID.String(),
				Content: content,
			})
		}
	}
	fail := func(stage string, err error) (*Result, error) {
		log.Error("pipeline run failed", "stage", stage, "error", err)
		stageErr := &StageError{Stage: stage, Err: err}
		p.recordFinish(ctx, log, runID, StatusFailed, stageErr.Error(), nil)
		return nil, stageErr
	}

	var diags []types.Diagnostic
	collect := func(d []types.Diagnostic) {
		diags = append(diags, d...)
	}

	emit(1, types.StageProfile, "Understanding learner profile", nil)
	learner, err := p.extractor.Extract(ctx, goal)
	if err != nil {
		return fail(types.StageProfile, err)
	}
	emit(1, types.StageProfile, "Extracted learner profile", learner)

	emit(2, types.StageQueries, "Generating search queries", nil)
	querySet, err := p.generator.Generate(ctx, learner)
	if err != nil {
		return fail(types.StageQueries, err)
	}
	emit(2, types.StageQueries, fmt.Sprintf("Generated %d queries", len(querySet.Queries)), querySet)

	emit(3, types.StageCorpus, "Gathering and cleaning advisement", nil)
	advisement, corpusDiags, err := p.curator.Curate(ctx, querySet)
	collect(corpusDiags)
	if err != nil {
		return fail(types.StageCorpus, err)
	}
	emit(3, types.StageCorpus, fmt.Sprintf("Curated %d advisement units", len(advisement.Units)), advisement)

	emit(4, types.StageRoadmap, "Building staged roadmap", nil)
	stages, roadmapDiags, err := p.builder.Build(ctx, learner, advisement)
	collect(roadmapDiags)
	if err != nil {
		return fail(types.StageRoadmap, err)
	}
	emit(4, types.StageRoadmap, fmt.Sprintf("Built %d stages", len(stages)), stages)

	emit(5, types.StageEnrich, "Matching posts and courses", nil)
	enriched, enrichDiags := p.enricher.Enrich(ctx, stages)
	collect(enrichDiags)
	if err := ctx.Err(); err != nil {
		return fail(types.StageEnrich, err)
	}
	emit(5, types.StageEnrich, "Matched resources for each stage", enriched)

	emit(6, types.StageProjection, "Assembling learning path", nil)
	result, projectionDiags := p.projector.Project(ctx, goal, stages, enriched)
	collect(projectionDiags)
	if err := ctx.Err(); err != nil {
		return fail(types.StageProjection, err)
	}
	emit(6, types.StageProjection, fmt.Sprintf("Roadmap ready with %d nodes", len(result.Nodes)), result)

	if diags == nil {
		diags = []types.Diagnostic{}
	}
	log.Info("pipeline run completed", "nodes", len(result.Nodes), "diagnostics", len(diags))
	p.recordFinish(ctx, log, runID, StatusCompleted, "", result)

	return &Result{RunID: runID, Roadmap: result, Diagnostics: diags}, nil
}

func (p *Pipeline) recordStart(ctx context.Context, log *logger.Logger, runID uuid.UUID, goal string) {
	if p.runs == nil {
		return
	}
	if err := p.runs.CreateRun(ctx, runID, goal); err != nil {
		log.Warn("failed to record run start", "error", err)
	}
}

func (p *Pipeline) recordFinish(ctx context.Context, log *logger.Logger, runID uuid.UUID, status, errMsg string, roadmap *types.Roadmap) {
	if p.runs == nil {
		return
	}
	var content any
	if roadmap != nil {
		content = roadmap
	}
	if err := p.runs.CompleteRun(context.WithoutCancel(ctx), runID, status, errMsg, content); err != nil {
		log.Warn("failed to record run completion", "error", err)
	}
}

// unavailableSearcher fails every search so the curator records one
// diagnostic per query and still runs its cleanup call.
type unavailableSearcher struct{}

func (unavailableSearcher) Search(_ context.Context, q search.Query) ([]types.SearchResult, error) {
	return nil, &search.Error{Backend: "none", Query: q.Text, Message: "web search unavailable"}
}
