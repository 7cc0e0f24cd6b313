// Package roadmap builds the ordered learning stages from a profile and advisement corpus.
package roadmap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/profile"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// Stage and project bounds requested from the model
const (
	MinStages   = 4
	MaxStages   = 7
	MinProjects = 1
	MaxProjects = 3
)

// ErrNoStages is returned when generation yields an empty roadmap.
var ErrNoStages = errors.New("roadmap has no stages")

// Builder produces roadmap stages.
type Builder struct {
	invoker llm.Invoker
	log     *logger.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(invoker llm.Invoker, log *logger.Logger) *Builder {
	return &Builder{invoker: invoker, log: logger.OrNop(log)}
}

type response struct {
	Stages []types.RoadmapStage `json:"stages"`
}

// Build returns stages in generated order with ids stage_1..stage_n.
// Stage count, repeated skills and project counts are checked but only
// reported as diagnostics.
func (b *Builder) Build(ctx context.Context, p *types.LearnerProfile, corpus *types.AdvisementCorpus) ([]types.RoadmapStage, []types.Diagnostic, error) {
	if p == nil {
		return nil, nil, fmt.Errorf("learner profile is required")
	}
	units := []string{}
	if corpus != nil && corpus.Units != nil {
		units = corpus.Units
	}
	advisement, err := json.Marshal(units)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode advisement corpus: %w", err)
	}

	var resp response
	err = b.invoker.Invoke(ctx, llm.Request{
		Prompt: prompts.KeyBuildRoadmap,
		Values: map[string]string{
			"Profile":    profile.JSON(p),
			"Advisement": string(advisement),
		},
		Schema: schemas.RoadmapStages,
		Tier:   llm.TierAdvanced,
	}, &resp)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build roadmap: %w", err)
	}
	if len(resp.Stages) == 0 {
		return nil, nil, ErrNoStages
	}

	stages := Normalize(resp.Stages)
	diags := Check(stages)
	for _, d := range diags {
		b.log.Warn("roadmap constraint not met", "stage", d.Scope, "detail", d.Message)
	}
	b.log.Info("built roadmap", "stages", len(stages))
	return stages, diags, nil
}

// Normalize trims every field, drops blank list entries and assigns
// positional ids. The input is not modified.
func Normalize(in []types.RoadmapStage) []types.RoadmapStage {
	out := make([]types.RoadmapStage, len(in))
	for i, s := range in {
		out[i] = types.RoadmapStage{
			ID:       StageID(i),
			Title:    strings.TrimSpace(s.Title),
			Focus:    cleanList(s.Focus),
			Why:      strings.TrimSpace(s.Why),
			Skills:   cleanList(s.Skills),
			Projects: cleanList(s.Projects),
		}
	}
	return out
}

// StageID returns the id for the stage at zero-based position i.
func StageID(i int) string {
	return fmt.Sprintf("stage_%d", i+1)
}

// Check reports stage count, skill repetition and project count problems.
func Check(stages []types.RoadmapStage) []types.Diagnostic {
	var diags []types.Diagnostic

	if n := len(stages); n < MinStages || n > MaxStages {
		diags = append(diags, types.Diagnostic{
			Stage:   types.StageRoadmap,
			Message: fmt.Sprintf("roadmap has %d stages, expected %d-%d", n, MinStages, MaxStages),
		})
	}

	firstSeen := make(map[string]string)
	for _, s := range stages {
		for _, skill := range s.Skills {
			key := strings.ToLower(skill)
			if owner, ok := firstSeen[key]; ok && owner != s.ID {
				diags = append(diags, types.Diagnostic{
					Stage:   types.StageRoadmap,
					Scope:   s.ID,
					Message: fmt.Sprintf("skill %q repeats %s", skill, owner),
				})
				continue
			}
			firstSeen[key] = s.ID
		}

		if n := len(s.Projects); n < MinProjects || n > MaxProjects {
			diags = append(diags, types.Diagnostic{
				Stage:   types.StageRoadmap,
				Scope:   s.ID,
				Message: fmt.Sprintf("stage has %d projects, expected %d-%d", n, MinProjects, MaxProjects),
			})
		}
	}
	return diags
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
