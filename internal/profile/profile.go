// Package profile extracts a structured learner profile from a free-text learning goal.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/logger"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/schemas"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// ValidationError reports unusable input before any generation call is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error in %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Extractor turns goal text into a LearnerProfile.
type Extractor struct {
	invoker llm.Invoker
	log     *logger.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(invoker llm.Invoker, log *logger.Logger) *Extractor {
	return &Extractor{invoker: invoker, log: logger.OrNop(log)}
}

type response struct {
	Profile types.LearnerProfile `json:"profile"`
}

// Extract infers a populated profile even for terse goals. Generation failures propagate.
func (e *Extractor) Extract(ctx context.Context, goal string) (*types.LearnerProfile, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, &ValidationError{Field: "goal", Message: "goal text is required"}
	}

	var resp response
	err := e.invoker.Invoke(ctx, llm.Request{
		Prompt: prompts.KeyExtractProfile,
		Values: map[string]string{"Goal": goal},
		Schema: schemas.LearnerProfile,
		Tier:   llm.TierStandard,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to extract learner profile: %w", err)
	}

	p := normalize(resp.Profile)
	e.log.Debug("extracted learner profile",
		"background", p.Background,
		"time_constraints", p.TimeConstraints,
		"skills", len(p.CurrentSkills),
	)
	return &p, nil
}

// normalize trims text fields and replaces nil lists with empty ones.
func normalize(p types.LearnerProfile) types.LearnerProfile {
	p.Background = strings.TrimSpace(p.Background)
	p.TimeConstraints = strings.TrimSpace(p.TimeConstraints)
	p.CurrentSkills = cleanList(p.CurrentSkills)
	p.CareerGoals = cleanList(p.CareerGoals)
	p.Conflicts = cleanList(p.Conflicts)
	return p
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

// JSON renders a profile for inclusion in downstream prompts.
func JSON(p *types.LearnerProfile) string {
	b, err := json.Marshal(p)
	if err != nil {
		return "{}"
	}
	return string(b)
}
