package queries

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/llm/llmtest"
	"github.com/jonathan/roadmap-agent/internal/prompts"
	"github.com/jonathan/roadmap-agent/internal/types"
)

var student = &types.LearnerProfile{
	Background:      "student",
	CurrentSkills:   []string{"Java"},
	TimeConstraints: "6 months",
	CareerGoals:     []string{"backend engineer"},
	Conflicts:       []string{},
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "keeps order",
			in:   []string{"backend roadmap 6 months", "backend skills 2025", "backend projects LinkedIn"},
			want: []string{"backend roadmap 6 months", "backend skills 2025", "backend projects LinkedIn"},
		},
		{
			name: "drops blanks and duplicates",
			in:   []string{" backend  roadmap ", "", "Backend Roadmap", "   ", "job market"},
			want: []string{"backend roadmap", "job market"},
		},
		{
			name: "caps at six",
			in:   []string{"a", "b", "c", "d", "e", "f", "g", "h"},
			want: []string{"a", "b", "c", "d", "e", "f"},
		},
		{
			name: "nil",
			in:   nil,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestGenerate(t *testing.T) {
	fake := llmtest.NewFakeInvoker().On(prompts.KeyGenerateQueries, `{"queries": [
		"Backend roadmap for CS students in 6 months Reddit",
		"Essential backend skills for junior developers",
		"Backend job market for new grads LinkedIn",
		"Backend roadmap for CS students in 6 months reddit"
	]}`)

	set, err := NewGenerator(fake, nil).Generate(context.Background(), student)
	require.NoError(t, err)

	assert.Len(t, set.Queries, 3)
	for _, q := range set.Queries {
		assert.Contains(t, q, "ackend")
	}
	assert.Contains(t, fake.Requests()[0].Values["Profile"], `"time_constraints":"6 months"`)
}

func TestGenerate_AllBlank(t *testing.T) {
	fake := llmtest.NewFakeInvoker().On(prompts.KeyGenerateQueries, `{"queries": [" ", ""]}`)

	_, err := NewGenerator(fake, nil).Generate(context.Background(), student)
	assert.ErrorIs(t, err, ErrNoQueries)
}

func TestGenerate_FailurePropagates(t *testing.T) {
	boom := errors.New("generation failed")
	fake := llmtest.NewFakeInvoker().Fail(prompts.KeyGenerateQueries, boom)

	_, err := NewGenerator(fake, nil).Generate(context.Background(), student)
	assert.ErrorIs(t, err, boom)
}

func TestGenerate_NilProfile(t *testing.T) {
	_, err := NewGenerator(llmtest.NewFakeInvoker(), nil).Generate(context.Background(), nil)
	assert.Error(t, err)
}
