package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/llm"
	"github.com/jonathan/roadmap-agent/internal/pipeline"
	"github.com/jonathan/roadmap-agent/internal/postsearch"
	"github.com/jonathan/roadmap-agent/internal/profile"
	"github.com/jonathan/roadmap-agent/internal/server/ratelimit"
	"github.com/jonathan/roadmap-agent/internal/types"
)

type fakeRunner struct {
	result *pipeline.Result
	err    error
	goals  []string
}

func (f *fakeRunner) Run(_ context.Context, goal string) (*pipeline.Result, error) {
	f.goals = append(f.goals, goal)
	return f.result, f.err
}

type fakePosts struct {
	posts []types.Post
	err   error
	reqs  []postsearch.Request
}

func (f *fakePosts) Search(_ context.Context, req postsearch.Request) ([]types.Post, error) {
	f.reqs = append(f.reqs, req)
	return f.posts, f.err
}

// mockRuns implements a minimal in-memory RunStore
type mockRuns struct {
	runs    map[uuid.UUID]*db.Run
	filters []db.RunFilters
}

func (m *mockRuns) GetRun(_ context.Context, runID uuid.UUID) (*db.Run, error) {
	run, ok := m.runs[runID]
	if !ok {
		return nil, nil
	}
	return run, nil
}

func (m *mockRuns) ListRuns(_ context.Context, filters db.RunFilters) ([]db.Run, error) {
	m.filters = append(m.filters, filters)
	out := make([]db.Run, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, *r)
	}
	return out, nil
}

var sampleResult = &pipeline.Result{
	RunID: uuid.MustParse("6f1c2a7e-3d4b-4c5a-9e8f-0a1b2c3d4e5f"),
	Roadmap: &types.Roadmap{
		Goal:          "backend",
		TimelineStyle: types.TimelineStyleHorizontalPath,
		Nodes:         []types.UINode{{ID: "stage_1", Title: "Foundations"}},
	},
	Diagnostics: []types.Diagnostic{{Stage: types.StageCorpus, Scope: "q1", Message: "search failed"}},
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Roadmaps == nil {
		cfg.Roadmaps = &fakeRunner{result: sampleResult}
	}
	if cfg.RateLimit == nil {
		cfg.RateLimit = &ratelimit.Config{Enabled: false}
	}
	s, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return s
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, Config{})

	w := do(t, s.Handler(), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestRoadmapEndpoint(t *testing.T) {
	runner := &fakeRunner{result: sampleResult}
	s := newTestServer(t, Config{Roadmaps: runner})

	w := do(t, s.Handler(), http.MethodPost, "/roadmap", `{"goal": "become a backend engineer"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp RoadmapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, sampleResult.RunID.String(), resp.RunID)
	require.NotNil(t, resp.Data)
	assert.Equal(t, types.TimelineStyleHorizontalPath, resp.Data.TimelineStyle)
	assert.Equal(t, "stage_1", resp.Data.Nodes[0].ID)
	assert.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, []string{"become a backend engineer"}, runner.goals)
}

func TestRoadmapEndpoint_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing goal", `{}`},
		{"blank goal", `{"goal": "   "}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{result: sampleResult}
			s := newTestServer(t, Config{Roadmaps: runner})

			w := do(t, s.Handler(), http.MethodPost, "/roadmap", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["success"])
			assert.NotEmpty(t, resp["error"])
			assert.Empty(t, runner.goals)
		})
	}
}

func TestRoadmapEndpoint_PipelineFailure(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{
			name:   "stage failure",
			err:    &pipeline.StageError{Stage: types.StageRoadmap, Err: errors.New("boom")},
			status: http.StatusInternalServerError,
		},
		{
			name:   "rate limit exhausted",
			err:    &pipeline.StageError{Stage: types.StageProfile, Err: &llm.InvokeError{Name: "extract-profile", Message: "rate limit retries exhausted", Cause: &llm.RateLimitError{}}},
			status: http.StatusServiceUnavailable,
		},
		{
			name:   "invalid goal",
			err:    &pipeline.StageError{Stage: types.StageProfile, Err: &profile.ValidationError{Field: "goal", Message: "goal text is required"}},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, Config{Roadmaps: &fakeRunner{err: tt.err}})

			w := do(t, s.Handler(), http.MethodPost, "/roadmap", `{"goal": "x"}`)
			assert.Equal(t, tt.status, w.Code)
			resp := decode(t, w)
			assert.Equal(t, false, resp["success"])
			assert.Contains(t, resp["error"], "stage failed")
			assert.NotContains(t, resp, "data")
		})
	}
}

func TestSearchPostsEndpoint(t *testing.T) {
	posts := &fakePosts{posts: []types.Post{{OriginalPostID: "p1", Summary: "Go tips"}}}
	s := newTestServer(t, Config{Posts: posts})

	w := do(t, s.Handler(), http.MethodPost, "/search_posts", `{"query": "go", "limit": 5, "advanced_mode": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	data := resp["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "p1", data[0].(map[string]any)["original_post_id"])
	assert.Equal(t, []postsearch.Request{{Query: "go", Limit: 5, AdvancedMode: true}}, posts.reqs)
}

func TestSearchPostsEndpoint_Errors(t *testing.T) {
	t.Run("no store", func(t *testing.T) {
		s := newTestServer(t, Config{})
		w := do(t, s.Handler(), http.MethodPost, "/search_posts", `{"query": "go"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("semantic unavailable", func(t *testing.T) {
		s := newTestServer(t, Config{Posts: &fakePosts{err: postsearch.ErrSemanticUnavailable}})
		w := do(t, s.Handler(), http.MethodPost, "/search_posts", `{"query": "go", "advanced_mode": true}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "advanced search not available", decode(t, w)["error"])
	})

	t.Run("invalid json", func(t *testing.T) {
		s := newTestServer(t, Config{Posts: &fakePosts{}})
		w := do(t, s.Handler(), http.MethodPost, "/search_posts", `nope`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation", func(t *testing.T) {
		err := fmt.Errorf("invalid search request: %w", &ErrValidation{Field: "query", Message: "required"})
		s := newTestServer(t, Config{Posts: &fakePosts{err: err}})
		w := do(t, s.Handler(), http.MethodPost, "/search_posts", `{"query": ""}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRunsEndpoints(t *testing.T) {
	id := uuid.New()
	completed := time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC)
	runs := &mockRuns{runs: map[uuid.UUID]*db.Run{
		id: {
			ID:          id,
			Goal:        "learn go",
			Status:      db.RunStatusCompleted,
			Roadmap:     json.RawMessage(`{"goal":"learn go","timeline_style":"horizontal_path","nodes":[]}`),
			CreatedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			CompletedAt: &completed,
		},
	}}
	s := newTestServer(t, Config{Runs: runs})
	h := s.Handler()

	t.Run("list", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/runs?status=completed&limit=5", "")
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, float64(1), data["count"])
		item := data["runs"].([]any)[0].(map[string]any)
		assert.Equal(t, "learn go", item["goal"])
		assert.Equal(t, "2026-03-01T12:05:00Z", item["completed_at"])
		assert.Equal(t, db.RunFilters{Status: "completed", Limit: 5}, runs.filters[0])
	})

	t.Run("get", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/runs/"+id.String(), "")
		require.Equal(t, http.StatusOK, w.Code)
		data := decode(t, w)["data"].(map[string]any)
		assert.Equal(t, "horizontal_path", data["roadmap"].(map[string]any)["timeline_style"])
	})

	t.Run("not found", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/runs/"+uuid.NewString(), "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/runs/not-a-uuid", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestRunsEndpoints_NoStore(t *testing.T) {
	s := newTestServer(t, Config{})

	w := do(t, s.Handler(), http.MethodGet, "/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, Config{})

	w := do(t, s.Handler(), http.MethodOptions, "/roadmap", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimitMiddleware(t *testing.T) {
	s := newTestServer(t, Config{RateLimit: &ratelimit.Config{
		Enabled:         true,
		DefaultLimit:    100,
		DefaultWindow:   time.Minute,
		EndpointConfigs: ratelimit.DefaultEndpointConfigs(),
	}})
	h := s.Handler()

	for i := 0; i < 2; i++ {
		w := do(t, h, http.MethodPost, "/roadmap", `{"goal": "x"}`)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "10", w.Header().Get("X-RateLimit-Limit"))
	}

	w := do(t, h, http.MethodPost, "/roadmap", `{"goal": "x"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	resp := decode(t, w)
	assert.Equal(t, "rate_limit_exceeded", resp["error"])

	// Health stays reachable
	w = do(t, h, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ErrValidation{Field: "goal"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", &profile.ValidationError{Field: "goal"}), http.StatusBadRequest},
		{postsearch.ErrSemanticUnavailable, http.StatusServiceUnavailable},
		{&llm.RateLimitError{}, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.err), "%v", tt.err)
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	s := newTestServer(t, Config{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
