package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/roadmap-agent/internal/db"
	"github.com/jonathan/roadmap-agent/internal/postsearch"
	"github.com/jonathan/roadmap-agent/internal/types"
)

// envelope is the response shape shared by every data endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RoadmapRequest represents the request body for /roadmap
type RoadmapRequest struct {
	Goal string `json:"goal"`
}

// RoadmapResponse represents the response for /roadmap
type RoadmapResponse struct {
	Success     bool               `json:"success"`
	Data        *types.Roadmap     `json:"data,omitempty"`
	RunID       string             `json:"run_id,omitempty"`
	Diagnostics []types.Diagnostic `json:"diagnostics,omitempty"`
	Error       string             `json:"error,omitempty"`
}

// RunItem is the list form of a recorded run.
type RunItem struct {
	ID          string `json:"id"`
	Goal        string `json:"goal"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// handleRoadmap runs the pipeline synchronously for one goal.
func (s *Server) handleRoadmap(w http.ResponseWriter, r *http.Request) {
	var req RoadmapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Goal) == "" {
		s.errorResponse(w, http.StatusBadRequest, (&ErrValidation{Field: "goal", Message: "goal is required"}).Error())
		return
	}

	result, err := s.roadmaps.Run(r.Context(), req.Goal)
	if err != nil {
		s.log.Error("roadmap run failed", "error", err)
		s.jsonResponse(w, HTTPStatus(err), RoadmapResponse{Success: false, Error: err.Error()})
		return
	}

	s.jsonResponse(w, http.StatusOK, RoadmapResponse{
		Success:     true,
		Data:        result.Roadmap,
		RunID:       result.RunID.String(),
		Diagnostics: result.Diagnostics,
	})
}

// handleSearchPosts runs a keyword or semantic post search.
func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) {
	if s.posts == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Database not connected")
		return
	}

	var req postsearch.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	posts, err := s.posts.Search(r.Context(), req)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: posts})
}

// handleListRuns lists recent runs, optionally filtered by status.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Database not connected")
		return
	}

	filters := db.RunFilters{Status: r.URL.Query().Get("status")}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filters.Limit = limit
		}
	}

	runs, err := s.runs.ListRuns(r.Context(), filters)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}

	items := make([]RunItem, 0, len(runs))
	for _, run := range runs {
		item := RunItem{
			ID:        run.ID.String(),
			Goal:      run.Goal,
			Status:    run.Status,
			Error:     run.Error,
			CreatedAt: run.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if run.CompletedAt != nil {
			item.CompletedAt = run.CompletedAt.Format("2006-01-02T15:04:05Z07:00")
		}
		items = append(items, item)
	}

	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"runs":  items,
		"count": len(items),
	}})
}

// handleGetRun returns one run including its roadmap.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "Database not connected")
		return
	}

	runID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid run ID")
		return
	}

	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "Database error: "+err.Error())
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "Run not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, envelope{Success: true, Data: run})
}
