package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const runsTableDDL = `CREATE TABLE IF NOT EXISTS roadmap_runs (
	id           UUID PRIMARY KEY,
	goal         TEXT NOT NULL,
	status       TEXT NOT NULL,
	error        TEXT,
	roadmap      JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	completed_at TIMESTAMPTZ
)`

// EnsureRunsTable creates the roadmap_runs table when it does not exist.
// The posts and documents tables belong to the ingestion service and are never created here.
func (db *DB) EnsureRunsTable(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, runsTableDDL); err != nil {
		return fmt.Errorf("failed to create roadmap_runs table: %w", err)
	}
	return nil
}

// CreateRun inserts a running record for goal under runID.
func (db *DB) CreateRun(ctx context.Context, runID uuid.UUID, goal string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO roadmap_runs (id, goal, status) VALUES ($1, $2, $3)`,
		runID, goal, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records the final status of a run. roadmap may be nil for failed runs.
func (db *DB) CompleteRun(ctx context.Context, runID uuid.UUID, status, errMsg string, roadmap any) error {
	var content []byte
	if roadmap != nil {
		b, err := json.Marshal(roadmap)
		if err != nil {
			return fmt.Errorf("failed to marshal roadmap: %w", err)
		}
		content = b
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE roadmap_runs
		 SET status = $1, error = NULLIF($2, ''), roadmap = $3, completed_at = NOW()
		 WHERE id = $4`,
		status, errMsg, content, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun retrieves a run by ID, returning nil when it does not exist.
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*Run, error) {
	var run Run
	var roadmap []byte
	err := db.pool.QueryRow(ctx,
		`SELECT id, goal, status, COALESCE(error, ''), roadmap, created_at, completed_at
		 FROM roadmap_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.Goal, &run.Status, &run.Error, &roadmap, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if len(roadmap) > 0 {
		run.Roadmap = roadmap
	}
	return &run, nil
}

// ListRuns retrieves recent runs without their roadmap payloads.
func (db *DB) ListRuns(ctx context.Context, filters RunFilters) ([]Run, error) {
	if filters.Limit <= 0 {
		filters.Limit = 50
	}

	query := `SELECT id, goal, status, COALESCE(error, ''), created_at, completed_at
		FROM roadmap_runs WHERE 1=1`
	args := []any{}
	argNum := 1

	if filters.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, filters.Status)
		argNum++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argNum)
	args = append(args, filters.Limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.ID, &run.Goal, &run.Status, &run.Error, &run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}
