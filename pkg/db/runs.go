package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run represents one crawl invocation.
type Run struct {
	RunID          int64
	CreatedAt      time.Time
	FinishedAt     sql.NullTime
	Source         string
	IDCount        int
	SuccessCount   int
	IncludedCount  int
	NotFoundCount  int
	ExhaustedCount int
	ManifestPath   string
}

// RunStats are the counters written when a run finishes.
type RunStats struct {
	Success      int
	Included     int
	NotFound     int
	Exhausted    int
	ManifestPath string
}

// CreateRun inserts a new run and returns its id.
func (db *DB) CreateRun(source string, idCount int) (int64, error) {
	result, err := db.Exec(`
		INSERT INTO runs (source, id_count)
		VALUES (?, ?)
	`, source, idCount)
	if err != nil {
		return 0, fmt.Errorf("failed to create run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}
	return runID, nil
}

// FinishRun stores the final counters of a run.
func (db *DB) FinishRun(runID int64, stats RunStats) error {
	res, err := db.Exec(`
		UPDATE runs
		SET finished_at = CURRENT_TIMESTAMP,
		    success_count = ?, included_count = ?, not_found_count = ?,
		    exhausted_count = ?, manifest_path = ?
		WHERE run_id = ?
	`, stats.Success, stats.Included, stats.NotFound, stats.Exhausted, stats.ManifestPath, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %d not found", runID)
	}
	return nil
}

const runColumns = `run_id, created_at, finished_at, source, id_count, success_count,
	included_count, not_found_count, exhausted_count, COALESCE(manifest_path, '')`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var r Run
	err := row.Scan(&r.RunID, &r.CreatedAt, &r.FinishedAt, &r.Source, &r.IDCount, &r.SuccessCount,
		&r.IncludedCount, &r.NotFoundCount, &r.ExhaustedCount, &r.ManifestPath)
	return r, err
}

// ListRuns returns the most recent runs first.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY run_id DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunByID returns a single run.
func (db *DB) GetRunByID(runID int64) (*Run, error) {
	r, err := scanRun(db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %d not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &r, nil
}

// GetRunOutcomes returns the per-book outcomes of a run in book order.
// With failedOnly, successful and included books are left out.
func (db *DB) GetRunOutcomes(runID int64, failedOnly bool) ([]Outcome, error) {
	query := `
		SELECT book_id, state, attempts, included, COALESCE(last_error, '')
		FROM outcomes
		WHERE run_id = ?
	`
	if failedOnly {
		query += ` AND NOT (state = 'success' AND included = 1)`
	}
	query += ` ORDER BY book_id`

	rows, err := db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []Outcome
	for rows.Next() {
		var o Outcome
		if err := rows.Scan(&o.BookID, &o.State, &o.Attempts, &o.Included, &o.LastError); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
