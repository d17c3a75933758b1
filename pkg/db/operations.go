package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Attempt is one pass of the retry loop for a book.
type Attempt struct {
	RunID        int64
	BookID       int64
	AttemptNo    int
	Step         string
	ErrorKind    string
	ErrorMessage string
	Success      bool
}

// Outcome is the final state of a book within a run.
type Outcome struct {
	BookID    int64
	State     string
	Attempts  int
	Included  bool
	LastError string
}

// UpsertBook stores the latest metadata extracted for a book.
func (db *DB) UpsertBook(bookID int64, title, author, coverURL string, genres []string, commentCount int) error {
	genresJSON, err := json.Marshal(genres)
	if err != nil {
		return fmt.Errorf("failed to encode genres: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO books (book_id, title, author, cover_url, genres, comment_count)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			cover_url = excluded.cover_url,
			genres = excluded.genres,
			comment_count = excluded.comment_count,
			updated_at = CURRENT_TIMESTAMP
	`, bookID, title, author, coverURL, string(genresJSON), commentCount)
	if err != nil {
		return fmt.Errorf("failed to upsert book: %w", err)
	}
	return nil
}

// RecordAttempt records one attempt in attempts.
func (db *DB) RecordAttempt(a Attempt) error {
	_, err := db.Exec(`
		INSERT INTO attempts (run_id, book_id, attempt_no, step, error_kind, error_message, success)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.RunID, a.BookID, a.AttemptNo, a.Step, a.ErrorKind, a.ErrorMessage, a.Success)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// RecordOutcome stores the final state of a book for a run.
func (db *DB) RecordOutcome(runID int64, o Outcome) error {
	_, err := db.Exec(`
		INSERT INTO outcomes (run_id, book_id, state, attempts, included, last_error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, book_id) DO UPDATE SET
			state = excluded.state,
			attempts = excluded.attempts,
			included = excluded.included,
			last_error = excluded.last_error
	`, runID, o.BookID, o.State, o.Attempts, o.Included, o.LastError)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// InsertArtifact inserts or updates the file of the given kind for a book,
// returning the artifact_id.
func (db *DB) InsertArtifact(bookID int64, kind, filePath, contentHash string, sizeBytes int64) (int64, error) {
	var existingID int64
	err := db.QueryRow("SELECT artifact_id FROM artifacts WHERE book_id = ? AND kind = ?", bookID, kind).Scan(&existingID)
	if err == nil {
		_, err = db.Exec(`
			UPDATE artifacts
			SET file_path = ?, content_hash = ?, size_bytes = ?, created_at = CURRENT_TIMESTAMP
			WHERE artifact_id = ?
		`, filePath, contentHash, sizeBytes, existingID)
		if err != nil {
			return 0, fmt.Errorf("failed to update artifact: %w", err)
		}
		return existingID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to check existing artifact: %w", err)
	}

	result, err := db.Exec(`
		INSERT INTO artifacts (book_id, kind, file_path, content_hash, size_bytes)
		VALUES (?, ?, ?, ?, ?)
	`, bookID, kind, filePath, contentHash, sizeBytes)
	if err != nil {
		return 0, fmt.Errorf("failed to insert artifact: %w", err)
	}

	artifactID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get artifact ID: %w", err)
	}
	return artifactID, nil
}

// GetAttempts returns the attempts of a book within a run, in order.
func (db *DB) GetAttempts(runID, bookID int64) ([]Attempt, error) {
	rows, err := db.Query(`
		SELECT run_id, book_id, attempt_no, COALESCE(step, ''), COALESCE(error_kind, ''),
		       COALESCE(error_message, ''), success
		FROM attempts
		WHERE run_id = ? AND book_id = ?
		ORDER BY attempt_no
	`, runID, bookID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.RunID, &a.BookID, &a.AttemptNo, &a.Step, &a.ErrorKind, &a.ErrorMessage, &a.Success); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
