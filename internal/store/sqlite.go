// Package store persists recordings and transformation runs in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"murmur/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	subtitle TEXT NOT NULL DEFAULT '',
	createdAt INTEGER NOT NULL,
	updatedAt INTEGER NOT NULL,
	audio BLOB,
	transcribedText TEXT NOT NULL DEFAULT '',
	transcriptionStatus TEXT NOT NULL DEFAULT 'UNPROCESSED'
);

CREATE TABLE IF NOT EXISTS transformation_runs (
	id TEXT PRIMARY KEY,
	transformationId TEXT NOT NULL,
	recordingId TEXT NOT NULL DEFAULT '',
	input TEXT NOT NULL,
	output TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	stepRuns TEXT NOT NULL DEFAULT '[]',
	startedAt INTEGER NOT NULL,
	completedAt INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_transformation ON transformation_runs(transformationId, startedAt DESC);
CREATE INDEX IF NOT EXISTS idx_runs_recording ON transformation_runs(recordingId, startedAt DESC);
`

// Store backs the recording and run stores with one SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path with WAL enabled.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Recordings returns the recording store view.
func (s *Store) Recordings() *RecordingStore { return &RecordingStore{db: s.db} }

// Runs returns the transformation run store view.
func (s *Store) Runs() *RunStore { return &RunStore{db: s.db} }

// RecordingStore persists recordings.
type RecordingStore struct {
	db *sql.DB
}

func (r *RecordingStore) Create(ctx context.Context, rec *domain.Recording) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recordings (id, title, subtitle, createdAt, updatedAt, audio, transcribedText, transcriptionStatus)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Title, rec.Subtitle, rec.CreatedAt.UnixMilli(), rec.UpdatedAt.UnixMilli(),
		rec.Audio, rec.TranscribedText, string(rec.TranscriptionStatus))
	if err != nil {
		return fmt.Errorf("failed to insert recording: %w", err)
	}
	return nil
}

func (r *RecordingStore) Update(ctx context.Context, rec *domain.Recording) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recordings
		SET title = ?, subtitle = ?, updatedAt = ?, audio = ?, transcribedText = ?, transcriptionStatus = ?
		WHERE id = ?
	`, rec.Title, rec.Subtitle, rec.UpdatedAt.UnixMilli(), rec.Audio,
		rec.TranscribedText, string(rec.TranscriptionStatus), rec.ID)
	if err != nil {
		return fmt.Errorf("failed to update recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("recording %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func (r *RecordingStore) Get(ctx context.Context, id string) (*domain.Recording, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, subtitle, createdAt, updatedAt, audio, transcribedText, transcriptionStatus
		FROM recordings
		WHERE id = ?
	`, id)
	rec, err := scanRecording(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("recording %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return rec, nil
}

func (r *RecordingStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM recordings WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("failed to delete recordings: %w", err)
	}
	return nil
}

func (r *RecordingStore) List(ctx context.Context) ([]domain.Recording, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, subtitle, createdAt, updatedAt, audio, transcribedText, transcriptionStatus
		FROM recordings
		ORDER BY createdAt DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecording(row rowScanner) (*domain.Recording, error) {
	var rec domain.Recording
	var createdAt, updatedAt int64
	var status string
	if err := row.Scan(&rec.ID, &rec.Title, &rec.Subtitle, &createdAt, &updatedAt,
		&rec.Audio, &rec.TranscribedText, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan recording: %w", err)
	}
	rec.CreatedAt = time.UnixMilli(createdAt)
	rec.UpdatedAt = time.UnixMilli(updatedAt)
	rec.TranscriptionStatus = domain.TranscriptionStatus(status)
	return &rec, nil
}

// RunStore persists transformation runs. Step runs are stored as a JSON
// column; they are only ever read back as a whole.
type RunStore struct {
	db *sql.DB
}

func (r *RunStore) Save(ctx context.Context, run *domain.TransformationRun) error {
	stepRuns, err := json.Marshal(run.StepRuns)
	if err != nil {
		return fmt.Errorf("failed to encode step runs: %w", err)
	}
	var completedAt any
	if run.CompletedAt != nil {
		completedAt = run.CompletedAt.UnixMilli()
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO transformation_runs (id, transformationId, recordingId, input, output, error, stepRuns, startedAt, completedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			output = excluded.output,
			error = excluded.error,
			stepRuns = excluded.stepRuns,
			completedAt = excluded.completedAt
	`, run.ID, run.TransformationID, run.RecordingID, run.Input, run.Output, run.Error,
		string(stepRuns), run.StartedAt.UnixMilli(), completedAt)
	if err != nil {
		return fmt.Errorf("failed to save transformation run: %w", err)
	}
	return nil
}

func (r *RunStore) ListByTransformation(ctx context.Context, transformationID string) ([]domain.TransformationRun, error) {
	return r.list(ctx, `transformationId = ?`, transformationID)
}

func (r *RunStore) ListByRecording(ctx context.Context, recordingID string) ([]domain.TransformationRun, error) {
	return r.list(ctx, `recordingId = ?`, recordingID)
}

func (r *RunStore) list(ctx context.Context, where string, arg any) ([]domain.TransformationRun, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, transformationId, recordingId, input, output, error, stepRuns, startedAt, completedAt
		FROM transformation_runs
		WHERE `+where+`
		ORDER BY startedAt DESC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query transformation runs: %w", err)
	}
	defer rows.Close()

	var out []domain.TransformationRun
	for rows.Next() {
		var run domain.TransformationRun
		var stepRuns string
		var startedAt int64
		var completedAt sql.NullInt64
		if err := rows.Scan(&run.ID, &run.TransformationID, &run.RecordingID, &run.Input,
			&run.Output, &run.Error, &stepRuns, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transformation run: %w", err)
		}
		if err := json.Unmarshal([]byte(stepRuns), &run.StepRuns); err != nil {
			return nil, fmt.Errorf("failed to decode step runs: %w", err)
		}
		run.StartedAt = time.UnixMilli(startedAt)
		if completedAt.Valid {
			t := time.UnixMilli(completedAt.Int64)
			run.CompletedAt = &t
		}
		out = append(out, run)
	}
	return out, rows.Err()
}
