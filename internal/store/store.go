// Package store persists recording sessions, transcripts, applied field
// updates, and manual overrides in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("session not found")

// Store manages session persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// SessionRecord is the persisted view of a recording session.
type SessionRecord struct {
	ID                 string
	FormType           string
	PatientContext     map[string]any
	LanguageCode       string
	Transcript         string
	OriginalTranscript string
	LastError          string
	StartedAt          time.Time
	EndedAt            *time.Time
}

// FieldUpdateRecord is one applied auto-fill value.
type FieldUpdateRecord struct {
	SessionID  string
	ChunkIndex int
	FieldPath  string
	Value      any
	Confidence float64
	AppliedAt  time.Time
}

// Open initializes or connects to the session database and applies migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	s := &Store{db: db, path: path}
	if err := s.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			form_type TEXT NOT NULL,
			patient_context_json TEXT,
			language_code TEXT,
			transcript TEXT NOT NULL DEFAULT '',
			original_transcript TEXT NOT NULL DEFAULT '',
			last_error TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			ended_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS field_updates (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			chunk_index INTEGER NOT NULL,
			field_path TEXT NOT NULL,
			value_json TEXT,
			confidence REAL NOT NULL DEFAULT 0,
			applied_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_field_updates_session
			ON field_updates(session_id)`,
		`CREATE TABLE IF NOT EXISTS manual_overrides (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			field_path TEXT NOT NULL,
			marked_at TEXT NOT NULL,
			UNIQUE(session_id, field_path)
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateSession inserts a new session row.
func (s *Store) CreateSession(ctx context.Context, id, formType string, patientContext map[string]any) error {
	contextJSON, err := json.Marshal(patientContext)
	if err != nil {
		return fmt.Errorf("marshal patient context: %w", err)
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (id, form_type, patient_context_json, started_at)
		 VALUES (?, ?, ?, ?)`,
		id, formType, string(contextJSON), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// FinishSession records the final transcripts, language, error, and end time.
func (s *Store) FinishSession(ctx context.Context, id, languageCode, transcript, originalTranscript, lastError string) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE sessions
		 SET language_code = ?, transcript = ?, original_transcript = ?, last_error = ?, ended_at = ?
		 WHERE id = ?`,
		languageCode, transcript, originalTranscript, lastError,
		time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveFieldUpdates records the applied values of one extraction chunk.
func (s *Store) SaveFieldUpdates(ctx context.Context, sessionID string, chunkIndex int, updates map[string]any, scores map[string]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for path, value := range updates {
		valueJSON, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("marshal field value %s: %w", path, err)
		}
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO field_updates (session_id, chunk_index, field_path, value_json, confidence, applied_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sessionID, chunkIndex, path, string(valueJSON), scores[path], now,
		); err != nil {
			return fmt.Errorf("insert field update: %w", err)
		}
	}

	return tx.Commit()
}

// SaveOverride records a manual override. Idempotent per (session, path).
func (s *Store) SaveOverride(ctx context.Context, sessionID, fieldPath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO manual_overrides (session_id, field_path, marked_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(session_id, field_path) DO NOTHING`,
		sessionID, fieldPath, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert override: %w", err)
	}
	return nil
}

// GetSession fetches one session by ID.
func (s *Store) GetSession(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, form_type, patient_context_json, language_code,
		        transcript, original_transcript, last_error, started_at, ended_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	var rec SessionRecord
	var contextJSON, languageCode, startedAt sql.NullString
	var endedAt sql.NullString
	err := row.Scan(
		&rec.ID, &rec.FormType, &contextJSON, &languageCode,
		&rec.Transcript, &rec.OriginalTranscript, &rec.LastError,
		&startedAt, &endedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	rec.LanguageCode = languageCode.String
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &rec.PatientContext); err != nil {
			return nil, fmt.Errorf("unmarshal patient context: %w", err)
		}
	}
	if startedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedAt.String); err == nil {
			rec.StartedAt = t
		}
	}
	if endedAt.Valid && endedAt.String != "" {
		if t, err := time.Parse(time.RFC3339Nano, endedAt.String); err == nil {
			rec.EndedAt = &t
		}
	}

	return &rec, nil
}

// ListFieldUpdates returns all applied field updates for a session in
// application order.
func (s *Store) ListFieldUpdates(ctx context.Context, sessionID string) ([]FieldUpdateRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT session_id, chunk_index, field_path, value_json, confidence, applied_at
		 FROM field_updates WHERE session_id = ? ORDER BY applied_at, chunk_index`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query field updates: %w", err)
	}
	defer rows.Close()

	var out []FieldUpdateRecord
	for rows.Next() {
		var rec FieldUpdateRecord
		var valueJSON sql.NullString
		var appliedAt string
		if err := rows.Scan(&rec.SessionID, &rec.ChunkIndex, &rec.FieldPath, &valueJSON, &rec.Confidence, &appliedAt); err != nil {
			return nil, fmt.Errorf("scan field update: %w", err)
		}
		if valueJSON.Valid && valueJSON.String != "" {
			if err := json.Unmarshal([]byte(valueJSON.String), &rec.Value); err != nil {
				return nil, fmt.Errorf("unmarshal field value: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, appliedAt); err == nil {
			rec.AppliedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListOverrides returns the manually overridden paths for a session.
func (s *Store) ListOverrides(ctx context.Context, sessionID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT field_path FROM manual_overrides WHERE session_id = ? ORDER BY marked_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query overrides: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out = append(out, path)
	}
	return out, rows.Err()
}
