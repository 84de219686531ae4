package runs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"reelforge/internal/config"
	"reelforge/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; existing databases must be cleared after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Run statuses persisted in the registry.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Record is one run's registry row.
type Record struct {
	RunID             string
	Prompt            string
	Status            string
	FailedStep        string
	Error             string
	TargetDurationSec int
	FPS               int
	SegmentCount      int
	Attempts          map[string]int
	ReworkRounds      map[string]int
	Manifest          *Manifest
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run database under the configured runs
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.RunsDir, "runs.db"))
}

// OpenPath opens the run database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Create registers a run in the running state.
func (s *Store) Create(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.RunID) == "" {
		return services.Wrap(services.ErrConfiguration, "runs", "create", "run id required", nil)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            run_id, prompt, status, target_duration_sec, fps, segment_count,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Prompt, StatusRunning,
		rec.TargetDurationSec, rec.FPS, rec.SegmentCount,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Finish records a run's terminal status along with its counters and, on
// success, its manifest.
func (s *Store) Finish(ctx context.Context, rec Record) error {
	attemptsJSON, err := marshalCounts(rec.Attempts)
	if err != nil {
		return fmt.Errorf("marshal attempts: %w", err)
	}
	reworkJSON, err := marshalCounts(rec.ReworkRounds)
	if err != nil {
		return fmt.Errorf("marshal rework rounds: %w", err)
	}
	var manifestJSON any
	if rec.Manifest != nil {
		encoded, err := json.Marshal(rec.Manifest)
		if err != nil {
			return fmt.Errorf("marshal manifest: %w", err)
		}
		manifestJSON = string(encoded)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            status = ?, failed_step = ?, error = ?,
            attempts_json = ?, rework_json = ?, manifest_json = ?, updated_at = ?
        WHERE run_id = ?`,
		rec.Status, nullableString(rec.FailedStep), nullableString(rec.Error),
		attemptsJSON, reworkJSON, manifestJSON, now,
		rec.RunID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return services.Wrap(services.ErrNotFound, "runs", "finish", "run "+rec.RunID, nil)
	}
	return nil
}

// Get returns one run by id.
func (s *Store) Get(ctx context.Context, runID string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE run_id = ?", runID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "runs", "get", "run "+runID, nil)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

const selectColumns = `SELECT run_id, prompt, status, failed_step, error,
    target_duration_sec, fps, segment_count,
    attempts_json, rework_json, manifest_json, created_at, updated_at FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var failedStep, errText, attemptsJSON, reworkJSON, manifestJSON sql.NullString
	var createdAt, updatedAt string
	err := row.Scan(
		&rec.RunID, &rec.Prompt, &rec.Status, &failedStep, &errText,
		&rec.TargetDurationSec, &rec.FPS, &rec.SegmentCount,
		&attemptsJSON, &reworkJSON, &manifestJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.FailedStep = failedStep.String
	rec.Error = errText.String
	if attemptsJSON.Valid {
		if err := json.Unmarshal([]byte(attemptsJSON.String), &rec.Attempts); err != nil {
			return nil, fmt.Errorf("decode attempts: %w", err)
		}
	}
	if reworkJSON.Valid {
		if err := json.Unmarshal([]byte(reworkJSON.String), &rec.ReworkRounds); err != nil {
			return nil, fmt.Errorf("decode rework rounds: %w", err)
		}
	}
	if manifestJSON.Valid {
		var manifest Manifest
		if err := json.Unmarshal([]byte(manifestJSON.String), &manifest); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		rec.Manifest = &manifest
	}
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		rec.CreatedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return &rec, nil
}

func marshalCounts(counts map[string]int) (any, error) {
	if len(counts) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}
	return string(encoded), nil
}

func nullableString(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
