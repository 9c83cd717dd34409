// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

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

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/jeranaias/rigrun-setup/internal/config"
	"github.com/jeranaias/rigrun-setup/internal/logging"
	"github.com/jeranaias/rigrun-setup/internal/setup"
)

// FileName is the database file inside the state directory.
const FileName = "history.db"

// DefaultKeep is how many runs Prune leaves behind.
const DefaultKeep = 50

var (
	ErrNotFound  = errors.New("run not found")
	ErrAmbiguous = errors.New("run id prefix is ambiguous")
)

// StepRecord is the stored form of a setup.Step.
type StepRecord struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Detail      string `json:"detail,omitempty"`
	Remediation string `json:"remediation,omitempty"`
}

// Run is one recorded invocation.
type Run struct {
	ID            string
	StartedAt     time.Time
	Duration      time.Duration
	Mode          config.Mode
	Model         string
	ContextTokens int
	ExitCode      int
	Warnings      int
	Steps         []StepRecord
}

// NewID returns a fresh run id.
func NewID() string {
	return uuid.New().String()
}

// ShortID is the prefix shown in listings.
func (r Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}

// FromResult builds the record of a finished run.
func FromResult(id string, mode config.Mode, started time.Time, res setup.Result) Run {
	run := Run{
		ID:            id,
		StartedAt:     started,
		Duration:      time.Since(started),
		Mode:          mode,
		Model:         res.Model,
		ContextTokens: res.ContextTokens,
		ExitCode:      res.ExitCode,
		Warnings:      res.Report.Count(setup.StatusWarn),
	}
	for _, s := range res.Report.Steps {
		run.Steps = append(run.Steps, StepRecord{
			Name:        s.Name,
			Status:      s.Status.String(),
			Detail:      s.Detail,
			Remediation: s.Remediation,
		})
	}
	return run
}

// Store is the SQLite-backed run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores run.
func (s *Store) Record(ctx context.Context, run Run) error {
	if run.ID == "" {
		run.ID = NewID()
	}
	steps, err := json.Marshal(run.Steps)
	if err != nil {
		return fmt.Errorf("failed to encode steps: %w", err)
	}
	if run.Steps == nil {
		steps = []byte("[]")
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, duration_ms, mode, model, context_tokens, exit_code, warnings, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UnixMilli(), run.Duration.Milliseconds(), string(run.Mode),
		run.Model, run.ContextTokens, run.ExitCode, run.Warnings, string(steps))
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	logging.Log.WithField("run", run.ID).Debug("run recorded")
	return nil
}

const selectRuns = `SELECT id, started_at, duration_ms, mode, model, context_tokens, exit_code, warnings, steps FROM runs`

// Recent returns up to limit runs, newest first. limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := selectRuns + ` ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns the run whose id starts with prefix.
func (s *Store) Get(ctx context.Context, prefix string) (Run, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return Run{}, ErrNotFound
	}
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix) + "%"
	rows, err := s.db.QueryContext(ctx, selectRuns+` WHERE id LIKE ? ESCAPE '\' LIMIT 2`, pattern)
	if err != nil {
		return Run{}, fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguous, prefix)
	}
}

// Prune deletes all but the newest keep runs and returns how many went.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM runs WHERE id NOT IN (
			SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		startedMs  int64
		durationMs int64
		mode       string
		steps      string
	)
	if err := row.Scan(&run.ID, &startedMs, &durationMs, &mode, &run.Model, &run.ContextTokens, &run.ExitCode, &run.Warnings, &steps); err != nil {
		return Run{}, fmt.Errorf("failed to read run: %w", err)
	}
	run.StartedAt = time.UnixMilli(startedMs)
	run.Duration = time.Duration(durationMs) * time.Millisecond
	run.Mode = config.Mode(mode)
	if err := json.Unmarshal([]byte(steps), &run.Steps); err != nil {
		return Run{}, fmt.Errorf("failed to decode steps of %s: %w", run.ID, err)
	}
	return run, nil
}
