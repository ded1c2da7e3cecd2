package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/openfroyo/zbxsync/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteJournal implements engine.Journal on a SQLite database.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

var _ engine.Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal creates a journal for the database at path. Call Init
// and Migrate before use, or use OpenJournal.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteJournal{path: path}, nil
}

// OpenJournal opens the database at path and applies migrations.
func OpenJournal(ctx context.Context, path string) (*SQLiteJournal, error) {
	j, err := NewSQLiteJournal(path)
	if err != nil {
		return nil, err
	}
	if err := j.Init(ctx); err != nil {
		return nil, err
	}
	if err := j.Migrate(ctx); err != nil {
		_ = j.Close()
		return nil, err
	}
	return j, nil
}

// Init opens the database connection with WAL mode and foreign keys.
func (j *SQLiteJournal) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", j.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	j.db = db
	return nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (j *SQLiteJournal) Migrate(_ context.Context) error {
	if j.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite.WithInstance(j.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// StartRun records a new running run.
func (j *SQLiteJournal) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, started_at) VALUES (?, ?, ?)`,
		runID, string(engine.RunStatusRunning), startedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// RecordStep appends a step result to a run.
func (j *SQLiteJournal) RecordStep(ctx context.Context, runID string, result engine.StepResult, stepErr error) error {
	changes := result.Changes
	if changes == nil {
		changes = []engine.Change{}
	}
	raw, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}

	var errText *string
	if stepErr != nil {
		s := stepErr.Error()
		errText = &s
	}

	query := `
		INSERT INTO steps (run_id, seq, step_id, kind, natural_key, resource_id, outcome,
			changes, message, duration_ms, error, recorded_at)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM steps WHERE run_id = ?),
			?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = j.db.ExecContext(ctx, query,
		runID, runID,
		result.StepID,
		result.Kind,
		result.Key,
		result.ID,
		string(result.Outcome),
		string(raw),
		result.Message,
		result.Duration.Milliseconds(),
		errText,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
func (j *SQLiteJournal) FinishRun(ctx context.Context, s *engine.RunSummary) error {
	var errText *string
	if s.Error != "" {
		errText = &s.Error
	}

	query := `
		UPDATE runs
		SET status = ?, finished_at = ?, duration_ms = ?, total = ?, created = ?, updated = ?,
			unchanged = ?, recreated = ?, skipped = ?, failed = ?, error = ?
		WHERE id = ?
	`
	res, err := j.db.ExecContext(ctx, query,
		string(s.Status),
		s.StartedAt.Add(s.Duration).UTC(),
		s.Duration.Milliseconds(),
		s.Total, s.Created, s.Updated, s.Unchanged, s.Recreated, s.Skipped, s.Failed,
		errText,
		s.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", s.RunID)
	}
	return nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns all runs.
func (j *SQLiteJournal) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT id, status, started_at, finished_at, duration_ms, total, created, updated,
			unchanged, recreated, skipped, failed, error
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`
	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun retrieves a run by ID.
func (j *SQLiteJournal) GetRun(ctx context.Context, id string) (*Run, error) {
	query := `
		SELECT id, status, started_at, finished_at, duration_ms, total, created, updated,
			unchanged, recreated, skipped, failed, error
		FROM runs
		WHERE id = ?
	`
	run, err := scanRun(j.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

// ListSteps returns the steps of a run in execution order.
func (j *SQLiteJournal) ListSteps(ctx context.Context, runID string) ([]*StepRecord, error) {
	query := `
		SELECT run_id, seq, step_id, kind, natural_key, resource_id, outcome, changes,
			message, duration_ms, error, recorded_at
		FROM steps
		WHERE run_id = ?
		ORDER BY seq
	`
	rows, err := j.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list steps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var steps []*StepRecord
	for rows.Next() {
		var (
			s       StepRecord
			outcome string
			changes string
			ms      int64
		)
		if err := rows.Scan(&s.RunID, &s.Seq, &s.StepID, &s.Kind, &s.Key, &s.ResourceID,
			&outcome, &changes, &s.Message, &ms, &s.Error, &s.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		s.Outcome = engine.Outcome(outcome)
		s.Duration = time.Duration(ms) * time.Millisecond
		if err := json.Unmarshal([]byte(changes), &s.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes of %s: %w", s.StepID, err)
		}
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run    Run
		status string
		ms     int64
	)
	err := row.Scan(&run.ID, &status, &run.StartedAt, &run.FinishedAt, &ms, &run.Total,
		&run.Created, &run.Updated, &run.Unchanged, &run.Recreated, &run.Skipped, &run.Failed, &run.Error)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = engine.RunStatus(status)
	run.Duration = time.Duration(ms) * time.Millisecond
	return &run, nil
}
