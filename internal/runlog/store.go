package runlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mobiqc/internal/config"
)

// Status is the outcome of one run.
type Status string

const (
	StatusRunning Status = "running"
	StatusSaved   Status = "saved"
	StatusExists  Status = "exists"
	StatusFailed  Status = "failed"
)

// Run is one report invocation.
type Run struct {
	ID        string
	Subject   string
	Recording string
	Status    Status
	Error     string
	// PercentGood is NaN when the EEG metrics were not computed.
	PercentGood float64
	Columns     int
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Elapsed returns the run duration, or zero while it is still running.
func (r Run) Elapsed() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists runs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the run log configured for cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(cfg.RunLogPath())
}

// OpenPath opens or creates the database at path and applies migrations.
func OpenPath(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create run log directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Start records a new running run.
func (s *Store) Start(ctx context.Context, subject, recording string) (*Run, error) {
	run := &Run{
		ID:          uuid.NewString(),
		Subject:     strings.TrimSpace(subject),
		Recording:   recording,
		Status:      StatusRunning,
		PercentGood: math.NaN(),
		StartedAt:   time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, subject, recording, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Subject, run.Recording, run.Status, run.StartedAt.Format(timeLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

// Finish stores the final state of run. A nil err keeps the error column
// empty.
func (s *Store) Finish(ctx context.Context, run *Run, status Status, err error) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.Status = status
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}
	res, execErr := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, percent_good = ?, column_count = ?, finished_at = ? WHERE id = ?`,
		run.Status,
		nullableString(run.Error),
		nullableFloat(run.PercentGood),
		run.Columns,
		run.FinishedAt.Format(timeLayout),
		run.ID,
	)
	if execErr != nil {
		return fmt.Errorf("update run: %w", execErr)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update run: %s not found", run.ID)
	}
	return nil
}

// Get fetches one run. A missing run yields (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Recent returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

// ForSubject returns the runs of one subject, newest first.
func (s *Store) ForSubject(ctx context.Context, subject string) ([]*Run, error) {
	return s.query(ctx,
		`SELECT `+runColumns+` FROM runs WHERE subject = ? ORDER BY started_at DESC, rowid DESC`,
		strings.TrimSpace(subject))
}

// MarkInterrupted fails every run still marked running and returns how many
// were swept.
func (s *Store) MarkInterrupted(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE status = ?`,
		StatusFailed, "interrupted", time.Now().UTC().Format(timeLayout), StatusRunning)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
