// Package runlog records prepare and training runs in a small sqlite ledger
// so a shard directory can be traced back to the configuration and seed
// that produced it.
package runlog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a run id is not in the ledger.
var ErrNotFound = errors.New("runlog: run not found")

// Class is one class row of a prepare run.
type Class struct {
	Label     int
	Name      string
	Dir       string
	ClipSigma float64
	Sources   int
	Rotations int
	Augmented int
}

// Run is one prepare invocation.
type Run struct {
	ID            string
	Seed          int64
	Seeded        bool
	Width         int
	Height        int
	TargetSize    int
	TrainFraction float64
	TrainRows     int
	TestRows      int
	OutDir        string
	CreatedAt     time.Time
	Classes       []Class
}

// Evaluation is one training run scored against a prepared split.
type Evaluation struct {
	ID        string
	RunID     string
	Steps     int
	MeanLoss  float64
	Correct   int
	Total     int
	Accuracy  float64
	CreatedAt time.Time
}

// Store is a migrated ledger database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the ledger at path and applies pending
// migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	// One connection keeps ":memory:" ledgers coherent and serialises writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("runlog: enable foreign keys: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("runlog: migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("runlog: sqlite driver: %w", err)
	}
	// m is not closed: that would close db.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("runlog: migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("runlog: migration up failed: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordPrepare inserts run and its classes. An empty ID is filled with a
// fresh UUID, and a zero CreatedAt with the current time.
func (s *Store) RecordPrepare(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = s.now().UTC()
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("runlog: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, seed, seeded, width, height, target_size,
			train_fraction, train_rows, test_rows, out_dir, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Seed, run.Seeded, run.Width, run.Height, run.TargetSize,
		run.TrainFraction, run.TrainRows, run.TestRows, run.OutDir, run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("runlog: insert run: %w", err)
	}
	for _, c := range run.Classes {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_classes (run_id, label, name, dir, clip_sigma,
				sources, rotations, augmented)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, c.Label, c.Name, c.Dir, c.ClipSigma, c.Sources, c.Rotations, c.Augmented,
		)
		if err != nil {
			return fmt.Errorf("runlog: insert class %q: %w", c.Name, err)
		}
	}
	return tx.Commit()
}

// RecordEvaluation stores ev against an existing run.
func (s *Store) RecordEvaluation(ctx context.Context, ev *Evaluation) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now().UTC()
	}
	if _, err := s.Run(ctx, ev.RunID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO evaluations (evaluation_id, run_id, steps, mean_loss,
			correct, total, accuracy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.RunID, ev.Steps, ev.MeanLoss, ev.Correct, ev.Total, ev.Accuracy, ev.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("runlog: insert evaluation: %w", err)
	}
	return nil
}

// Run loads one run with its classes ordered by label.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, seed, seeded, width, height, target_size, train_fraction,
			train_rows, test_rows, out_dir, created_at
		FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("runlog: load run %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, name, dir, clip_sigma, sources, rotations, augmented
		FROM run_classes WHERE run_id = ? ORDER BY label`, id)
	if err != nil {
		return nil, fmt.Errorf("runlog: load classes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c Class
		if err := rows.Scan(&c.Label, &c.Name, &c.Dir, &c.ClipSigma, &c.Sources, &c.Rotations, &c.Augmented); err != nil {
			return nil, fmt.Errorf("runlog: scan class: %w", err)
		}
		run.Classes = append(run.Classes, c)
	}
	return run, rows.Err()
}

// Runs lists the most recent runs first, without their classes. limit <= 0
// returns every run.
func (s *Store) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seed, seeded, width, height, target_size, train_fraction,
			train_rows, test_rows, out_dir, created_at
		FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runlog: list runs: %w", err)
	}
	defer rows.Close()
	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("runlog: scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Evaluations lists the evaluations of one run, oldest first.
func (s *Store) Evaluations(ctx context.Context, runID string) ([]Evaluation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT evaluation_id, run_id, steps, mean_loss, correct, total, accuracy, created_at
		FROM evaluations WHERE run_id = ? ORDER BY created_at, evaluation_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("runlog: list evaluations: %w", err)
	}
	defer rows.Close()
	var out []Evaluation
	for rows.Next() {
		var ev Evaluation
		var created int64
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.Steps, &ev.MeanLoss, &ev.Correct, &ev.Total, &ev.Accuracy, &created); err != nil {
			return nil, fmt.Errorf("runlog: scan evaluation: %w", err)
		}
		ev.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var created int64
	err := sc.Scan(&run.ID, &run.Seed, &run.Seeded, &run.Width, &run.Height, &run.TargetSize,
		&run.TrainFraction, &run.TrainRows, &run.TestRows, &run.OutDir, &created)
	if err != nil {
		return nil, err
	}
	run.CreatedAt = time.Unix(0, created).UTC()
	return &run, nil
}
