// Package sqlite implements the run-artifact store on SQLite.
//
// SQLite has no native timestamp type; created_at is stored as an
// RFC3339Nano string for reliable round trips and easy debugging.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"dataplan/internal/store"
)

type repo struct {
	db *sql.DB
}

func init() {
	store.Register("sqlite", New)
}

// New opens a SQLite-backed repository. A DSN like
// "file:dataplan.db?cache=shared" selects the database file.
func New(ctx context.Context, cfg store.Config) (store.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &repo{db: db}, nil
}

func (r *repo) Close() { _ = r.db.Close() }

func (r *repo) Init(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS plan_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL,
	capability TEXT NOT NULL,
	success INTEGER NOT NULL,
	report TEXT NOT NULL,
	plan TEXT NOT NULL,
	created_at TEXT NOT NULL
)`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create plan_runs: %w", err)
	}
	return nil
}

func (r *repo) SaveRun(ctx context.Context, rec store.RunRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	success := 0
	if rec.Success {
		success = 1
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO plan_runs (path, capability, success, report, plan, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Path, rec.Capability, success,
		string(rec.Report), string(rec.Plan),
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert plan_runs: %w", err)
	}
	return nil
}
