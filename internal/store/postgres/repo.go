// Package postgres implements the run-artifact store on Postgres using
// a pgx connection pool. Report and plan payloads are stored as JSONB so
// they stay queryable in place.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"dataplan/internal/store"
)

type repo struct {
	pool *pgxpool.Pool
}

func init() {
	store.Register("postgres", New)
}

// New opens a Postgres-backed repository from a standard pgx DSN.
func New(ctx context.Context, cfg store.Config) (store.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &repo{pool: pool}, nil
}

func (r *repo) Close() { r.pool.Close() }

func (r *repo) Init(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS plan_runs (
	id BIGSERIAL PRIMARY KEY,
	path TEXT NOT NULL,
	capability TEXT NOT NULL,
	success BOOLEAN NOT NULL,
	report JSONB NOT NULL,
	plan JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("create plan_runs: %w", err)
	}
	return nil
}

func (r *repo) SaveRun(ctx context.Context, rec store.RunRecord) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO plan_runs (path, capability, success, report, plan, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.Path, rec.Capability, rec.Success,
		string(rec.Report), string(rec.Plan), created,
	)
	if err != nil {
		return fmt.Errorf("insert plan_runs: %w", err)
	}
	return nil
}
