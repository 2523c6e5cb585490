// Package mssql implements the run-artifact store on SQL Server.
//
// SQL Server has no CREATE TABLE IF NOT EXISTS, so Init guards the DDL
// with an OBJECT_ID check. Payloads are stored as NVARCHAR(MAX); SQL
// Server validates JSON only through ISJSON, which is left to consumers.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"dataplan/internal/store"
)

type repo struct {
	db *sql.DB
}

func init() {
	store.Register("mssql", New)
}

// New opens a SQL Server-backed repository from a sqlserver:// DSN.
func New(ctx context.Context, cfg store.Config) (store.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
IF OBJECT_ID('dbo.plan_runs', 'U') IS NULL
CREATE TABLE dbo.plan_runs (
	id BIGINT IDENTITY(1,1) PRIMARY KEY,
	path NVARCHAR(1024) NOT NULL,
	capability NVARCHAR(64) NOT NULL,
	success BIT NOT NULL,
	report NVARCHAR(MAX) NOT NULL,
	[plan] NVARCHAR(MAX) NOT NULL,
	created_at DATETIMEOFFSET NOT NULL
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

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO dbo.plan_runs (path, capability, success, report, [plan], created_at)
		 VALUES (@p1, @p2, @p3, @p4, @p5, @p6)`,
		rec.Path, rec.Capability, rec.Success,
		string(rec.Report), string(rec.Plan), created,
	)
	if err != nil {
		return fmt.Errorf("insert plan_runs: %w", err)
	}
	return nil
}
