package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"dataplan/internal/store"
)

func TestInitAndSaveRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "runs.db")

	repo, err := store.Open(ctx, store.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()

	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	// Idempotent.
	if err := repo.Init(ctx); err != nil {
		t.Fatalf("second Init() error = %v", err)
	}

	rec := store.RunRecord{
		Path:       "data/trial.csv",
		Capability: "causal_models",
		Success:    true,
		Report:     []byte(`{"success":true}`),
		Plan:       []byte(`{"chosen_capability":"causal_models"}`),
		CreatedAt:  time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}
	if err := repo.SaveRun(ctx, rec); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if err := repo.SaveRun(ctx, store.RunRecord{Path: "b.csv", Capability: "abort"}); err != nil {
		t.Fatalf("second SaveRun() error = %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open verification connection: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plan_runs`).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d rows, want 2", n)
	}

	var (
		path, capability, report, plan, created string
		success                                 int
	)
	err = db.QueryRowContext(ctx,
		`SELECT path, capability, success, report, plan, created_at FROM plan_runs WHERE path = ?`,
		"data/trial.csv",
	).Scan(&path, &capability, &success, &report, &plan, &created)
	if err != nil {
		t.Fatalf("select row: %v", err)
	}
	if capability != "causal_models" || success != 1 {
		t.Fatalf("got capability=%q success=%d", capability, success)
	}
	if _, err := time.Parse(time.RFC3339Nano, created); err != nil {
		t.Fatalf("created_at %q not RFC3339Nano: %v", created, err)
	}
}

func TestSaveRunFillsCreatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dsn := "file:" + filepath.Join(t.TempDir(), "runs.db")

	repo, err := New(ctx, store.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer repo.Close()

	if err := repo.Init(ctx); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := repo.SaveRun(ctx, store.RunRecord{Path: "a.csv", Capability: "abort"}); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open verification connection: %v", err)
	}
	defer db.Close()

	var created string
	if err := db.QueryRowContext(ctx, `SELECT created_at FROM plan_runs`).Scan(&created); err != nil {
		t.Fatalf("select created_at: %v", err)
	}
	if created == "" {
		t.Fatal("created_at empty, want backend-filled timestamp")
	}
}
