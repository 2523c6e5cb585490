package store

import (
	"context"
	"testing"
)

type fakeRepo struct{}

func (fakeRepo) Init(context.Context) error               { return nil }
func (fakeRepo) SaveRun(context.Context, RunRecord) error { return nil }
func (fakeRepo) Close()                                   {}

func TestOpenUsesRegisteredFactory(t *testing.T) {
	Register("fake", func(ctx context.Context, cfg Config) (Repository, error) {
		return fakeRepo{}, nil
	})

	repo, err := Open(context.Background(), Config{Kind: "fake", DSN: "ignored"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if repo == nil {
		t.Fatal("Open() = nil repository")
	}
}

func TestOpenUnknownKind(t *testing.T) {
	if _, err := Open(context.Background(), Config{Kind: "nosuch"}); err == nil {
		t.Fatal("Open() error = nil for unknown kind")
	}
	if _, err := Open(context.Background(), Config{}); err == nil {
		t.Fatal("Open() error = nil for missing kind")
	}
}

func TestRegisterGuards(t *testing.T) {
	mustPanic := func(name string, fn func()) {
		defer func() {
			if recover() == nil {
				t.Fatalf("%s did not panic", name)
			}
		}()
		fn()
	}

	mustPanic("empty kind", func() {
		Register("", func(ctx context.Context, cfg Config) (Repository, error) { return nil, nil })
	})
	mustPanic("nil factory", func() {
		Register("nilfactory", nil)
	})

	Register("dup", func(ctx context.Context, cfg Config) (Repository, error) { return fakeRepo{}, nil })
	mustPanic("duplicate kind", func() {
		Register("dup", func(ctx context.Context, cfg Config) (Repository, error) { return fakeRepo{}, nil })
	})
}
