package project

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/ragforge/ragforge/internal/log"
)

func TestValidateID(t *testing.T) {
	valid := []string{"p1", "abc", "project123", strings.Repeat("a", 48)}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "P1", "has space", "has-dash", "has_underscore", "../etc", strings.Repeat("a", 49)}
	for _, id := range invalid {
		if err := ValidateID(id); !errors.Is(err, ErrInvalidID) {
			t.Errorf("ValidateID(%q) = %v, want ErrInvalidID", id, err)
		}
	}
}

func newBoltRegistry(t *testing.T) *BoltRegistry {
	t.Helper()

	db, err := bbolt.Open(filepath.Join(t.TempDir(), "projects.db"), 0o600, nil)
	if err != nil {
		t.Fatalf("failed to open bolt db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBoltRegistry(db, log.NewNop())
}

func TestBoltGetOrCreate(t *testing.T) {
	registry := newBoltRegistry(t)
	ctx := context.Background()

	first, err := registry.GetOrCreate(ctx, "p1")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if first.ID != "p1" || first.CreatedAt.IsZero() {
		t.Errorf("project = %#v", first)
	}

	second, err := registry.GetOrCreate(ctx, "p1")
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("second GetOrCreate changed CreatedAt")
	}

	if _, err := registry.GetOrCreate(ctx, "Bad ID"); !errors.Is(err, ErrInvalidID) {
		t.Errorf("error = %v, want ErrInvalidID", err)
	}
}

func TestBoltListPagination(t *testing.T) {
	registry := newBoltRegistry(t)
	ctx := context.Background()

	for _, id := range []string{"alpha", "beta", "gamma"} {
		if _, err := registry.GetOrCreate(ctx, id); err != nil {
			t.Fatalf("GetOrCreate(%s): %v", id, err)
		}
	}

	page, err := registry.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page 1 has %d projects, want 2", len(page))
	}

	page, err = registry.List(ctx, 2, 2)
	if err != nil {
		t.Fatalf("List(2): %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("page 2 has %d projects, want 1", len(page))
	}

	page, err = registry.List(ctx, 3, 2)
	if err != nil {
		t.Fatalf("List(3): %v", err)
	}
	if len(page) != 0 {
		t.Errorf("page past the end has %d projects", len(page))
	}
}
