package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ragforge/ragforge/internal/log"
	"github.com/ragforge/ragforge/internal/vectorstore"
	"github.com/ragforge/ragforge/internal/vectorstore/bolt"
)

// OpenBoltStore creates a connected bolt vector store backed by a file in a
// temporary directory. The store is disconnected and the file removed when
// the test ends.
func OpenBoltStore(t *testing.T, distance vectorstore.Distance) *bolt.Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "vectors.db")
	store := bolt.New(path, distance, log.NewNop())
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("failed to connect bolt store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Disconnect(context.Background())
	})
	return store
}
