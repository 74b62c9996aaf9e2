package bolt

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/ragforge/ragforge/internal/log"
	"github.com/ragforge/ragforge/internal/vectorstore"
)

func newTestStore(t *testing.T, distance vectorstore.Distance) *Store {
	t.Helper()

	store := New(filepath.Join(t.TempDir(), "vectors.db"), distance, log.NewNop())
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Disconnect(context.Background())
	})
	return store
}

func TestNotConnected(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "vectors.db"), vectorstore.DistanceCosine, log.NewNop())

	if _, err := store.CollectionExists(context.Background(), "collection_x"); !errors.Is(err, vectorstore.ErrNotConnected) {
		t.Errorf("CollectionExists error = %v, want ErrNotConnected", err)
	}
	if _, err := store.CreateCollection(context.Background(), "collection_x", 4, false); !errors.Is(err, vectorstore.ErrNotConnected) {
		t.Errorf("CreateCollection error = %v, want ErrNotConnected", err)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	for i := 0; i < 2; i++ {
		if err := store.Disconnect(context.Background()); err != nil {
			t.Fatalf("Disconnect #%d: %v", i+1, err)
		}
	}
}

func TestCreateCollectionIdempotent(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	created, err := store.CreateCollection(ctx, "collection_p1", 4, false)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if !created {
		t.Error("first create reported created=false")
	}

	created, err = store.CreateCollection(ctx, "collection_p1", 4, false)
	if err != nil {
		t.Fatalf("second CreateCollection: %v", err)
	}
	if created {
		t.Error("second create reported created=true")
	}
}

func TestCreateCollectionReset(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 4, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := store.InsertOne(ctx, "collection_p1", "hello", []float32{1, 0, 0, 0}, nil, 0); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	created, err := store.CreateCollection(ctx, "collection_p1", 4, true)
	if err != nil {
		t.Fatalf("reset CreateCollection: %v", err)
	}
	if !created {
		t.Error("reset create reported created=false")
	}

	info, err := store.CollectionInfo(ctx, "collection_p1")
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.RecordCount != 0 {
		t.Errorf("RecordCount after reset = %d, want 0", info.RecordCount)
	}
}

func TestCreateCollectionRejectsReservedNames(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)

	for _, name := range []string{"", "__chunks", "__projects"} {
		if _, err := store.CreateCollection(context.Background(), name, 4, false); !errors.Is(err, vectorstore.ErrInvalidCollectionName) {
			t.Errorf("CreateCollection(%q) error = %v, want ErrInvalidCollectionName", name, err)
		}
	}
}

func TestDeleteCollectionRejectsReservedNames(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)

	// Reserved buckets hold chunks and projects; deleting one through the
	// collection API must fail.
	for _, name := range []string{"__chunks", "__projects", "__meta"} {
		if err := store.DeleteCollection(context.Background(), name); !errors.Is(err, vectorstore.ErrInvalidCollectionName) {
			t.Errorf("DeleteCollection(%q) error = %v, want ErrInvalidCollectionName", name, err)
		}
	}
}

func TestListCollections(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	names, err := store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("fresh store lists %v", names)
	}

	for _, name := range []string{"collection_a", "collection_b"} {
		if _, err := store.CreateCollection(ctx, name, 4, false); err != nil {
			t.Fatalf("CreateCollection(%s): %v", name, err)
		}
	}

	names, err = store.ListCollections(ctx)
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("got %v, want two collections", names)
	}
}

func TestInsertManyBatchMismatch(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	err := store.InsertMany(ctx, "collection_p1",
		[]string{"a", "b"},
		[][]float32{{1, 0}},
		nil,
		[]int{0, 1},
		10,
	)
	if !errors.Is(err, vectorstore.ErrBatchMismatch) {
		t.Fatalf("error = %v, want ErrBatchMismatch", err)
	}

	info, err := store.CollectionInfo(ctx, "collection_p1")
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.RecordCount != 0 {
		t.Errorf("mismatched batch wrote %d records", info.RecordCount)
	}
}

func TestInsertManyDimensionMismatch(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 4, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	err := store.InsertMany(ctx, "collection_p1",
		[]string{"a"},
		[][]float32{{1, 0}},
		nil,
		[]int{0},
		10,
	)
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestInsertManyEarlierBatchesStayCommitted(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	// Four records at batch size 2: the second batch carries a wrong-sized
	// vector and must fail without rolling back the first batch.
	err := store.InsertMany(ctx, "collection_p1",
		[]string{"a", "b", "c", "d"},
		[][]float32{{1, 0}, {0, 1}, {1, 0, 0}, {0, 1}},
		nil,
		[]int{0, 1, 2, 3},
		2,
	)
	if !errors.Is(err, vectorstore.ErrDimensionMismatch) {
		t.Fatalf("error = %v, want ErrDimensionMismatch", err)
	}

	info, err := store.CollectionInfo(ctx, "collection_p1")
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.RecordCount != 2 {
		t.Errorf("record count = %d, want 2 (first batch committed, second rolled back)", info.RecordCount)
	}
}

func TestInsertManyNegativeRecordID(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	err := store.InsertMany(ctx, "collection_p1",
		[]string{"a"},
		[][]float32{{1, 0}},
		nil,
		[]int{-1},
		10,
	)
	if !errors.Is(err, vectorstore.ErrInvalidRecordID) {
		t.Errorf("error = %v, want ErrInvalidRecordID", err)
	}
}

func TestInsertManyMissingCollection(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)

	err := store.InsertMany(context.Background(), "collection_gone",
		[]string{"a"},
		[][]float32{{1, 0}},
		nil,
		[]int{0},
		10,
	)
	if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestUpsertByRecordID(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	if err := store.InsertOne(ctx, "collection_p1", "old text", []float32{1, 0}, nil, 7); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if err := store.InsertOne(ctx, "collection_p1", "new text", []float32{1, 0}, nil, 7); err != nil {
		t.Fatalf("second InsertOne: %v", err)
	}

	info, err := store.CollectionInfo(ctx, "collection_p1")
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.RecordCount != 1 {
		t.Fatalf("RecordCount = %d, want 1 after upsert", info.RecordCount)
	}

	results, err := store.SearchByVector(ctx, "collection_p1", []float32{1, 0}, 1)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if results[0].Text != "new text" {
		t.Errorf("text = %q, want overwritten value", results[0].Text)
	}
}

func TestSearchByVectorCosine(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 3, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	err := store.InsertMany(ctx, "collection_p1",
		[]string{"exact", "orthogonal", "opposite"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {-1, 0, 0}},
		nil,
		[]int{0, 1, 2},
		10,
	)
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	results, err := store.SearchByVector(ctx, "collection_p1", []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if results[0].Text != "exact" {
		t.Errorf("best match = %q, want %q", results[0].Text, "exact")
	}
	if math.Abs(results[0].Score-1.0) > 1e-9 {
		t.Errorf("identical vector score = %f, want 1.0", results[0].Score)
	}
	if results[2].Text != "opposite" || math.Abs(results[2].Score+1.0) > 1e-9 {
		t.Errorf("worst match = %q score %f, want opposite at -1.0", results[2].Text, results[2].Score)
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatal("results not in descending score order")
		}
	}
}

func TestSearchByVectorDot(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceDot)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	err := store.InsertMany(ctx, "collection_p1",
		[]string{"small", "large"},
		[][]float32{{1, 0}, {3, 0}},
		nil,
		[]int{0, 1},
		10,
	)
	if err != nil {
		t.Fatalf("InsertMany: %v", err)
	}

	results, err := store.SearchByVector(ctx, "collection_p1", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}

	// Dot product rewards magnitude, unlike cosine.
	if results[0].Text != "large" {
		t.Errorf("best match = %q, want %q", results[0].Text, "large")
	}
	if math.Abs(results[0].Score-3.0) > 1e-9 {
		t.Errorf("score = %f, want 3.0", results[0].Score)
	}
}

func TestSearchLimit(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := store.InsertOne(ctx, "collection_p1", "doc", []float32{1, 0}, nil, i); err != nil {
			t.Fatalf("InsertOne(%d): %v", i, err)
		}
	}

	results, err := store.SearchByVector(ctx, "collection_p1", []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("SearchByVector: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestSearchMissingCollection(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)

	_, err := store.SearchByVector(context.Background(), "collection_gone", []float32{1, 0}, 5)
	if !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Errorf("error = %v, want ErrCollectionNotFound", err)
	}
}

func TestDeleteCollectionIdempotent(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := store.DeleteCollection(ctx, "collection_p1"); err != nil {
			t.Fatalf("DeleteCollection #%d: %v", i+1, err)
		}
	}

	exists, err := store.CollectionExists(ctx, "collection_p1")
	if err != nil {
		t.Fatalf("CollectionExists: %v", err)
	}
	if exists {
		t.Error("collection still exists after delete")
	}
}

func TestCollectionInfo(t *testing.T) {
	store := newTestStore(t, vectorstore.DistanceCosine)
	ctx := context.Background()

	if _, err := store.CollectionInfo(ctx, "collection_gone"); !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		t.Fatalf("CollectionInfo error = %v, want ErrCollectionNotFound", err)
	}

	if _, err := store.CreateCollection(ctx, "collection_p1", 8, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := store.InsertOne(ctx, "collection_p1", "doc", make([]float32, 8), nil, 0); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}

	info, err := store.CollectionInfo(ctx, "collection_p1")
	if err != nil {
		t.Fatalf("CollectionInfo: %v", err)
	}
	if info.EmbeddingSize != 8 {
		t.Errorf("EmbeddingSize = %d, want 8", info.EmbeddingSize)
	}
	if info.RecordCount != 1 {
		t.Errorf("RecordCount = %d, want 1", info.RecordCount)
	}
}

func TestPersistenceAcrossReconnect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectors.db")
	ctx := context.Background()

	store := New(path, vectorstore.DistanceCosine, log.NewNop())
	if err := store.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := store.CreateCollection(ctx, "collection_p1", 2, false); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if err := store.InsertOne(ctx, "collection_p1", "persisted", []float32{0, 1}, nil, 0); err != nil {
		t.Fatalf("InsertOne: %v", err)
	}
	if err := store.Disconnect(ctx); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	reopened := New(path, vectorstore.DistanceCosine, log.NewNop())
	if err := reopened.Connect(ctx); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	defer func() { _ = reopened.Disconnect(ctx) }()

	results, err := reopened.SearchByVector(ctx, "collection_p1", []float32{0, 1}, 1)
	if err != nil {
		t.Fatalf("SearchByVector after reconnect: %v", err)
	}
	if len(results) != 1 || results[0].Text != "persisted" {
		t.Errorf("results after reconnect = %#v", results)
	}
}
