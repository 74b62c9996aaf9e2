package pgvector_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragforge/ragforge/internal/log"
	"github.com/ragforge/ragforge/internal/testutil"
	"github.com/ragforge/ragforge/internal/vectorstore"
	"github.com/ragforge/ragforge/internal/vectorstore/pgvector"
)

// setupStore starts a pgvector container and returns a connected store with
// the given index threshold.
func setupStore(t *testing.T, threshold int) *pgvector.Store {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	tdb := testutil.SetupTestDB(t)
	store := pgvector.NewWithPool(tdb.Pool, vectorstore.DistanceCosine, threshold, log.NewNop())
	require.NoError(t, store.Connect(context.Background()))
	return store
}

func TestIntegrationCollectionLifecycle(t *testing.T) {
	store := setupStore(t, 100)
	ctx := context.Background()

	exists, err := store.CollectionExists(ctx, "collection_p1")
	require.NoError(t, err)
	assert.False(t, exists)

	created, err := store.CreateCollection(ctx, "collection_p1", 3, false)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateCollection(ctx, "collection_p1", 3, false)
	require.NoError(t, err)
	assert.False(t, created, "second create must be a no-op")

	names, err := store.ListCollections(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"collection_p1"}, names)

	info, err := store.CollectionInfo(ctx, "collection_p1")
	require.NoError(t, err)
	assert.Equal(t, 3, info.EmbeddingSize)
	assert.EqualValues(t, 0, info.RecordCount)

	require.NoError(t, store.DeleteCollection(ctx, "collection_p1"))
	require.NoError(t, store.DeleteCollection(ctx, "collection_p1"), "delete must be idempotent")
}

func TestIntegrationInsertAndSearch(t *testing.T) {
	store := setupStore(t, 100)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "collection_p1", 3, false)
	require.NoError(t, err)

	err = store.InsertMany(ctx, "collection_p1",
		[]string{"exact", "orthogonal", "opposite"},
		[][]float32{{1, 0, 0}, {0, 1, 0}, {-1, 0, 0}},
		[]map[string]string{{"k": "1"}, {"k": "2"}, {"k": "3"}},
		[]int{0, 1, 2},
		2,
	)
	require.NoError(t, err)

	results, err := store.SearchByVector(ctx, "collection_p1", []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "exact", results[0].Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6, "identical vector scores 1.0 under cosine")
	assert.Equal(t, "opposite", results[2].Text)

	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Score, results[i-1].Score)
	}
}

func TestIntegrationDuplicateRecordIDsSkipped(t *testing.T) {
	store := setupStore(t, 100)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "collection_p1", 2, false)
	require.NoError(t, err)

	insert := func() error {
		return store.InsertMany(ctx, "collection_p1",
			[]string{"a", "b"},
			[][]float32{{1, 0}, {0, 1}},
			nil,
			[]int{0, 1},
			10,
		)
	}
	require.NoError(t, insert())
	require.NoError(t, insert(), "replaying the same record ids must not fail")

	info, err := store.CollectionInfo(ctx, "collection_p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, info.RecordCount, "duplicates must be skipped, not accumulated")
}

func TestIntegrationIndexThresholdGating(t *testing.T) {
	store := setupStore(t, 3)
	ctx := context.Background()

	_, err := store.CreateCollection(ctx, "collection_p1", 2, false)
	require.NoError(t, err)

	// Below threshold: no index.
	err = store.InsertMany(ctx, "collection_p1",
		[]string{"a", "b"},
		[][]float32{{1, 0}, {0, 1}},
		nil,
		[]int{0, 1},
		10,
	)
	require.NoError(t, err)

	created, err := store.CreateVectorIndex(ctx, "collection_p1")
	require.NoError(t, err)
	assert.False(t, created, "index must not build below the row threshold")

	// Crossing the threshold builds it exactly once.
	require.NoError(t, store.InsertOne(ctx, "collection_p1", "c", []float32{1, 1}, nil, 2))

	created, err = store.CreateVectorIndex(ctx, "collection_p1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.CreateVectorIndex(ctx, "collection_p1")
	require.NoError(t, err)
	assert.False(t, created, "existing index must not be rebuilt")

	// Reset drops and rebuilds.
	created, err = store.ResetVectorIndex(ctx, "collection_p1")
	require.NoError(t, err)
	assert.True(t, created)

	// Search still works through the index.
	results, err := store.SearchByVector(ctx, "collection_p1", []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, math.IsNaN(results[0].Score))
}
