// Package vectorstore defines the backend-agnostic contract for collection
// lifecycle and vector CRUD.
//
// Two backends implement the contract: an embedded single-process engine
// backed by bbolt (package bolt) and a PostgreSQL+pgvector engine (package
// pgvector). Every operation is name-addressed and stateless from the
// caller's perspective, so the indexing pipeline stays indifferent to which
// backend configuration selected.
//
// Failure signals are sentinel errors checked with errors.Is. A nil error
// from InsertMany means all batches committed; a non-nil error means the
// caller must not assume any data landed — individual batches that completed
// before the failure stay persisted (no cross-batch transaction), and
// recovery relies on the pipeline's idempotent re-run with deterministic
// record ids.
package vectorstore

import (
	"context"
	"errors"
)

// CollectionPrefix namespaces every collection a pipeline creates, so
// backends can tell their own collections apart from unrelated tables or
// buckets when listing.
const CollectionPrefix = "collection_"

// Distance is the similarity metric a backend applies to every collection it
// creates. It is chosen once at backend construction.
type Distance string

const (
	// DistanceCosine ranks by cosine similarity.
	DistanceCosine Distance = "cosine"

	// DistanceDot ranks by inner product.
	DistanceDot Distance = "dot"
)

var (
	// ErrCollectionNotFound indicates an operation addressed a collection
	// that does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates the collection name violates the
	// backend's identifier rules.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidRecordID indicates a negative record id.
	ErrInvalidRecordID = errors.New("invalid record id")

	// ErrBatchMismatch indicates the vectors and record ids of a bulk insert
	// have different lengths. Nothing is written.
	ErrBatchMismatch = errors.New("vectors and record ids must have the same length")

	// ErrDimensionMismatch indicates a vector's length differs from the
	// collection's embedding size. The insert fails; vectors are never
	// truncated or padded.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrNotConnected indicates an operation was attempted before Connect or
	// after Disconnect.
	ErrNotConnected = errors.New("vector store not connected")
)

// RetrievedDocument is a single similarity-search hit. Score is
// backend-defined (higher is more similar) and not comparable across
// backends.
type RetrievedDocument struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// CollectionInfo describes a collection's current state.
type CollectionInfo struct {
	Name          string `json:"name"`
	RecordCount   int64  `json:"record_count"`
	EmbeddingSize int    `json:"embedding_size"`
}

// Store is the capability set every vector store backend implements.
type Store interface {
	// Connect establishes backend resources. Failure is fatal to the
	// pipeline; there is no degraded mode.
	Connect(ctx context.Context) error

	// Disconnect releases backend resources. Idempotent.
	Disconnect(ctx context.Context) error

	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, name string) (bool, error)

	// ListCollections returns the names of all collections.
	ListCollections(ctx context.Context) ([]string, error)

	// CollectionInfo returns collection metadata, or ErrCollectionNotFound.
	CollectionInfo(ctx context.Context, name string) (*CollectionInfo, error)

	// CreateCollection creates the named collection for vectors of
	// embeddingSize dimensions. Returns (false, nil) if the collection
	// already existed and doReset was false — a no-op, not an error.
	// If doReset is true the collection is dropped first, unconditionally.
	CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) (created bool, err error)

	// DeleteCollection removes the named collection. No-op if absent.
	DeleteCollection(ctx context.Context, name string) error

	// InsertOne upserts a single record. Fails with ErrCollectionNotFound if
	// the collection is absent and ErrInvalidRecordID if recordID is
	// negative.
	InsertOne(ctx context.Context, name, text string, vector []float32, metadata map[string]string, recordID int) error

	// InsertMany upserts records in batches of batchSize to bound
	// per-request payload and memory. Requires len(vectors) ==
	// len(recordIDs) (ErrBatchMismatch otherwise, nothing written).
	// Partial-batch failure policy is backend-specific; see the package
	// comment.
	InsertMany(ctx context.Context, name string, texts []string, vectors [][]float32, metadata []map[string]string, recordIDs []int, batchSize int) error

	// SearchByVector returns up to limit documents ordered best match
	// first, or ErrCollectionNotFound if the collection is absent.
	SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]RetrievedDocument, error)
}

// Indexer is the optional capability of backends that maintain a secondary
// ANN index. The pipeline type-asserts for it after bulk indexing.
type Indexer interface {
	// CreateVectorIndex builds the ANN index once the collection holds at
	// least the configured row threshold. Returns (false, nil) below the
	// threshold or when the index already exists.
	CreateVectorIndex(ctx context.Context, name string) (created bool, err error)

	// ResetVectorIndex drops the ANN index and rebuilds it, subject to the
	// same threshold gate.
	ResetVectorIndex(ctx context.Context, name string) (created bool, err error)
}
