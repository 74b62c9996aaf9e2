// Package bolt implements the vector store contract on an embedded bbolt
// database: one file per deployment, one top-level bucket per collection.
//
// Search is a linear scan scored by the configured distance metric. That is
// adequate for the single-process deployments this backend targets; larger
// corpora belong on the pgvector backend with its ANN index.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ragforge/ragforge/internal/vectorstore"
)

var (
	keyMeta       = []byte("__meta")
	bucketRecords = []byte("records")
)

// reservedPrefix marks top-level buckets that belong to other stores sharing
// the database file (chunks, projects). They are invisible to collection
// listing and off limits as collection names.
const reservedPrefix = "__"

// collectionMeta is persisted under keyMeta inside every collection bucket.
type collectionMeta struct {
	EmbeddingSize int `json:"embedding_size"`
}

// storedRecord is the JSON payload persisted per record id.
type storedRecord struct {
	Text     string            `json:"text"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Store is a file-backed embedded vector engine.
//
// The distance metric is fixed at construction and applied to every
// collection the store creates. Record upserts overwrite by id, so re-running
// a page of deterministic record ids is idempotent.
type Store struct {
	path     string
	distance vectorstore.Distance
	logger   *slog.Logger

	db *bbolt.DB
}

// New creates a bolt-backed store for the database file at path.
// Call Connect before use.
func New(path string, distance vectorstore.Distance, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:     path,
		distance: distance,
		logger:   logger,
	}
}

// Connect opens the on-disk store, creating the parent directory if needed.
func (s *Store) Connect(ctx context.Context) error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := bbolt.Open(s.path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db %s: %w", s.path, err)
	}
	s.db = db

	s.logger.Debug("bolt vector store connected", "path", s.path, "distance", s.distance)
	return ctx.Err()
}

// DB exposes the open database handle so the chunk and project stores can
// share the same file. Nil before Connect.
func (s *Store) DB() *bbolt.DB {
	return s.db
}

// Disconnect releases the on-disk store. Idempotent.
func (s *Store) Disconnect(_ context.Context) error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("failed to close bolt db: %w", err)
	}
	return nil
}

// CollectionExists reports whether the named collection bucket exists.
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	if s.db == nil {
		return false, vectorstore.ErrNotConnected
	}

	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket([]byte(name)) != nil
		return nil
	})
	return exists, err
}

// ListCollections returns the names of all top-level collection buckets.
func (s *Store) ListCollections(_ context.Context) ([]string, error) {
	if s.db == nil {
		return nil, vectorstore.ErrNotConnected
	}

	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			if strings.HasPrefix(string(name), reservedPrefix) {
				return nil
			}
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	return names, nil
}

// CollectionInfo returns the record count and embedding size of a collection.
func (s *Store) CollectionInfo(_ context.Context, name string) (*vectorstore.CollectionInfo, error) {
	if s.db == nil {
		return nil, vectorstore.ErrNotConnected
	}

	var info *vectorstore.CollectionInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
		}

		meta, err := readMeta(b)
		if err != nil {
			return err
		}

		var count int64
		if records := b.Bucket(bucketRecords); records != nil {
			count = int64(records.Stats().KeyN)
		}

		info = &vectorstore.CollectionInfo{
			Name:          name,
			RecordCount:   count,
			EmbeddingSize: meta.EmbeddingSize,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// CreateCollection creates the collection bucket with its meta record.
// Returns (false, nil) when the collection already existed and doReset was
// false. With doReset the bucket is dropped first, unconditionally.
func (s *Store) CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) (bool, error) {
	if s.db == nil {
		return false, vectorstore.ErrNotConnected
	}
	if name == "" || strings.HasPrefix(name, reservedPrefix) {
		return false, fmt.Errorf("%w: %q", vectorstore.ErrInvalidCollectionName, name)
	}
	if embeddingSize <= 0 {
		return false, fmt.Errorf("%w: embedding size %d", vectorstore.ErrDimensionMismatch, embeddingSize)
	}

	if doReset {
		if err := s.DeleteCollection(ctx, name); err != nil {
			return false, err
		}
	}

	created := false
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(name)) != nil {
			return nil
		}

		b, err := tx.CreateBucket([]byte(name))
		if err != nil {
			return fmt.Errorf("failed to create collection bucket: %w", err)
		}
		if _, err := b.CreateBucket(bucketRecords); err != nil {
			return fmt.Errorf("failed to create records bucket: %w", err)
		}

		meta, err := json.Marshal(collectionMeta{EmbeddingSize: embeddingSize})
		if err != nil {
			return err
		}
		if err := b.Put(keyMeta, meta); err != nil {
			return fmt.Errorf("failed to write collection meta: %w", err)
		}

		created = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if created {
		s.logger.Debug("collection created", "collection", name, "embedding_size", embeddingSize)
	}
	return created, nil
}

// DeleteCollection removes the collection bucket. No-op if absent. Reserved
// buckets are not collections and cannot be deleted through here.
func (s *Store) DeleteCollection(_ context.Context, name string) error {
	if s.db == nil {
		return vectorstore.ErrNotConnected
	}
	if strings.HasPrefix(name, reservedPrefix) {
		return fmt.Errorf("%w: %q", vectorstore.ErrInvalidCollectionName, name)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket([]byte(name)) == nil {
			return nil
		}
		if err := tx.DeleteBucket([]byte(name)); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", name, err)
		}
		return nil
	})
}

// InsertOne upserts a single record into the collection.
func (s *Store) InsertOne(ctx context.Context, name, text string, vector []float32, metadata map[string]string, recordID int) error {
	return s.InsertMany(ctx, name,
		[]string{text},
		[][]float32{vector},
		[]map[string]string{metadata},
		[]int{recordID},
		1,
	)
}

// InsertMany upserts records in batches of batchSize, one write transaction
// per batch. When a batch fails, earlier batches stay committed: there is no
// cross-batch transaction, and the whole call reports the failure. Upserts
// overwrite by record id, so retrying the call with the same ids converges.
func (s *Store) InsertMany(ctx context.Context, name string, texts []string, vectors [][]float32, metadata []map[string]string, recordIDs []int, batchSize int) error {
	if s.db == nil {
		return vectorstore.ErrNotConnected
	}
	if len(vectors) != len(recordIDs) || len(texts) != len(vectors) {
		return vectorstore.ErrBatchMismatch
	}
	if metadata != nil && len(metadata) != len(texts) {
		return vectorstore.ErrBatchMismatch
	}
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	for _, id := range recordIDs {
		if id < 0 {
			return fmt.Errorf("%w: %d", vectorstore.ErrInvalidRecordID, id)
		}
	}

	for start := 0; start < len(texts); start += batchSize {
		// Suspension point between batches: honor cancellation here, never
		// inside a write transaction.
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+batchSize, len(texts))

		err := s.db.Update(func(tx *bbolt.Tx) error {
			b := tx.Bucket([]byte(name))
			if b == nil {
				return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
			}
			meta, err := readMeta(b)
			if err != nil {
				return err
			}
			records := b.Bucket(bucketRecords)
			if records == nil {
				return fmt.Errorf("%w: %s has no records bucket", vectorstore.ErrCollectionNotFound, name)
			}

			for i := start; i < end; i++ {
				if len(vectors[i]) != meta.EmbeddingSize {
					return fmt.Errorf("%w: expected %d, got %d",
						vectorstore.ErrDimensionMismatch, meta.EmbeddingSize, len(vectors[i]))
				}

				rec := storedRecord{Text: texts[i], Vector: vectors[i]}
				if metadata != nil {
					rec.Metadata = metadata[i]
				}
				data, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				if err := records.Put(recordKey(recordIDs[i]), data); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			s.logger.Error("batch insert failed",
				"collection", name, "batch_start", start, "error", err)
			return fmt.Errorf("failed to insert batch starting at %d: %w", start, err)
		}
	}

	return nil
}

// SearchByVector scans all records and returns the limit nearest by the
// configured distance metric, best match first.
func (s *Store) SearchByVector(_ context.Context, name string, vector []float32, limit int) ([]vectorstore.RetrievedDocument, error) {
	if s.db == nil {
		return nil, vectorstore.ErrNotConnected
	}
	if limit <= 0 {
		limit = 10
	}

	var results []vectorstore.RetrievedDocument
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
		}
		records := b.Bucket(bucketRecords)
		if records == nil {
			return nil
		}

		return records.ForEach(func(_, v []byte) error {
			var rec storedRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				// Corrupted entries are a data-quality condition, not a
				// search failure.
				s.logger.Warn("skipping unreadable record", "collection", name, "error", err)
				return nil
			}
			results = append(results, vectorstore.RetrievedDocument{
				Text:  rec.Text,
				Score: s.score(vector, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// score applies the configured distance metric; higher is more similar.
func (s *Store) score(query, candidate []float32) float64 {
	switch s.distance {
	case vectorstore.DistanceDot:
		return dotProduct(query, candidate)
	default:
		return cosineSimilarity(query, candidate)
	}
}

func readMeta(b *bbolt.Bucket) (*collectionMeta, error) {
	data := b.Get(keyMeta)
	if data == nil {
		return nil, fmt.Errorf("collection meta missing")
	}
	var meta collectionMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode collection meta: %w", err)
	}
	return &meta, nil
}

// recordKey encodes a record id as a big-endian key so bucket iteration
// follows record id order.
func recordKey(id int) []byte {
	var key [8]byte
	binary.BigEndian.PutUint64(key[:], uint64(id))
	return key[:]
}

func dotProduct(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
