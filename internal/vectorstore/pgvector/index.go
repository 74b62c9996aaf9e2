package pgvector

import (
	"context"
	"fmt"

	"github.com/ragforge/ragforge/internal/vectorstore"
)

// indexName derives the deterministic ANN index name for a collection.
func indexName(collection string) string {
	return collection + "_embedding_idx"
}

// opClass maps the configured distance to the pgvector operator class the
// index must be built with. An index built with the wrong class is unusable
// for the search expression.
func (s *Store) opClass() string {
	if s.distance == vectorstore.DistanceDot {
		return "vector_ip_ops"
	}
	return "vector_cosine_ops"
}

// vectorIndexExists checks pg_indexes for the collection's ANN index.
func (s *Store) vectorIndexExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_indexes WHERE schemaname = 'public' AND tablename = $1 AND indexname = $2)",
		collection, indexName(collection),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index on %s: %w", collection, err)
	}
	return exists, nil
}

// CreateVectorIndex builds the HNSW index when the collection has grown past
// the configured row threshold. Returns (false, nil) when the index already
// exists or the table is still below the threshold, so callers can invoke it
// after every bulk load without bookkeeping.
func (s *Store) CreateVectorIndex(ctx context.Context, collection string) (bool, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, collection)
	}

	indexed, err := s.vectorIndexExists(ctx, collection)
	if err != nil {
		return false, err
	}
	if indexed {
		return false, nil
	}

	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(collection)).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to count %s: %w", collection, err)
	}
	if count < int64(s.indexThreshold) {
		s.logger.Debug("skipping index build below threshold",
			"collection", collection, "rows", count, "threshold", s.indexThreshold)
		return false, nil
	}

	s.logger.Info("building vector index",
		"collection", collection, "rows", count, "type", DefaultIndexType, "op_class", s.opClass())

	createSQL := fmt.Sprintf("CREATE INDEX %s ON %s USING %s (embedding %s)",
		quoteIdent(indexName(collection)), quoteIdent(collection), DefaultIndexType, s.opClass())
	if _, err := s.pool.Exec(ctx, createSQL); err != nil {
		return false, fmt.Errorf("failed to create index on %s: %w", collection, err)
	}
	return true, nil
}

// ResetVectorIndex drops the collection's ANN index if present and rebuilds
// it under the same threshold rule. Used after a destructive re-index where
// the old index no longer matches the data.
func (s *Store) ResetVectorIndex(ctx context.Context, collection string) (bool, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, collection)
	}

	dropSQL := "DROP INDEX IF EXISTS " + quoteIdent(indexName(collection))
	if _, err := s.pool.Exec(ctx, dropSQL); err != nil {
		return false, fmt.Errorf("failed to drop index on %s: %w", collection, err)
	}
	return s.CreateVectorIndex(ctx, collection)
}
