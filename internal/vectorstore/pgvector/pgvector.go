// Package pgvector implements the vector store contract on PostgreSQL with
// the pgvector extension.
//
// Every collection is a table named after the collection, with a vector
// column sized at creation. Existence and catalog queries go straight to
// pg_tables/pg_indexes rather than a cached registry, so answers are always
// authoritative at the cost of a round trip.
//
// The secondary ANN index is threshold-gated: CreateVectorIndex only builds
// it once the table holds at least the configured row count, deferring the
// index-build cost until it amortizes. Below the threshold searches fall back
// to a full scan.
package pgvector

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvec "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/ragforge/ragforge/internal/vectorstore"
)

// DefaultIndexType is the ANN index built by CreateVectorIndex.
const DefaultIndexType = "hnsw"

// collectionNameRE enforces PostgreSQL identifier rules for table names.
// The deterministic "collection_<projectID>" scheme with alphanumeric
// project ids always satisfies it; anything else is rejected up front.
var collectionNameRE = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Store is a PostgreSQL+pgvector backed vector store.
type Store struct {
	connString     string
	distance       vectorstore.Distance
	indexThreshold int
	logger         *slog.Logger

	pool *pgxpool.Pool
}

var (
	_ vectorstore.Store   = (*Store)(nil)
	_ vectorstore.Indexer = (*Store)(nil)
)

// New creates a pgvector-backed store. indexThreshold is the minimum row
// count before CreateVectorIndex builds the ANN index. Call Connect before
// use.
func New(connString string, distance vectorstore.Distance, indexThreshold int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		connString:     connString,
		distance:       distance,
		indexThreshold: indexThreshold,
		logger:         logger,
	}
}

// NewWithPool wraps an existing connection pool. Used by tests that manage
// the pool lifecycle themselves; Connect still runs the extension setup.
func NewWithPool(pool *pgxpool.Pool, distance vectorstore.Distance, indexThreshold int, logger *slog.Logger) *Store {
	s := New("", distance, indexThreshold, logger)
	s.pool = pool
	return s
}

// Connect establishes the connection pool and ensures the vector extension
// is enabled. Safe to call on every startup; the extension create is
// idempotent.
func (s *Store) Connect(ctx context.Context) error {
	if s.pool == nil {
		cfg, err := pgxpool.ParseConfig(s.connString)
		if err != nil {
			return fmt.Errorf("failed to parse connection string: %w", err)
		}
		// Register pgvector codecs on every new connection so []float32
		// vectors bind natively.
		cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}

		pool, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		s.pool = pool
	}

	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to enable vector extension: %w", err)
	}

	s.logger.Debug("pgvector store connected", "distance", s.distance, "index_threshold", s.indexThreshold)
	return nil
}

// Disconnect releases the connection pool. Idempotent.
func (s *Store) Disconnect(_ context.Context) error {
	if s.pool != nil {
		s.pool.Close()
		s.pool = nil
	}
	return nil
}

// CollectionExists checks the system catalog for the collection table.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	if s.pool == nil {
		return false, vectorstore.ErrNotConnected
	}
	if err := validateCollectionName(name); err != nil {
		return false, err
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_tables WHERE schemaname = 'public' AND tablename = $1)",
		name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	return exists, nil
}

// ListCollections returns all collection tables, identified by prefix.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	if s.pool == nil {
		return nil, vectorstore.ErrNotConnected
	}

	rows, err := s.pool.Query(ctx,
		"SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE $1 ORDER BY tablename",
		vectorstore.CollectionPrefix+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// CollectionInfo returns the row count and vector dimension of a collection.
func (s *Store) CollectionInfo(ctx context.Context, name string) (*vectorstore.CollectionInfo, error) {
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+quoteIdent(name)).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count collection %s: %w", name, err)
	}

	// For the vector type, atttypmod carries the declared dimension.
	var dim int
	err = s.pool.QueryRow(ctx,
		"SELECT atttypmod FROM pg_attribute WHERE attrelid = $1::regclass AND attname = 'embedding'",
		name,
	).Scan(&dim)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding size of %s: %w", name, err)
	}

	return &vectorstore.CollectionInfo{
		Name:          name,
		RecordCount:   count,
		EmbeddingSize: dim,
	}, nil
}

// CreateCollection creates the collection table. Returns (false, nil) when
// the table already existed and doReset was false. With doReset the table is
// dropped first, unconditionally.
func (s *Store) CreateCollection(ctx context.Context, name string, embeddingSize int, doReset bool) (bool, error) {
	if s.pool == nil {
		return false, vectorstore.ErrNotConnected
	}
	if err := validateCollectionName(name); err != nil {
		return false, err
	}
	if embeddingSize <= 0 {
		return false, fmt.Errorf("%w: embedding size %d", vectorstore.ErrDimensionMismatch, embeddingSize)
	}

	if doReset {
		if err := s.DeleteCollection(ctx, name); err != nil {
			return false, err
		}
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	s.logger.Info("creating collection", "collection", name, "embedding_size", embeddingSize)

	// chunk_id is the caller-assigned record id; the UNIQUE constraint is
	// the conflict target that makes batch retries safe.
	createSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id bigserial PRIMARY KEY,
			text text NOT NULL,
			embedding vector(%d) NOT NULL,
			metadata jsonb DEFAULT '{}',
			chunk_id integer NOT NULL UNIQUE
		)`, quoteIdent(name), embeddingSize)

	if _, err := s.pool.Exec(ctx, createSQL); err != nil {
		return false, fmt.Errorf("failed to create collection %s: %w", name, err)
	}
	return true, nil
}

// DeleteCollection drops the collection table. No-op if absent.
func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	if s.pool == nil {
		return vectorstore.ErrNotConnected
	}
	if err := validateCollectionName(name); err != nil {
		return err
	}

	s.logger.Info("deleting collection", "collection", name)
	if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)+" CASCADE"); err != nil {
		return fmt.Errorf("failed to delete collection %s: %w", name, err)
	}
	return nil
}

// InsertOne upserts a single record. Records with an already-present
// chunk_id are skipped, matching the bulk insert's conflict policy.
func (s *Store) InsertOne(ctx context.Context, name, text string, vector []float32, metadata map[string]string, recordID int) error {
	if s.pool == nil {
		return vectorstore.ErrNotConnected
	}
	if recordID < 0 {
		return fmt.Errorf("%w: %d", vectorstore.ErrInvalidRecordID, recordID)
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (text, embedding, metadata, chunk_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (chunk_id) DO NOTHING`, quoteIdent(name))

	if _, err := s.pool.Exec(ctx, insertSQL, text, pgvec.NewVector(vector), metadataOrEmpty(metadata), recordID); err != nil {
		return fmt.Errorf("failed to insert record %d into %s: %w", recordID, name, err)
	}
	return nil
}

// InsertMany writes records in batches, one multi-row INSERT per batch, each
// inside its own transaction. Batches are individually atomic; a failing
// batch leaves earlier batches committed and fails the whole call. Duplicate
// chunk_ids are silently skipped, so retrying a batch is safe.
func (s *Store) InsertMany(ctx context.Context, name string, texts []string, vectors [][]float32, metadata []map[string]string, recordIDs []int, batchSize int) error {
	if s.pool == nil {
		return vectorstore.ErrNotConnected
	}
	if len(vectors) != len(recordIDs) || len(texts) != len(vectors) {
		return vectorstore.ErrBatchMismatch
	}
	if metadata != nil && len(metadata) != len(texts) {
		return vectorstore.ErrBatchMismatch
	}
	if batchSize <= 0 {
		batchSize = 50
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}

	table := quoteIdent(name)
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+batchSize, len(texts))
		if err := s.insertBatch(ctx, table, texts[start:end], vectors[start:end], sliceMetadata(metadata, start, end), recordIDs[start:end]); err != nil {
			s.logger.Error("batch insert failed",
				"collection", name, "batch_start", start, "error", err)
			return fmt.Errorf("failed to insert batch starting at %d: %w", start, err)
		}
	}
	return nil
}

// insertBatch issues one multi-row INSERT inside a transaction acquired and
// released for this batch only — never held across a multi-page run.
func (s *Store) insertBatch(ctx context.Context, table string, texts []string, vectors [][]float32, metadata []map[string]string, recordIDs []int) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (text, embedding, metadata, chunk_id) VALUES ", table)

	args := make([]any, 0, len(texts)*4)
	for i := range texts {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)

		var md map[string]string
		if metadata != nil {
			md = metadata[i]
		}
		args = append(args, texts[i], pgvec.NewVector(vectors[i]), metadataOrEmpty(md), recordIDs[i])
	}
	sb.WriteString(" ON CONFLICT (chunk_id) DO NOTHING")

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // no-op after commit
	}()

	if _, err := tx.Exec(ctx, sb.String(), args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// SearchByVector runs a single ranked query ordered by the configured
// distance expression. Scores follow the higher-is-better convention of the
// embedded backend: cosine score is 1 - distance, dot score is the negated
// inner-product distance.
func (s *Store) SearchByVector(ctx context.Context, name string, vector []float32, limit int) ([]vectorstore.RetrievedDocument, error) {
	if s.pool == nil {
		return nil, vectorstore.ErrNotConnected
	}
	if limit <= 0 {
		limit = 10
	}

	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", vectorstore.ErrCollectionNotFound, name)
	}

	var searchSQL string
	switch s.distance {
	case vectorstore.DistanceDot:
		searchSQL = fmt.Sprintf(`
			SELECT text, -(embedding <#> $1) AS score
			FROM %s ORDER BY embedding <#> $1 LIMIT $2`, quoteIdent(name))
	default:
		searchSQL = fmt.Sprintf(`
			SELECT text, 1 - (embedding <=> $1) AS score
			FROM %s ORDER BY embedding <=> $1 LIMIT $2`, quoteIdent(name))
	}

	rows, err := s.pool.Query(ctx, searchSQL, pgvec.NewVector(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", name, err)
	}
	defer rows.Close()

	var results []vectorstore.RetrievedDocument
	for rows.Next() {
		var doc vectorstore.RetrievedDocument
		if err := rows.Scan(&doc.Text, &doc.Score); err != nil {
			return nil, err
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

func validateCollectionName(name string) error {
	if !collectionNameRE.MatchString(name) {
		return fmt.Errorf("%w: %q", vectorstore.ErrInvalidCollectionName, name)
	}
	return nil
}

// quoteIdent quotes a validated identifier for interpolation into DDL and
// queries that cannot take the table name as a bind parameter.
func quoteIdent(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// metadataOrEmpty keeps the jsonb column's default shape for nil metadata.
func metadataOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func sliceMetadata(metadata []map[string]string, start, end int) []map[string]string {
	if metadata == nil {
		return nil
	}
	return metadata[start:end]
}
