package chunkstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps chunks in the relational schema managed by the
// migrations under db/migrations.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing pool; the caller owns its lifecycle.
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{pool: pool, logger: logger}
}

func (s *PostgresStore) InsertMany(ctx context.Context, chunks []Chunk, batchSize int) (int, error) {
	if err := validateAll(chunks); err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	inserted := 0
	for start := 0; start < len(chunks); start += batchSize {
		if err := ctx.Err(); err != nil {
			return inserted, err
		}
		end := min(start+batchSize, len(chunks))
		n, err := s.insertBatch(ctx, chunks[start:end])
		inserted += n
		if err != nil {
			return inserted, fmt.Errorf("failed to insert chunk batch starting at %d: %w", start, err)
		}
	}

	s.logger.Debug("chunks stored", "count", inserted)
	return inserted, nil
}

func (s *PostgresStore) insertBatch(ctx context.Context, chunks []Chunk) (int, error) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO chunks (project_id, chunk_order, text, metadata) VALUES ")

	args := make([]any, 0, len(chunks)*4)
	for i, c := range chunks {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 4
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d)", base+1, base+2, base+3, base+4)
		md := c.Metadata
		if md == nil {
			md = map[string]string{}
		}
		args = append(args, c.ProjectID, c.Order, c.Text, md)
	}

	tag, err := s.pool.Exec(ctx, sb.String(), args...)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetPage(ctx context.Context, projectID string, page, pageSize int) ([]Chunk, error) {
	if page < 1 {
		return nil, ErrInvalidPage
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, chunk_order, text, metadata
		FROM chunks
		WHERE project_id = $1
		ORDER BY chunk_order
		LIMIT $2 OFFSET $3`,
		projectID, pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk page %d of project %s: %w", page, projectID, err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Order, &c.Text, &c.Metadata); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

func (s *PostgresStore) Count(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM chunks WHERE project_id = $1", projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks of project %s: %w", projectID, err)
	}
	return count, nil
}

func (s *PostgresStore) DeleteByProject(ctx context.Context, projectID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM chunks WHERE project_id = $1", projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks of project %s: %w", projectID, err)
	}
	s.logger.Info("chunks deleted", "project", projectID, "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}
