package project

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry stores projects in the relational schema.
type PostgresRegistry struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ Registry = (*PostgresRegistry)(nil)

func NewPostgresRegistry(pool *pgxpool.Pool, logger *slog.Logger) *PostgresRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRegistry{pool: pool, logger: logger}
}

func (r *PostgresRegistry) GetOrCreate(ctx context.Context, id string) (*Project, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	// The no-op update makes RETURNING yield the row on conflict too.
	var p Project
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (id, created_at) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET id = EXCLUDED.id
		RETURNING id, created_at`,
		id, time.Now().UTC(),
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create project %s: %w", id, err)
	}
	return &p, nil
}

func (r *PostgresRegistry) List(ctx context.Context, page, pageSize int) ([]Project, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, created_at FROM projects
		ORDER BY created_at, id
		LIMIT $1 OFFSET $2`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}
