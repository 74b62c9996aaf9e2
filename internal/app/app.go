// Package app wires configuration, storage backends, the AI provider, and
// the retrieval pipeline into a runnable application. Backend selection
// happens here and nowhere else; the rest of the code sees only the
// storage contracts.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/ragforge/ragforge/db"
	"github.com/ragforge/ragforge/internal/chunkstore"
	"github.com/ragforge/ragforge/internal/config"
	"github.com/ragforge/ragforge/internal/llm"
	"github.com/ragforge/ragforge/internal/log"
	"github.com/ragforge/ragforge/internal/nlp"
	"github.com/ragforge/ragforge/internal/project"
	"github.com/ragforge/ragforge/internal/template"
	"github.com/ragforge/ragforge/internal/vectorstore"
	boltstore "github.com/ragforge/ragforge/internal/vectorstore/bolt"
	pgstore "github.com/ragforge/ragforge/internal/vectorstore/pgvector"
)

// App holds every wired component. Close releases them in reverse order of
// construction.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Store     vectorstore.Store
	Chunks    chunkstore.Store
	Projects  project.Registry
	Templates *template.Catalog
	Pipeline  *nlp.Pipeline

	pool *pgxpool.Pool
}

// Options toggles optional components.
type Options struct {
	// WithProvider controls whether the AI provider client is
	// initialized. Commands that never embed or generate (migrate,
	// version) skip it so they run without credentials.
	WithProvider bool
}

// New builds the application from configuration.
func New(ctx context.Context, cfg *config.Config, logger log.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if err := a.setupStorage(ctx); err != nil {
		return nil, err
	}

	templates, err := template.New(cfg.Language)
	if err != nil {
		a.close(ctx)
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	a.Templates = templates

	var embedder llm.Embedder
	var generator llm.Generator
	if opts.WithProvider {
		client, err := llm.New(ctx, cfg, logger)
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		embedder = client
		generator = client
	}

	a.Pipeline = nlp.New(a.Store, a.Chunks, embedder, generator, templates, nlp.Options{
		PageSize:  cfg.IndexPageSize,
		BatchSize: cfg.VectorBatchSize,
	}, logger)

	return a, nil
}

// setupStorage selects and connects the backend stack. The bolt backend
// keeps vectors, chunks, and projects in one file; the pgvector backend
// shares one connection pool across all three.
func (a *App) setupStorage(ctx context.Context) error {
	cfg := a.Config
	distance := vectorstore.Distance(cfg.VectorDistance)

	switch cfg.VectorBackend {
	case config.BackendBolt:
		store := boltstore.New(cfg.BoltPath, distance, a.Logger)
		if err := store.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect bolt backend: %w", err)
		}
		a.Store = store
		a.Chunks = chunkstore.NewBoltStore(store.DB(), a.Logger)
		a.Projects = project.NewBoltRegistry(store.DB(), a.Logger)

	case config.BackendPGVector:
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}

		poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnString())
		if err != nil {
			return fmt.Errorf("failed to parse postgres config: %w", err)
		}
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			return pgxvec.RegisterTypes(ctx, conn)
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return fmt.Errorf("failed to create connection pool: %w", err)
		}
		a.pool = pool

		store := pgstore.NewWithPool(pool, distance, cfg.IndexThreshold, a.Logger)
		if err := store.Connect(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("failed to connect pgvector backend: %w", err)
		}
		a.Store = store
		a.Chunks = chunkstore.NewPostgresStore(pool, a.Logger)
		a.Projects = project.NewPostgresRegistry(pool, a.Logger)

	default:
		return fmt.Errorf("%w: %s", config.ErrInvalidBackend, cfg.VectorBackend)
	}

	return nil
}

// Close releases storage connections. Safe to call once after New succeeds.
func (a *App) Close(ctx context.Context) error {
	return a.close(ctx)
}

func (a *App) close(ctx context.Context) error {
	var firstErr error
	if a.Store != nil {
		if err := a.Store.Disconnect(ctx); err != nil {
			firstErr = err
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
	return firstErr
}
