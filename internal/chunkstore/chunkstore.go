// Package chunkstore persists the chunked source text of a project so that
// indexing can stream it back page by page without holding a whole corpus in
// memory.
package chunkstore

import (
	"context"
	"errors"
)

// DefaultBatchSize bounds how many chunks a single insert statement carries.
const DefaultBatchSize = 100

// DefaultPageSize is the page size used when a caller passes zero.
const DefaultPageSize = 50

var (
	// ErrInvalidChunk marks a chunk that cannot be stored, such as empty
	// text or a non-positive order.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidPage marks a page number below 1.
	ErrInvalidPage = errors.New("page numbers start at 1")
)

// Chunk is one contiguous piece of a project's source text. Order is the
// 1-based position of the chunk within its project and fixes the iteration
// order of GetPage.
type Chunk struct {
	ID        int64             `json:"id"`
	ProjectID string            `json:"project_id"`
	Order     int               `json:"order"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Validate rejects chunks that would corrupt pagination.
func (c *Chunk) Validate() error {
	if c.Text == "" {
		return ErrInvalidChunk
	}
	if c.Order < 1 {
		return ErrInvalidChunk
	}
	return nil
}

// Store is the persistence contract for project chunks. Implementations
// exist for PostgreSQL and for the embedded bolt file, mirroring the vector
// backends so a deployment never needs two databases.
type Store interface {
	// InsertMany stores chunks in batches and returns how many were
	// written. Chunks are validated up front; an invalid chunk fails the
	// whole call before anything is written.
	InsertMany(ctx context.Context, chunks []Chunk, batchSize int) (int, error)

	// GetPage returns one page of a project's chunks ordered by chunk
	// order. Pages start at 1. An empty slice means the project has no
	// chunks at that page.
	GetPage(ctx context.Context, projectID string, page, pageSize int) ([]Chunk, error)

	// Count reports how many chunks a project has.
	Count(ctx context.Context, projectID string) (int64, error)

	// DeleteByProject removes all chunks of a project and returns how
	// many were removed.
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
}

func validateAll(chunks []Chunk) error {
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
