package nlp

import (
	"context"
	"fmt"

	"github.com/ragforge/ragforge/internal/chunker"
	"github.com/ragforge/ragforge/internal/chunkstore"
)

// DefaultChunkSize is the target chunk size when a caller passes zero.
const DefaultChunkSize = 512

// ProcessResult reports how a processing run changed the chunk store.
type ProcessResult struct {
	Chunks  int   `json:"chunks"`
	Deleted int64 `json:"deleted"`
}

// Process splits the given documents into chunks and persists them for later
// indexing. With doReset the project's existing chunks are removed first;
// otherwise new chunks are appended after the current tail, keeping chunk
// order contiguous across multiple uploads.
func (p *Pipeline) Process(ctx context.Context, projectID string, docs []chunker.Document, chunkSize int, doReset bool) (*ProcessResult, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	result := &ProcessResult{}
	if doReset {
		deleted, err := p.chunks.DeleteByProject(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to reset chunks of project %s: %w", projectID, err)
		}
		result.Deleted = deleted
	}

	candidates := chunker.SplitDocuments(docs, chunkSize)
	if len(candidates) == 0 {
		return result, nil
	}

	start := 0
	if !doReset {
		count, err := p.chunks.Count(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to count chunks of project %s: %w", projectID, err)
		}
		start = int(count)
	}

	chunks := make([]chunkstore.Chunk, len(candidates))
	for i, c := range candidates {
		chunks[i] = chunkstore.Chunk{
			ProjectID: projectID,
			Order:     start + i + 1,
			Text:      c.Text,
			Metadata:  c.Metadata,
		}
	}

	inserted, err := p.chunks.InsertMany(ctx, chunks, chunkstore.DefaultBatchSize)
	result.Chunks = inserted
	if err != nil {
		return result, fmt.Errorf("failed to store chunks of project %s: %w", projectID, err)
	}

	p.logger.Info("documents processed",
		"project", projectID, "chunks", inserted, "reset", doReset)
	return result, nil
}

// CollectionInfo reports the state of the project's collection.
func (p *Pipeline) CollectionInfo(ctx context.Context, projectID string) (*IndexInfo, error) {
	collection := CollectionName(projectID)
	info, err := p.store.CollectionInfo(ctx, collection)
	if err != nil {
		return nil, err
	}
	return &IndexInfo{
		Collection:    info.Name,
		RecordCount:   info.RecordCount,
		EmbeddingSize: info.EmbeddingSize,
	}, nil
}

// IndexInfo is the externally visible shape of a collection's state.
type IndexInfo struct {
	Collection    string `json:"collection"`
	RecordCount   int64  `json:"record_count"`
	EmbeddingSize int    `json:"embedding_size"`
}
