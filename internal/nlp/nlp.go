// Package nlp orchestrates the retrieval pipeline: streaming a project's
// chunks into its vector collection, semantic search over that collection,
// and assembling retrieved context into a grounded answer.
package nlp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ragforge/ragforge/internal/chunkstore"
	"github.com/ragforge/ragforge/internal/llm"
	"github.com/ragforge/ragforge/internal/template"
	"github.com/ragforge/ragforge/internal/vectorstore"
)

// ErrNoResults means retrieval legitimately found nothing: the project has
// no collection yet or the search matched no records. It is not a failure;
// callers distinguish it from backend and provider errors with errors.Is.
var ErrNoResults = errors.New("no relevant documents found")

// PromptGroup is the locale group holding the RAG prompt fragments.
const PromptGroup = "rag"

// CollectionName derives the deterministic collection name of a project.
// Same project, same name, on every backend.
func CollectionName(projectID string) string {
	return vectorstore.CollectionPrefix + projectID
}

// Options tune the batch geometry of bulk indexing.
type Options struct {
	// PageSize is how many chunks are read and embedded per page.
	PageSize int
	// BatchSize is how many records a single store write may carry.
	BatchSize int
	// SearchLimit is the default result count when a caller passes zero.
	SearchLimit int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.PageSize <= 0 {
		out.PageSize = 100
	}
	if out.BatchSize <= 0 {
		out.BatchSize = 50
	}
	if out.SearchLimit <= 0 {
		out.SearchLimit = 10
	}
	return out
}

// Pipeline wires the chunk store, vector store, provider, and prompt catalog
// into the three retrieval operations.
type Pipeline struct {
	store     vectorstore.Store
	chunks    chunkstore.Store
	embedder  llm.Embedder
	generator llm.Generator
	templates *template.Catalog
	opts      Options
	logger    *slog.Logger
}

func New(store vectorstore.Store, chunks chunkstore.Store, embedder llm.Embedder, generator llm.Generator, templates *template.Catalog, opts Options, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:     store,
		chunks:    chunks,
		embedder:  embedder,
		generator: generator,
		templates: templates,
		opts:      opts.withDefaults(),
		logger:    logger,
	}
}

// IndexResult reports what a bulk indexing run accomplished. On error it
// still carries the counts of the pages that committed before the failure.
type IndexResult struct {
	Collection   string `json:"collection"`
	Pages        int    `json:"pages"`
	Inserted     int    `json:"inserted"`
	IndexCreated bool   `json:"index_created"`
}

// IndexProject streams every chunk of the project into its collection.
//
// The collection is created exactly once, before the page loop; doReset
// drops any previous contents first. Record ids are assigned contiguously
// from zero across all pages of the run, so a given run is deterministic and
// re-runs overwrite rather than accumulate on backends that upsert by id.
// After the last page, backends that support secondary indexes get a
// threshold-gated index build.
//
// A page failure stops the run and returns the partial result alongside the
// error: everything already committed stays committed.
func (p *Pipeline) IndexProject(ctx context.Context, projectID string, doReset bool) (*IndexResult, error) {
	collection := CollectionName(projectID)
	result := &IndexResult{Collection: collection}

	created, err := p.store.CreateCollection(ctx, collection, p.embedder.EmbeddingSize(), doReset)
	if err != nil {
		return result, fmt.Errorf("failed to prepare collection %s: %w", collection, err)
	}
	p.logger.Info("indexing project",
		"project", projectID, "collection", collection, "reset", doReset, "collection_created", created)

	recordID := 0
	for page := 1; ; page++ {
		chunks, err := p.chunks.GetPage(ctx, projectID, page, p.opts.PageSize)
		if err != nil {
			return result, fmt.Errorf("failed to read chunk page %d: %w", page, err)
		}
		if len(chunks) == 0 {
			break
		}

		texts := make([]string, len(chunks))
		vectors := make([][]float32, len(chunks))
		metadata := make([]map[string]string, len(chunks))
		recordIDs := make([]int, len(chunks))
		for i, c := range chunks {
			vector, err := p.embedder.Embed(ctx, c.Text, llm.ModeDocument)
			if err != nil {
				return result, fmt.Errorf("failed to embed chunk %d of page %d: %w", c.Order, page, err)
			}
			texts[i] = c.Text
			vectors[i] = vector
			metadata[i] = c.Metadata
			recordIDs[i] = recordID
			recordID++
		}

		if err := p.store.InsertMany(ctx, collection, texts, vectors, metadata, recordIDs, p.opts.BatchSize); err != nil {
			return result, fmt.Errorf("failed to index page %d: %w", page, err)
		}
		result.Pages++
		result.Inserted += len(chunks)
	}

	// Secondary index support is optional per backend; the embedded engine
	// searches by full scan and simply skips this.
	if indexer, ok := p.store.(vectorstore.Indexer); ok {
		indexCreated, err := indexer.CreateVectorIndex(ctx, collection)
		if err != nil {
			return result, fmt.Errorf("failed to build vector index on %s: %w", collection, err)
		}
		result.IndexCreated = indexCreated
	}

	p.logger.Info("project indexed",
		"project", projectID, "pages", result.Pages, "records", result.Inserted,
		"index_created", result.IndexCreated)
	return result, nil
}

// Search embeds the query and returns the nearest records, best first.
// A project with no collection and a search with no hits both return
// ErrNoResults.
func (p *Pipeline) Search(ctx context.Context, projectID, query string, limit int) ([]vectorstore.RetrievedDocument, error) {
	if limit <= 0 {
		limit = p.opts.SearchLimit
	}
	collection := CollectionName(projectID)

	exists, err := p.store.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", collection, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: project %s is not indexed", ErrNoResults, projectID)
	}

	vector, err := p.embedder.Embed(ctx, query, llm.ModeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := p.store.SearchByVector(ctx, collection, vector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", collection, err)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// AnswerResult carries the generated answer together with the retrieved
// context and the exact prompt the generator saw.
type AnswerResult struct {
	Answer     string                          `json:"answer"`
	FullPrompt string                          `json:"full_prompt"`
	Documents  []vectorstore.RetrievedDocument `json:"documents"`
}

// Answer retrieves context for the query and generates a grounded answer.
// When retrieval finds nothing the generator is never invoked and
// ErrNoResults propagates unchanged.
func (p *Pipeline) Answer(ctx context.Context, projectID, query string, limit int) (*AnswerResult, error) {
	docs, err := p.Search(ctx, projectID, query, limit)
	if err != nil {
		return nil, err
	}

	system, err := p.templates.Render(PromptGroup, "system_prompt", nil)
	if err != nil {
		return nil, err
	}

	fragments := make([]string, 0, len(docs))
	for i, doc := range docs {
		fragment, err := p.templates.Render(PromptGroup, "document_prompt", map[string]any{
			"DocNum":    i + 1,
			"ChunkText": doc.Text,
		})
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, fragment)
	}

	footer, err := p.templates.Render(PromptGroup, "footer_prompt", map[string]any{
		"Query": query,
	})
	if err != nil {
		return nil, err
	}

	// Document fragments run together line by line; only the footer gets a
	// blank line before it.
	fullPrompt := strings.Join([]string{strings.Join(fragments, "\n"), footer}, "\n\n")
	history := []llm.Message{{Role: llm.RoleSystem, Content: system}}

	answer, err := p.generator.Generate(ctx, fullPrompt, history)
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &AnswerResult{
		Answer:     answer,
		FullPrompt: fullPrompt,
		Documents:  docs,
	}, nil
}
