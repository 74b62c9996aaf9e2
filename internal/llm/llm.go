// Package llm defines the narrow provider contracts the retrieval pipeline
// depends on: turning text into vectors and turning a prompt plus history
// into an answer. The genkit-backed implementation lives in genai.go;
// tests substitute deterministic fakes.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnknownProvider is returned by New for provider names no
	// implementation exists for. Startup fails fast instead of degrading.
	ErrUnknownProvider = errors.New("unknown ai provider")

	// ErrEmptyEmbedding marks a provider response with no embedding.
	ErrEmptyEmbedding = errors.New("provider returned empty embedding")
)

// EmbedMode selects the embedding task type. Retrieval-tuned models embed
// documents and queries differently; collapsing the two hurts recall.
type EmbedMode string

const (
	ModeDocument EmbedMode = "document"
	ModeQuery    EmbedMode = "query"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
	RoleModel  Role = "model"
)

// Message is one turn of conversation history handed to the generator.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Embedder turns text into a vector. Implementations must return vectors of
// a fixed size reported by EmbeddingSize.
type Embedder interface {
	Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error)
	EmbeddingSize() int
}

// Generator produces an answer for a prompt given prior history.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}
