package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"google.golang.org/genai"

	"github.com/ragforge/ragforge/internal/config"
)

// Retrieval task types understood by the Google embedding models. Documents
// and queries are embedded with different task types on purpose.
const (
	taskTypeDocument = "RETRIEVAL_DOCUMENT"
	taskTypeQuery    = "RETRIEVAL_QUERY"
)

// Client is the genkit-backed Embedder and Generator.
type Client struct {
	g             *genkit.Genkit
	embedder      ai.Embedder
	modelName     string
	embeddingSize int
	maxTokens     int
	temperature   float32
	logger        *slog.Logger
}

var (
	_ Embedder  = (*Client)(nil)
	_ Generator = (*Client)(nil)
)

// New initializes genkit with the configured provider plugin and returns a
// client bound to the configured chat and embedding models. Unknown
// providers fail here, at startup, not on first use.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var g *genkit.Genkit
	var embedder ai.Embedder

	switch cfg.Provider {
	case config.ProviderGoogleAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, fmt.Errorf("failed to initialize genkit with googleai provider")
		}
		embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
		logger.Info("initialized googleai provider",
			"model", cfg.ModelName, "embedder", cfg.EmbedderModel)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}

	return &Client{
		g:             g,
		embedder:      embedder,
		modelName:     cfg.ModelName,
		embeddingSize: cfg.EmbeddingSize,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
		logger:        logger,
	}, nil
}

// Embed returns the embedding of text. The mode maps to the provider's
// retrieval task type so documents and queries land in compatible but
// task-appropriate regions of the embedding space.
func (c *Client) Embed(ctx context.Context, text string, mode EmbedMode) ([]float32, error) {
	taskType := taskTypeDocument
	if mode == ModeQuery {
		taskType = taskTypeQuery
	}

	req := &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{
			TaskType: taskType,
		},
	}

	resp, err := c.embedder.Embed(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, ErrEmptyEmbedding
	}
	return resp.Embeddings[0].Embedding, nil
}

// EmbeddingSize reports the configured vector dimension.
func (c *Client) EmbeddingSize() int {
	return c.embeddingSize
}

// Generate answers prompt with the configured model. History messages become
// conversation turns; a leading system message becomes the system prompt.
func (c *Client) Generate(ctx context.Context, prompt string, history []Message) (string, error) {
	var system strings.Builder
	messages := make([]*ai.Message, 0, len(history)+1)
	for _, m := range history {
		switch m.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(m.Content)
		case RoleModel:
			messages = append(messages, ai.NewModelMessage(ai.NewTextPart(m.Content)))
		default:
			messages = append(messages, ai.NewUserMessage(ai.NewTextPart(m.Content)))
		}
	}
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(prompt)))

	opts := []ai.GenerateOption{
		ai.WithModelName(c.modelName),
		ai.WithMessages(messages...),
		ai.WithConfig(&genai.GenerateContentConfig{
			MaxOutputTokens: int32(c.maxTokens),
			Temperature:     genai.Ptr(c.temperature),
		}),
	}
	if system.Len() > 0 {
		opts = append(opts, ai.WithSystem(system.String()))
	}

	resp, err := genkit.Generate(ctx, c.g, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate answer: %w", err)
	}
	return resp.Text(), nil
}
