// Package testutil provides shared testing utilities: deterministic AI
// provider fakes, an embedded bolt store factory, and a PostgreSQL container
// with the pgvector extension.
package testutil

import (
	"context"
	"sync"

	"github.com/ragforge/ragforge/internal/llm"
)

// EmbedCall records one Embed invocation for later assertions.
type EmbedCall struct {
	Text string
	Mode llm.EmbedMode
}

// StaticEmbedder is a deterministic llm.Embedder. Texts listed in Vectors
// embed to their mapped vector; everything else embeds to Default. Safe for
// concurrent use.
//
// With Err set every call fails; FailAfter delays the failure until that
// many calls have succeeded, for exercising mid-run failure paths.
type StaticEmbedder struct {
	Size      int
	Vectors   map[string][]float32
	Default   []float32
	Err       error
	FailAfter int

	mu    sync.Mutex
	calls []EmbedCall
}

var _ llm.Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder returns an embedder producing size-dimensional vectors.
// The default vector is the first basis vector.
func NewStaticEmbedder(size int) *StaticEmbedder {
	def := make([]float32, size)
	def[0] = 1
	return &StaticEmbedder{
		Size:    size,
		Vectors: make(map[string][]float32),
		Default: def,
	}
}

func (e *StaticEmbedder) Embed(_ context.Context, text string, mode llm.EmbedMode) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, EmbedCall{Text: text, Mode: mode})
	call := len(e.calls)
	e.mu.Unlock()

	if e.Err != nil && call > e.FailAfter {
		return nil, e.Err
	}
	if v, ok := e.Vectors[text]; ok {
		return v, nil
	}
	return e.Default, nil
}

func (e *StaticEmbedder) EmbeddingSize() int {
	return e.Size
}

// Calls returns a copy of the recorded invocations.
func (e *StaticEmbedder) Calls() []EmbedCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EmbedCall, len(e.calls))
	copy(out, e.calls)
	return out
}

// ScriptedGenerator is an llm.Generator returning a fixed response. It
// records every prompt and history it receives.
type ScriptedGenerator struct {
	Response string
	Err      error

	mu        sync.Mutex
	prompts   []string
	histories [][]llm.Message
}

var _ llm.Generator = (*ScriptedGenerator)(nil)

func (g *ScriptedGenerator) Generate(_ context.Context, prompt string, history []llm.Message) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.histories = append(g.histories, history)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	return g.Response, nil
}

// CallCount reports how many times Generate was invoked.
func (g *ScriptedGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

// LastPrompt returns the most recent prompt, or "" if never called.
func (g *ScriptedGenerator) LastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// LastHistory returns the most recent history, or nil if never called.
func (g *ScriptedGenerator) LastHistory() []llm.Message {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.histories) == 0 {
		return nil
	}
	return g.histories[len(g.histories)-1]
}
