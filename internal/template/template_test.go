package template

import (
	"errors"
	"strings"
	"testing"
)

func TestNewDefaultsLanguage(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Language() != DefaultLanguage {
		t.Errorf("Language = %q, want %q", c.Language(), DefaultLanguage)
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	c, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := c.Render("rag", "system_prompt", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "documents") {
		t.Errorf("system prompt = %q", out)
	}
}

func TestRenderDocumentPrompt(t *testing.T) {
	c, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := c.Render("rag", "document_prompt", map[string]any{
		"DocNum":    3,
		"ChunkText": "some chunk body",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "3") || !strings.Contains(out, "some chunk body") {
		t.Errorf("document prompt = %q", out)
	}
}

func TestRenderFooterPrompt(t *testing.T) {
	c, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := c.Render("rag", "footer_prompt", map[string]any{"Query": "what is go?"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(out, "what is go?") {
		t.Errorf("footer prompt = %q", out)
	}
}

func TestUnknownLanguageFallsBack(t *testing.T) {
	c, err := New("xx")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := c.Render("rag", "system_prompt", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	en, _ := New("en")
	want, _ := en.Render("rag", "system_prompt", nil)
	if out != want {
		t.Error("unknown language did not fall back to the default locale")
	}
}

func TestSecondaryLanguageUsedWhenPresent(t *testing.T) {
	c, err := New("ar")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ar, err := c.Render("rag", "system_prompt", nil)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	en, _ := New("en")
	enOut, _ := en.Render("rag", "system_prompt", nil)
	if ar == enOut {
		t.Error("ar locale rendered identical to en; translation not used")
	}
}

func TestRenderUnknownKey(t *testing.T) {
	c, err := New("en")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := c.Render("rag", "missing_key", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("error = %v, want ErrTemplateNotFound", err)
	}
	if _, err := c.Render("nope", "system_prompt", nil); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("error = %v, want ErrTemplateNotFound", err)
	}
}
