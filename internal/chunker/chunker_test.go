package chunker

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	if got := Split(nil, 100); got != nil {
		t.Errorf("Split(nil) = %v, want nil", got)
	}
	if got := Split([]string{""}, 100); got != nil {
		t.Errorf("Split of empty text = %v, want nil", got)
	}
	if got := Split([]string{"some text here"}, 0); got != nil {
		t.Errorf("Split with zero target = %v, want nil", got)
	}
}

func TestSplitDiscardsShortLines(t *testing.T) {
	// Lines of one trimmed character or less are noise.
	chunks := Split([]string{"a\n.\n \nkeep this line\nx"}, 1000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "keep this line" {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, "keep this line")
	}
}

func TestSplitAccumulatesToTargetSize(t *testing.T) {
	text := "first line of text\nsecond line of text\nthird line of text"

	chunks := Split([]string{text}, 30)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2: %#v", len(chunks), chunks)
	}

	// The first chunk crosses the target at the second line.
	want := "first line of text\nsecond line of text"
	if chunks[0].Text != want {
		t.Errorf("chunk[0] = %q, want %q", chunks[0].Text, want)
	}
	if chunks[1].Text != "third line of text" {
		t.Errorf("chunk[1] = %q, want %q", chunks[1].Text, "third line of text")
	}
}

func TestSplitEmitsTrailingRemainder(t *testing.T) {
	chunks := Split([]string{"tiny line"}, 10_000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "tiny line" {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestSplitNeverCutsLines(t *testing.T) {
	long := strings.Repeat("word ", 100) // ~500 chars, single line
	chunks := Split([]string{long}, 50)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if got, want := chunks[0].Text, strings.TrimSpace(long); got != want {
		t.Errorf("line was modified: %q", got)
	}
}

func TestSplitJoinsMultipleTexts(t *testing.T) {
	chunks := Split([]string{"first text", "second text"}, 1000)
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	if chunks[0].Text != "first text\nsecond text" {
		t.Errorf("chunk text = %q", chunks[0].Text)
	}
}

func TestSplitEveryChunkNonEmpty(t *testing.T) {
	text := strings.Repeat("line of reasonable length\n", 50)
	for _, target := range []int{1, 10, 100, 1000} {
		for _, c := range Split([]string{text}, target) {
			if strings.TrimSpace(c.Text) == "" {
				t.Errorf("target %d produced an empty chunk", target)
			}
		}
	}
}

func TestSplitDocumentsKeepsSourceBoundaries(t *testing.T) {
	docs := []Document{
		{Text: "doc one line\nanother line", Metadata: map[string]string{"source": "a.txt"}},
		{Text: "doc two line", Metadata: map[string]string{"source": "b.txt"}},
	}

	chunks := SplitDocuments(docs, 5)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	for _, c := range chunks {
		if strings.Contains(c.Text, "doc one") && strings.Contains(c.Text, "doc two") {
			t.Errorf("chunk spans source boundary: %q", c.Text)
		}
	}

	if chunks[0].Metadata["source"] != "a.txt" {
		t.Errorf("chunk[0] metadata = %v", chunks[0].Metadata)
	}
	last := chunks[len(chunks)-1]
	if last.Metadata["source"] != "b.txt" {
		t.Errorf("last chunk metadata = %v", last.Metadata)
	}
}

func TestSplitDocumentsMetadataNotShared(t *testing.T) {
	meta := map[string]string{"source": "a.txt"}
	chunks := SplitDocuments([]Document{{Text: "line one here\nline two here", Metadata: meta}}, 5)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}

	chunks[0].Metadata["source"] = "mutated"
	if chunks[1].Metadata["source"] != "a.txt" {
		t.Error("metadata map is shared between chunks")
	}
	if meta["source"] != "a.txt" {
		t.Error("source metadata was mutated")
	}
}
