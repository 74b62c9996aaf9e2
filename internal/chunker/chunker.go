// Package chunker splits raw document text into bounded-size chunks for
// embedding and indexing.
//
// The splitter is deliberately simple: it works on delimiter-separated lines
// and needs no language-aware sentence or token boundary detection. A line is
// never split mid-way, so emitted chunks may exceed the target size, and the
// trailing chunk may fall below it. The target size is a lower-bound trigger,
// not a hard cap.
package chunker

import "strings"

// DefaultDelimiter separates lines on input and rejoins them inside a chunk.
const DefaultDelimiter = "\n"

// Candidate is a chunk produced by the splitter, before it is persisted and
// assigned an order by the chunk store.
type Candidate struct {
	Text     string
	Metadata map[string]string
}

// Document is a source text with optional per-source metadata, used by
// SplitDocuments to propagate metadata onto the chunks of each source.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Split concatenates texts with the default delimiter and cuts the result
// into chunks of at least targetSize characters.
//
// Lines whose trimmed length is one character or less are discarded as noise.
// Remaining lines are accumulated greedily; once the buffer reaches
// targetSize it is emitted and the buffer resets. Any non-empty remainder is
// emitted as the final chunk. Metadata on the resulting candidates is empty.
func Split(texts []string, targetSize int) []Candidate {
	return split(texts, targetSize, nil)
}

// SplitDocuments chunks each source document independently, so chunk
// boundaries always align with source boundaries and every chunk carries its
// source's metadata.
func SplitDocuments(docs []Document, targetSize int) []Candidate {
	var out []Candidate
	for _, doc := range docs {
		out = append(out, split([]string{doc.Text}, targetSize, doc.Metadata)...)
	}
	return out
}

func split(texts []string, targetSize int, metadata map[string]string) []Candidate {
	if len(texts) == 0 || targetSize <= 0 {
		return nil
	}

	lines := strings.Split(strings.Join(texts, DefaultDelimiter), DefaultDelimiter)

	var chunks []Candidate
	var buf strings.Builder

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 1 {
			continue
		}

		if buf.Len() > 0 {
			buf.WriteString(DefaultDelimiter)
		}
		buf.WriteString(line)

		if buf.Len() >= targetSize {
			chunks = append(chunks, Candidate{Text: buf.String(), Metadata: cloneMetadata(metadata)})
			buf.Reset()
		}
	}

	if buf.Len() > 0 {
		chunks = append(chunks, Candidate{Text: buf.String(), Metadata: cloneMetadata(metadata)})
	}

	return chunks
}

// cloneMetadata copies the source metadata so chunks never share a map.
func cloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
