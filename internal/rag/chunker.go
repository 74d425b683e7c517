// Package rag implements the retrieval pipelines: document chunking,
// idempotent indexing, web scraping and grounded answering.
package rag

import "strings"

// defaultSeparators is the priority list used to split documents: paragraph,
// line, sentence terminators, then spaces. The first separator that yields
// pieces within the size bound wins for each region of text.
var defaultSeparators = []string{"\n\n", "\n", ".", "!", "?", " "}

// Chunker splits documents into bounded, optionally overlapping chunks used
// as the unit of embedding and retrieval. Sizes are measured in runes.
type Chunker struct {
	ChunkSize  int
	Overlap    int
	separators []string
}

// NewChunker creates a chunker with the given size bound and overlap.
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 600
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Chunker{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split breaks text into chunks of at most ChunkSize runes, preferring to cut
// at the highest-priority separator available. Consecutive chunks share
// Overlap runes of context. Empty chunks are dropped and duplicates removed.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	pieces := c.split(text, c.separators)
	chunks := c.merge(pieces)

	out := make([]string, 0, len(chunks))
	seen := make(map[string]bool, len(chunks))
	for _, chunk := range chunks {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || seen[chunk] {
			continue
		}
		seen[chunk] = true
		out = append(out, chunk)
	}
	return out
}

// split recursively cuts text into pieces no longer than ChunkSize, walking
// the separator priority list. When no separator remains, it hard-cuts.
func (c *Chunker) split(text string, seps []string) []string {
	if runeLen(text) <= c.ChunkSize {
		return []string{text}
	}

	if len(seps) == 0 {
		return hardCut(text, c.ChunkSize)
	}

	parts := strings.SplitAfter(text, seps[0])
	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if runeLen(p) > c.ChunkSize {
			out = append(out, c.split(p, seps[1:])...)
		} else {
			out = append(out, p)
		}
	}
	return out
}

// merge greedily packs pieces into chunks bounded by ChunkSize, carrying the
// last Overlap runes of each finished chunk into the next one.
func (c *Chunker) merge(pieces []string) []string {
	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if currentLen == 0 {
			return
		}
		chunk := current.String()
		chunks = append(chunks, chunk)
		current.Reset()
		currentLen = 0
		if c.Overlap > 0 {
			tail := tailRunes(chunk, c.Overlap)
			current.WriteString(tail)
			currentLen = runeLen(tail)
		}
	}

	for _, p := range pieces {
		pLen := runeLen(p)
		if currentLen > 0 && currentLen+pLen > c.ChunkSize {
			flush()
		}
		// The carried overlap tail may still not leave room; drop it
		// rather than exceed the bound.
		if currentLen > 0 && currentLen+pLen > c.ChunkSize {
			current.Reset()
			currentLen = 0
		}
		current.WriteString(p)
		currentLen += pLen
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// hardCut slices text into fixed-size rune windows. Last resort when no
// separator fits.
func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func tailRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
