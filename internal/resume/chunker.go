// Package resume ingests a plain-text résumé for one session: it chunks
// the document, embeds the chunks into the session's vector index, and
// generates the one-shot CV summary the candidate persona speaks from.
package resume

import (
	"regexp"
	"strings"
)

const (
	defaultMaxChunkChars = 1000
	defaultOverlapChars  = 150
)

var (
	paragraphSplit = regexp.MustCompile(`\n\s*\n`)
	sentenceEnd    = regexp.MustCompile(`([.!?])\s+`)
)

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker)

// WithMaxChunkChars sets the chunk size ceiling in characters. Default 1000.
func WithMaxChunkChars(n int) ChunkerOption {
	return func(c *Chunker) { c.maxChars = n }
}

// WithOverlapChars sets how many trailing characters of a chunk are carried
// into the next one, so retrieval never loses context at a boundary.
// Default 150.
func WithOverlapChars(n int) ChunkerOption {
	return func(c *Chunker) { c.overlap = n }
}

// Chunker splits résumé text into retrieval-sized pieces. Paragraphs are
// the preferred unit; paragraphs over the size ceiling fall back to
// sentence packing, and a single oversized sentence is hard-split. Safe for
// concurrent use.
type Chunker struct {
	maxChars int
	overlap  int
}

// NewChunker returns a Chunker with the supplied options applied.
func NewChunker(opts ...ChunkerOption) *Chunker {
	c := &Chunker{maxChars: defaultMaxChunkChars, overlap: defaultOverlapChars}
	for _, o := range opts {
		o(c)
	}
	if c.overlap >= c.maxChars {
		c.overlap = c.maxChars / 4
	}
	return c
}

// Split breaks text into chunks of at most the configured size. Blank input
// yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var units []string
	for _, para := range paragraphSplit.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= c.maxChars {
			units = append(units, para)
			continue
		}
		units = append(units, c.splitOversized(para)...)
	}
	if len(units) == 0 {
		return nil
	}

	// Pack units into chunks, seeding each new chunk with the previous
	// chunk's tail for overlap. The seed alone never becomes a chunk: when
	// the next unit does not fit beside it, the seed is dropped instead.
	var (
		chunks  []string
		current strings.Builder
		hasUnit bool
	)
	for _, u := range units {
		if current.Len() > 0 && current.Len()+len(u)+2 > c.maxChars {
			if hasUnit {
				chunk := current.String()
				chunks = append(chunks, chunk)
				current.Reset()
				hasUnit = false
				if c.overlap > 0 {
					current.WriteString(tailWords(chunk, c.overlap))
				}
			}
			if current.Len() > 0 && current.Len()+len(u)+2 > c.maxChars {
				current.Reset()
			}
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(u)
		hasUnit = true
	}
	if hasUnit {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// splitOversized breaks a paragraph that exceeds the ceiling into
// sentence-packed units, hard-splitting any single sentence that is still
// too long.
func (c *Chunker) splitOversized(para string) []string {
	sentences := splitSentences(para)

	var (
		units   []string
		current strings.Builder
	)
	for _, s := range sentences {
		for len(s) > c.maxChars {
			if current.Len() > 0 {
				units = append(units, current.String())
				current.Reset()
			}
			units = append(units, s[:c.maxChars])
			s = s[c.maxChars:]
		}
		if s == "" {
			continue
		}
		if current.Len() > 0 && current.Len()+len(s)+1 > c.maxChars {
			units = append(units, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(s)
	}
	if current.Len() > 0 {
		units = append(units, current.String())
	}
	return units
}

// splitSentences cuts text after terminal punctuation followed by space.
func splitSentences(text string) []string {
	marked := sentenceEnd.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// tailWords returns up to n trailing characters of s, cut at a word
// boundary so the overlap never starts mid-word.
func tailWords(s string, n int) string {
	if len(s) <= n {
		return s
	}
	tail := s[len(s)-n:]
	if idx := strings.IndexAny(tail, " \n\t"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
