// Package chunker provides fixed-size token chunking with overlap.
package chunker

import "strings"

// DefaultMaxTokens is the default number of whitespace tokens per chunk.
const DefaultMaxTokens = 1024

// DefaultOverlap is the default number of overlapping tokens.
const DefaultOverlap = 100

// Chunker splits text into sliding token windows.
type Chunker struct {
	maxTokens int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithMaxTokens sets the chunk size in tokens.
func WithMaxTokens(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.maxTokens = n
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(n int) Option {
	return func(c *Chunker) {
		if n >= 0 {
			c.overlap = n
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		maxTokens: DefaultMaxTokens,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.maxTokens {
		c.overlap = c.maxTokens / 4
	}

	return c
}

// Split divides text into chunks of at most maxTokens whitespace tokens,
// each window stepping by maxTokens-overlap. A tail of fewer than overlap
// tokens is absorbed into the preceding chunk rather than becoming its
// own. Whitespace-only input produces no chunks.
func (c *Chunker) Split(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) <= c.maxTokens {
		return []string{strings.Join(tokens, " ")}
	}

	step := c.maxTokens - c.overlap
	var chunks []string
	prevStart := 0

	for start := 0; start < len(tokens); start += step {
		end := start + c.maxTokens
		last := false
		if end >= len(tokens) {
			end = len(tokens)
			last = true
		}

		if last && end-start < c.overlap && len(chunks) > 0 {
			// Tail shorter than the overlap: extend the previous chunk
			// instead of emitting a stub.
			chunks[len(chunks)-1] = strings.Join(tokens[prevStart:], " ")
			break
		}

		chunks = append(chunks, strings.Join(tokens[start:end], " "))
		prevStart = start

		if last {
			break
		}
	}

	return chunks
}

// MaxTokens returns the configured chunk size.
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }
