package chunker

import (
	"strings"
	"testing"
)

func tokens(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "t"
	}
	return strings.Join(parts, " ")
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		c := New()
		if c.maxTokens != DefaultMaxTokens {
			t.Errorf("expected maxTokens %d, got %d", DefaultMaxTokens, c.maxTokens)
		}
		if c.overlap != DefaultOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultOverlap, c.overlap)
		}
	})

	t.Run("custom sizes", func(t *testing.T) {
		c := New(WithMaxTokens(10), WithOverlap(3))
		if c.maxTokens != 10 || c.overlap != 3 {
			t.Errorf("expected 10/3, got %d/%d", c.maxTokens, c.overlap)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		c := New(WithMaxTokens(100), WithOverlap(150))
		if c.overlap >= c.maxTokens {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		c := New(WithMaxTokens(0), WithOverlap(-1))
		if c.maxTokens != DefaultMaxTokens || c.overlap != DefaultOverlap {
			t.Errorf("expected defaults, got %d/%d", c.maxTokens, c.overlap)
		}
	})
}

func TestSplit_Empty(t *testing.T) {
	c := New()
	if got := c.Split(""); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
	if got := c.Split("   \n\t  "); got != nil {
		t.Errorf("expected nil for whitespace input, got %v", got)
	}
}

func TestSplit_ExactlyMaxTokens(t *testing.T) {
	c := New(WithMaxTokens(8), WithOverlap(2))
	chunks := c.Split(tokens(8))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if n := len(strings.Fields(chunks[0])); n != 8 {
		t.Errorf("expected 8 tokens in chunk, got %d", n)
	}
}

func TestSplit_MaxTokensPlusOne(t *testing.T) {
	c := New(WithMaxTokens(8), WithOverlap(2))
	chunks := c.Split(tokens(9))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	// Second window starts at maxTokens-overlap = 6, so it holds 3 tokens.
	if n := len(strings.Fields(chunks[1])); n != 3 {
		t.Errorf("expected 3 tokens in second chunk, got %d", n)
	}
}

func TestSplit_Overlap(t *testing.T) {
	c := New(WithMaxTokens(4), WithOverlap(1))
	parts := []string{"a", "b", "c", "d", "e", "f", "g"}
	chunks := c.Split(strings.Join(parts, " "))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0] != "a b c d" {
		t.Errorf("unexpected first chunk: %q", chunks[0])
	}
	if chunks[1] != "d e f g" {
		t.Errorf("unexpected second chunk: %q", chunks[1])
	}
}

func TestSplit_ShortTailMerges(t *testing.T) {
	// maxTokens 8, overlap 5, step 3: windows at 0, 3, 6, ...
	// 12 tokens: window at 9 would be 3 tokens (< overlap) and must be
	// absorbed into the previous chunk.
	c := New(WithMaxTokens(8), WithOverlap(5))
	chunks := c.Split(tokens(12))
	for i, ch := range chunks {
		if n := len(strings.Fields(ch)); i > 0 && n < 5 && i == len(chunks)-1 {
			t.Errorf("tail chunk of %d tokens should have been merged", n)
		}
	}
	last := strings.Fields(chunks[len(chunks)-1])
	if len(last) < 5 && len(chunks) > 1 {
		t.Errorf("last chunk has %d tokens, below overlap", len(last))
	}
}

func TestSplit_CoversAllTokens(t *testing.T) {
	c := New(WithMaxTokens(10), WithOverlap(2))
	n := 57
	chunks := c.Split(tokens(n))

	total := 0
	for i, ch := range chunks {
		cnt := len(strings.Fields(ch))
		if cnt > 10 && i != len(chunks)-1 {
			t.Errorf("chunk %d exceeds max tokens: %d", i, cnt)
		}
		total += cnt
	}
	// step=8, so overlapping coverage must at least reach n tokens.
	if total < n {
		t.Errorf("chunks cover %d tokens, want at least %d", total, n)
	}
}
