package splitter

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func newSplitter(t *testing.T, chunkSize, overlap int) *Splitter {
	t.Helper()

	s, err := New(chunkSize, overlap)
	if err != nil {
		t.Fatalf("New(%d, %d) returned error: %v", chunkSize, overlap, err)
	}
	return s
}

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
		wantErr   error
	}{
		{name: "defaults", chunkSize: 1200, overlap: 150},
		{name: "minimal", chunkSize: 1, overlap: 0},
		{name: "zero chunk size", chunkSize: 0, overlap: 0, wantErr: ErrInvalidChunkSize},
		{name: "negative chunk size", chunkSize: -5, overlap: 0, wantErr: ErrInvalidChunkSize},
		{name: "negative overlap", chunkSize: 10, overlap: -1, wantErr: ErrInvalidOverlap},
		{name: "overlap equals chunk size", chunkSize: 10, overlap: 10, wantErr: ErrInvalidOverlap},
		{name: "overlap exceeds chunk size", chunkSize: 10, overlap: 15, wantErr: ErrInvalidOverlap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.chunkSize, tt.overlap)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New(%d, %d) error = %v, want %v", tt.chunkSize, tt.overlap, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New(%d, %d) returned error: %v", tt.chunkSize, tt.overlap, err)
			}
			if s == nil {
				t.Fatal("New returned nil splitter without error")
			}
		})
	}
}

func TestSplit_SentenceBoundaries(t *testing.T) {
	s := newSplitter(t, 2, 0)

	got := s.Split("A. B. C.")
	want := []string{"A.", "B.", "C."}

	if len(got) != len(want) {
		t.Fatalf("Split returned %d chunks %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_ShortText(t *testing.T) {
	s := newSplitter(t, 1200, 150)

	got := s.Split("  Ein kurzer Satz.  ")
	if len(got) != 1 {
		t.Fatalf("Split returned %d chunks, want 1", len(got))
	}
	if got[0] != "Ein kurzer Satz." {
		t.Errorf("chunk = %q, want trimmed input", got[0])
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s := newSplitter(t, 100, 10)

	for _, text := range []string{"", "   ", "\n\n\t\n"} {
		if got := s.Split(text); len(got) != 0 {
			t.Errorf("Split(%q) = %q, want no chunks", text, got)
		}
	}
}

func TestSplit_ParagraphsFirst(t *testing.T) {
	s := newSplitter(t, 10, 0)

	got := s.Split("one two\n\nthree four")
	want := []string{"one two", "three four"}

	if len(got) != len(want) {
		t.Fatalf("Split returned %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_OverlapCarriesTrailingPieces(t *testing.T) {
	s := newSplitter(t, 10, 5)

	got := s.Split("aaa. bbb. ccc.")
	want := []string{"aaa. bbb.", "bbb. ccc."}

	if len(got) != len(want) {
		t.Fatalf("Split returned %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplit_OversizedAtomKeptWhole(t *testing.T) {
	s := newSplitter(t, 3, 0)

	const word = "Grundsteuerreform"
	got := s.Split(word)

	if len(got) != 1 {
		t.Fatalf("Split returned %d chunks, want 1 oversized chunk", len(got))
	}
	if got[0] != word {
		t.Errorf("chunk = %q, want the unsplittable word kept whole", got[0])
	}
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	// 11 runes but 17 bytes. Byte counting would split it.
	const text = "ää. öö. üü."
	s := newSplitter(t, utf8.RuneCountInString(text), 0)

	got := s.Split(text)
	if len(got) != 1 {
		t.Fatalf("Split returned %q, want a single chunk", got)
	}
	if got[0] != text {
		t.Errorf("chunk = %q, want %q", got[0], text)
	}
}

func TestSplit_LongDocument(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 50; i++ {
		if i > 0 {
			if i%10 == 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString(" ")
			}
		}
		fmt.Fprintf(&b, "Sentence number %02d covers the topic in some depth.", i)
	}
	text := b.String()

	const chunkSize = 120
	s := newSplitter(t, chunkSize, 0)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split returned %d chunks, want several", len(chunks))
	}

	lastStart := 0
	for i, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Fatalf("chunk[%d] is empty", i)
		}
		if n := utf8.RuneCountInString(chunk); n > chunkSize {
			t.Errorf("chunk[%d] has %d runes, exceeds chunk size %d", i, n, chunkSize)
		}

		// Chunks are contiguous slices of the source and appear in order.
		rel := strings.Index(text[lastStart:], chunk)
		if rel < 0 {
			t.Fatalf("chunk[%d] %q not found in source after offset %d", i, chunk, lastStart)
		}
		lastStart += rel
	}
}

func TestSplit_OverlapSkippedWhenPiecesExceedBudget(t *testing.T) {
	// Each sentence is far longer than the overlap budget, so no trailing
	// piece fits and consecutive chunks share nothing.
	s := newSplitter(t, 60, 10)

	text := "The first sentence is quite long indeed. The second sentence is quite long too."
	chunks := s.Split(text)

	if len(chunks) != 2 {
		t.Fatalf("Split returned %q, want 2 chunks", chunks)
	}
	if strings.Contains(chunks[1], "first") {
		t.Errorf("chunk[1] = %q, should not repeat the first sentence", chunks[1])
	}
}
