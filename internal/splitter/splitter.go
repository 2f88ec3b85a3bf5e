// Package splitter cuts raw document text into overlapping chunks sized for
// embedding and retrieval.
//
// The splitter walks a fixed separator hierarchy (paragraph break, line
// break, sentence terminators, comma, space) and recursively splits on the
// first separator present until every piece fits the chunk size, then merges
// adjacent pieces back into chunks, carrying a bounded overlap across chunk
// boundaries so retrieval keeps cross-boundary context.
package splitter

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	// ErrInvalidChunkSize indicates a non-positive chunk size.
	ErrInvalidChunkSize = errors.New("chunk size must be positive")

	// ErrInvalidOverlap indicates an overlap outside [0, chunk size).
	ErrInvalidOverlap = errors.New("overlap must be in [0, chunk size)")
)

// separators are tried highest priority first. The space separator is last
// on purpose: a single word longer than the chunk size has nothing left to
// split on and is kept oversized rather than truncated.
var separators = []string{"\n\n", "\n", ". ", ".", "?", "!", ",", " "}

// Splitter splits text into chunks of at most ChunkSize runes with up to
// Overlap runes carried between consecutive chunks.
//
// Lengths are measured in runes, not bytes, so multi-byte text (umlauts and
// friends) is not over-counted.
type Splitter struct {
	chunkSize int
	overlap   int
}

// New creates a Splitter. chunkSize must be positive and overlap must be
// smaller than chunkSize.
func New(chunkSize, overlap int) (*Splitter, error) {
	if chunkSize < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidChunkSize, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidOverlap, overlap)
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}, nil
}

// Split splits text into ordered, whitespace-trimmed, non-empty chunks.
// Every chunk is at most chunkSize runes long, except for a single atomic
// unit that exceeds chunkSize after the whole separator hierarchy is
// exhausted; such a unit becomes one oversized chunk so no text is silently
// dropped.
func (s *Splitter) Split(text string) []string {
	return s.merge(s.split(text, separators))
}

// split cuts text into pieces no longer than chunkSize where the separator
// hierarchy allows it. Separators stay attached to the preceding piece so
// merged chunks read like the source.
func (s *Splitter) split(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sepIdx := -1
	for i, sep := range seps {
		if strings.Contains(text, sep) {
			sepIdx = i
			break
		}
	}
	if sepIdx == -1 {
		// Atomic unit with no separators left: keep it oversized.
		return []string{text}
	}

	var pieces []string
	for _, part := range strings.SplitAfter(text, seps[sepIdx]) {
		switch {
		case strings.TrimSpace(part) == "":
			// Separator runs and empty tails carry no content.
		case utf8.RuneCountInString(part) > s.chunkSize:
			pieces = append(pieces, s.split(part, seps[sepIdx+1:])...)
		default:
			pieces = append(pieces, part)
		}
	}
	return pieces
}

// merge greedily packs pieces into chunks of at most chunkSize runes. When a
// chunk is emitted, trailing pieces totalling at most overlap runes are
// retained as the start of the next chunk. Overlap is piece-granular: the
// shared text ends on a natural separator, so it can fall short of the exact
// overlap count when pieces are large.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var window []string
	total := 0

	flush := func() {
		joined := strings.TrimSpace(strings.Join(window, ""))
		if joined != "" {
			chunks = append(chunks, joined)
		}
	}

	for _, piece := range pieces {
		n := utf8.RuneCountInString(piece)
		if total+n > s.chunkSize && len(window) > 0 {
			flush()
			// Drop leading pieces until the retained tail fits both the
			// overlap budget and, together with the new piece, the chunk.
			for len(window) > 0 && (total > s.overlap || total+n > s.chunkSize) {
				total -= utf8.RuneCountInString(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		total += n
	}
	flush()

	return chunks
}
