package rag

// indexer.go implements the vectorstore build pipeline: extract text from a
// source, chunk it, embed the chunks in order-preserving batches and persist
// them to the knowledge store.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bundesfaq/ragserver/internal/extract"
	"github.com/bundesfaq/ragserver/internal/knowledge"
	"github.com/bundesfaq/ragserver/internal/splitter"
)

var (
	// ErrInvalidMode indicates a build without an explicit replace/append
	// choice. There is no default on purpose: the two modes differ in
	// whether previously indexed chunks survive.
	ErrInvalidMode = errors.New("index mode must be replace or append")

	// ErrNoChunks indicates a source whose text produced no chunks.
	ErrNoChunks = errors.New("source produced no chunks")
)

// Mode controls what happens to previously stored chunks during a build.
type Mode int

const (
	// ModeUnset is invalid; callers must pick replace or append.
	ModeUnset Mode = iota

	// ModeReplace drops the existing collection before indexing.
	ModeReplace

	// ModeAppend keeps existing chunks and adds the new ones alongside.
	ModeAppend
)

func (m Mode) String() string {
	switch m {
	case ModeReplace:
		return "replace"
	case ModeAppend:
		return "append"
	default:
		return "unset"
	}
}

const (
	// embedBatchSize is how many chunks are embedded per model request.
	embedBatchSize = 16

	// embedBatchesPerSecond paces embedding requests so large builds stay
	// inside provider rate limits.
	embedBatchesPerSecond = 5
)

// IndexerStore is the slice of the knowledge store the indexer needs.
type IndexerStore interface {
	Add(ctx context.Context, docs []knowledge.Document) error
	Reset() error
	Count() int
}

// TextExtractor turns a source into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, source string, kind extract.Kind) (string, error)
}

// IndexRequest describes one build.
type IndexRequest struct {
	Source string       // file path or URL
	Kind   extract.Kind // how to read the source
	Mode   Mode         // replace or append, required
}

// IndexResult summarizes a finished build.
type IndexResult struct {
	Source      string
	ChunksAdded int
	TotalChunks int // store size after the build
	Duration    time.Duration
}

// Indexer runs the build pipeline. It is not safe for concurrent builds
// within one process; cross-process exclusion is the caller's concern.
type Indexer struct {
	store     IndexerStore
	extractor TextExtractor
	splitter  *splitter.Splitter
	embedder  ai.Embedder
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewIndexer creates an Indexer.
func NewIndexer(store IndexerStore, extractor TextExtractor, split *splitter.Splitter, embedder ai.Embedder, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Indexer{
		store:     store,
		extractor: extractor,
		splitter:  split,
		embedder:  embedder,
		limiter:   rate.NewLimiter(rate.Limit(embedBatchesPerSecond), 1),
		logger:    logger,
	}
}

// Index runs one build: extract, chunk, embed, persist. With ModeReplace the
// store is emptied first; with ModeAppend new chunks join the existing ones.
// Chunk order follows source order, and every chunk gets a fresh ID, so
// re-appending the same source duplicates its chunks rather than overwriting.
func (idx *Indexer) Index(ctx context.Context, req IndexRequest) (*IndexResult, error) {
	start := time.Now()

	switch req.Mode {
	case ModeReplace, ModeAppend:
	default:
		return nil, ErrInvalidMode
	}

	text, err := idx.extractor.Extract(ctx, req.Source, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("extract source: %w", err)
	}

	chunks := idx.splitter.Split(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoChunks, req.Source)
	}

	idx.logger.Info("indexing source",
		"source", req.Source,
		"kind", req.Kind,
		"mode", req.Mode.String(),
		"chunks", len(chunks))

	if req.Mode == ModeReplace {
		if err := idx.store.Reset(); err != nil {
			return nil, fmt.Errorf("reset store: %w", err)
		}
	}

	indexedAt := time.Now().UTC().Format(time.RFC3339)
	docs := make([]knowledge.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = knowledge.Document{
			ID:      uuid.NewString(),
			Content: chunk,
			Metadata: map[string]string{
				"source":     req.Source,
				"kind":       string(req.Kind),
				"chunk":      strconv.Itoa(i),
				"indexed_at": indexedAt,
			},
		}
	}

	for begin := 0; begin < len(docs); begin += embedBatchSize {
		end := min(begin+embedBatchSize, len(docs))
		batch := docs[begin:end]

		if err := idx.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("pacing embed batches: %w", err)
		}
		if err := idx.embedBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("embed chunks %d-%d: %w", begin, end-1, err)
		}
		if err := idx.store.Add(ctx, batch); err != nil {
			return nil, fmt.Errorf("store chunks %d-%d: %w", begin, end-1, err)
		}

		idx.logger.Debug("indexed batch", "from", begin, "to", end-1)
	}

	result := &IndexResult{
		Source:      req.Source,
		ChunksAdded: len(docs),
		TotalChunks: idx.store.Count(),
		Duration:    time.Since(start),
	}

	idx.logger.Info("indexing complete",
		"source", result.Source,
		"added", result.ChunksAdded,
		"total", result.TotalChunks,
		"duration", result.Duration)

	return result, nil
}

// embedBatch embeds one batch in a single request. The response vectors are
// parallel to the inputs, which keeps chunk order intact.
func (idx *Indexer) embedBatch(ctx context.Context, batch []knowledge.Document) error {
	input := make([]*ai.Document, len(batch))
	for i, doc := range batch {
		input[i] = ai.DocumentFromText(doc.Content, nil)
	}

	resp, err := idx.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return err
	}
	if len(resp.Embeddings) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(resp.Embeddings), len(batch))
	}

	for i := range batch {
		batch[i].Embedding = resp.Embeddings[i].Embedding
	}
	return nil
}
