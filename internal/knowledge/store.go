package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
)

const (
	// CollectionName is the chromem-go collection all documents live in.
	// Renaming it orphans previously persisted data.
	CollectionName = "bundesfaq_rag_collection"

	// searchTimeout bounds a single vector search, query embedding included.
	searchTimeout = 10 * time.Second

	// addConcurrency bounds parallel embedding calls for documents added
	// without precomputed vectors.
	addConcurrency = 4
)

// Store persists document chunks in an embedded chromem-go vector database
// and answers cosine-similarity searches over them.
//
// Store is safe for concurrent use by multiple goroutines. Persistence is
// write-through: every added document is flushed to disk immediately.
type Store struct {
	mu         sync.RWMutex
	db         *chromem.DB
	collection *chromem.Collection
	embed      chromem.EmbeddingFunc
	logger     *slog.Logger
}

// Open opens the vector store at path, creating the directory and the
// collection when they do not exist yet. Previously persisted documents are
// loaded and immediately searchable.
func Open(path string, embed chromem.EmbeddingFunc, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := chromem.NewPersistentDB(path, true)
	if err != nil {
		return nil, fmt.Errorf("open vector store at %q: %w", path, err)
	}

	collection, err := db.GetOrCreateCollection(CollectionName, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("open collection %q: %w", CollectionName, err)
	}

	logger.Debug("vector store opened", "path", path, "documents", collection.Count())

	return &Store{
		db:         db,
		collection: collection,
		embed:      embed,
		logger:     logger,
	}, nil
}

// Add stores the given documents. Documents carrying a precomputed embedding
// are stored as-is; the rest are embedded here with bounded concurrency.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	converted := make([]chromem.Document, 0, len(docs))
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document with empty id")
		}
		converted = append(converted, chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
		})
	}

	if err := s.activeCollection().AddDocuments(ctx, converted, addConcurrency); err != nil {
		return fmt.Errorf("add %d documents: %w", len(docs), err)
	}

	s.logger.Debug("added documents", "count", len(docs))
	return nil
}

// Search returns the documents most similar to query, ordered by descending
// similarity. An empty store yields an empty result, not an error. The
// requested top-k is clamped to the number of stored documents.
func (s *Store) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := buildSearchConfig(opts)
	collection := s.activeCollection()

	count := collection.Count()
	if count == 0 {
		return []Result{}, nil
	}

	k := cfg.topK
	if k > count {
		k = count
	}

	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	found, err := collection.Query(queryCtx, query, k, cfg.filter, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("search timeout: %w", err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(found))
	for _, r := range found {
		results = append(results, Result{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		})
	}
	return results, nil
}

// Count returns the number of stored documents.
func (s *Store) Count() int {
	return s.activeCollection().Count()
}

// Reset drops every stored document and starts over with an empty
// collection. The persisted files of the old collection are removed.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(CollectionName); err != nil {
		return fmt.Errorf("delete collection %q: %w", CollectionName, err)
	}

	collection, err := s.db.GetOrCreateCollection(CollectionName, nil, s.embed)
	if err != nil {
		return fmt.Errorf("recreate collection %q: %w", CollectionName, err)
	}
	s.collection = collection

	s.logger.Info("vector store reset")
	return nil
}

// Close releases the store. Writes are flushed as they happen, so there is
// nothing to sync here.
func (*Store) Close() error {
	return nil
}

func (s *Store) activeCollection() *chromem.Collection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collection
}
