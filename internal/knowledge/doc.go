// Package knowledge provides the persistent vector store behind retrieval.
//
// Document chunks are kept in an embedded chromem-go database that persists
// to a local directory, so the knowledge base survives restarts without any
// external database. Every document is embedded once, either up front by the
// indexing pipeline or lazily by the store, and searches rank documents by
// cosine similarity to the embedded query.
//
// # Store operations
//
//	Open(path, embed, logger)  - open or create the persistent store
//	Add(ctx, docs)             - store chunks, embedding those without vectors
//	Search(ctx, query, opts)   - top-k cosine similarity search
//	Count()                    - number of stored chunks
//	Reset()                    - drop all chunks, keep the store usable
//
// Search accepts functional options:
//
//	results, err := store.Search(ctx, "Wie hoch ist die Grundsteuer?",
//	    knowledge.WithTopK(3),
//	    knowledge.WithFilter("source", "faq.pdf"))
//
// An empty store returns an empty result set rather than an error, and the
// requested top-k is clamped to the number of stored documents, so callers
// never have to know the collection size.
//
// # Embeddings
//
// The store is wired to Genkit through NewEmbeddingFunc, which adapts an
// ai.Embedder to the chromem-go callback. Tests substitute a deterministic
// embedding function instead, so no model access is needed.
package knowledge
