// Package rag implements the retrieval-augmented answer pipeline.
//
// Two components live here. The Indexer is the build side: it extracts text
// from a source (PDF, plain text or URL), chunks it, embeds the chunks in
// order-preserving batches and persists them to the knowledge store, either
// replacing the stored collection or appending to it. The Engine is the
// query side: it retrieves the chunks most similar to a question and asks
// the chat model for an answer grounded in exactly those chunks, optionally
// streaming text increments as the model produces them.
//
// Both sides depend on narrow consumer interfaces (IndexerStore, Searcher,
// TextExtractor) rather than concrete types, so tests substitute fakes and
// the wiring stays in the app package.
package rag
