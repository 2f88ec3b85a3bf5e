// Package app wires configuration, the Genkit runtime, the vector store and
// the answer engine into one container shared by the CLI commands.
package app

import (
	"errors"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/bundesfaq/ragserver/internal/config"
	"github.com/bundesfaq/ragserver/internal/extract"
	"github.com/bundesfaq/ragserver/internal/knowledge"
	"github.com/bundesfaq/ragserver/internal/rag"
	"github.com/bundesfaq/ragserver/internal/splitter"
)

// App is the application container.
//
// Store and Engine are nil when Setup tolerated a vectorstore failure; the
// HTTP layer then runs degraded (503 on chat, diagnosis endpoints alive).
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Store    *knowledge.Store
	Engine   *rag.Engine

	otelCleanup func()
}

// Degraded reports whether the app came up without a working vectorstore.
func (a *App) Degraded() bool {
	return a.Store == nil || a.Engine == nil
}

// NewIndexer builds an Indexer sharing the app's embedder and chunking
// configuration. Requires an open vectorstore.
func (a *App) NewIndexer() (*rag.Indexer, error) {
	if a.Store == nil {
		return nil, errors.New("vectorstore is not open")
	}

	split, err := splitter.New(a.Config.ChunkSize, a.Config.ChunkOverlap)
	if err != nil {
		return nil, err
	}

	return rag.NewIndexer(a.Store, extract.New(a.Logger), split, a.Embedder, a.Logger), nil
}

// Close releases everything Setup initialized. Safe to call on a partially
// initialized App.
func (a *App) Close() error {
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
