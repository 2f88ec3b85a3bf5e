package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/bundesfaq/ragserver/internal/config"
	"github.com/bundesfaq/ragserver/internal/knowledge"
	"github.com/bundesfaq/ragserver/internal/rag"
)

// Setup creates and initializes the application for serving.
//
// Model setup failures are fatal; a vectorstore that cannot be opened is
// not. The server must come up even with a broken or absent store so /health
// can say what is wrong, so in that case Store and Engine stay nil.
// Returns an App with embedded cleanup; call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := provideStore(cfg.VectorstoreDir, a.Embedder, a.Logger)
	if err != nil {
		a.Logger.Error("opening vectorstore, serving degraded",
			"dir", cfg.VectorstoreDir,
			"error", err)
		return a, nil
	}
	a.Store = store

	a.Engine = rag.NewEngine(a.Genkit, store, rag.EngineConfig{
		Model:       cfg.FullChatModel(),
		Temperature: cfg.Temperature,
		TopK:        cfg.TopK,
	}, a.Logger)

	return a, nil
}

// SetupBuild creates the application for an index build against dir. Unlike
// Setup, a store failure is fatal: building into a store that cannot be
// opened makes no sense.
func SetupBuild(ctx context.Context, cfg *config.Config, logger *slog.Logger, dir string) (*App, error) {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := provideStore(dir, a.Embedder, a.Logger)
	if err != nil {
		if cerr := a.Close(); cerr != nil {
			a.Logger.Warn("cleanup during setup failure", "error", cerr)
		}
		return nil, fmt.Errorf("opening vectorstore at %q: %w", dir, err)
	}
	a.Store = store

	return a, nil
}

// newApp initializes everything both entry points share: tracing, the Genkit
// runtime with the OpenAI plugin, and the embedder.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider openai", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	return a, nil
}

// provideGenkit initializes Genkit with the OpenAI plugin. The plugin reads
// OPENAI_API_KEY from the environment itself; config.Validate has already
// checked it is set.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit with openai provider")
	}
	return g, nil
}

// provideEmbedder looks up the embedder the OpenAI plugin auto-registered in
// Init(). Returns nil when the configured model name is unknown.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
}

// provideStore opens the persistent chromem collection at dir with the
// embedder bridged into chromem's embedding interface.
func provideStore(dir string, embedder ai.Embedder, logger *slog.Logger) (*knowledge.Store, error) {
	return knowledge.Open(dir, knowledge.NewEmbeddingFunc(embedder), logger)
}

// provideOtelShutdown wires trace export when an OTLP endpoint is
// configured. Must run before provideGenkit so the span processor is
// registered on the TracerProvider Genkit uses.
//
// Traces go to a local collector over OTLP HTTP; the collector handles
// authentication, buffering, and forwarding.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(), // local collector, no TLS
	)
	if err != nil {
		logger.Warn("creating OTLP exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled", "endpoint", cfg.OTLPEndpoint)

	shutdown := tracing.TracerProvider().Shutdown

	//nolint:contextcheck // Independent context: shutdown runs during teardown when parent is canceled
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}
