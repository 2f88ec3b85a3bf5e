package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/bundesfaq/ragserver/internal/knowledge"
)

// ErrEmptyQuestion indicates a question that is empty after trimming.
var ErrEmptyQuestion = errors.New("question must not be empty")

// Searcher is the slice of the knowledge store the engine needs.
// Interfaces are defined by the consumer, not the provider.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// StreamCallback receives answer text increments as the model produces them.
// Returning an error aborts generation.
type StreamCallback func(ctx context.Context, delta string) error

// EngineConfig carries the generation defaults for an Engine.
type EngineConfig struct {
	// Model is the full model name including provider, e.g. "openai/gpt-4o-mini".
	Model string

	// Temperature is the default sampling temperature. Kept low so answers
	// stay grounded in the retrieved context.
	Temperature float32

	// TopK is the default number of chunks retrieved per question.
	TopK int
}

// Engine ties retrieval and answer synthesis together: it searches the
// knowledge store for chunks similar to the question, then asks the chat
// model to answer grounded in exactly those chunks.
//
// Engine is safe for concurrent use. The Genkit handle and the store are
// initialized once and never reassigned.
type Engine struct {
	g      *genkit.Genkit
	store  Searcher
	cfg    EngineConfig
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(g *genkit.Genkit, store Searcher, cfg EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		g:      g,
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Retrieve returns the chunks most similar to query, ranked by descending
// similarity. A non-positive k falls back to the engine default.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]knowledge.Result, error) {
	if k <= 0 {
		k = e.cfg.TopK
	}

	results, err := e.store.Search(ctx, query, knowledge.WithTopK(k))
	if err != nil {
		return nil, fmt.Errorf("search knowledge store: %w", err)
	}

	e.logger.Debug("retrieved context", "query_length", len(query), "k", k, "found", len(results))
	return results, nil
}

// AnswerRequest is one question plus optional per-request overrides.
type AnswerRequest struct {
	Question string

	// TopK overrides the number of retrieved chunks when positive.
	TopK int

	// Temperature overrides the sampling temperature when non-nil.
	Temperature *float32
}

// Answer is a grounded answer with the chunks it was grounded in.
type Answer struct {
	Text    string
	Sources []knowledge.Result
}

// Answer retrieves context for the question and synthesizes a grounded
// answer in a single blocking model call.
func (e *Engine) Answer(ctx context.Context, req AnswerRequest) (*Answer, error) {
	return e.answer(ctx, req, nil)
}

// AnswerStream behaves like Answer but forwards text increments to callback
// as the model produces them. The returned Answer carries the complete text:
// concatenating every delta passed to callback yields exactly Answer.Text.
func (e *Engine) AnswerStream(ctx context.Context, req AnswerRequest, callback StreamCallback) (*Answer, error) {
	if callback == nil {
		return nil, errors.New("nil stream callback")
	}
	return e.answer(ctx, req, callback)
}

func (e *Engine) answer(ctx context.Context, req AnswerRequest, callback StreamCallback) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	results, err := e.Retrieve(ctx, question, req.TopK)
	if err != nil {
		return nil, err
	}

	return e.AnswerFrom(ctx, req, results, callback)
}

// AnswerFrom synthesizes an answer grounded in already retrieved results,
// skipping the retrieval step. A nil callback disables streaming. The stream
// endpoint retrieves first so it can report the search before generation,
// then hands the results here.
func (e *Engine) AnswerFrom(ctx context.Context, req AnswerRequest, results []knowledge.Result, callback StreamCallback) (*Answer, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	temperature := e.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	opts := []ai.GenerateOption{
		ai.WithModelName(e.cfg.Model),
		ai.WithSystem(systemPromptTemplate, contextBlock(results)),
		ai.WithPrompt("%s", question),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature: float64(temperature),
		}),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
			return callback(ctx, chunk.Text())
		}))
	}

	resp, err := genkit.Generate(ctx, e.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	e.logger.Debug("generated answer",
		"question_length", len(question),
		"sources", len(results),
		"answer_length", len(resp.Text()))

	return &Answer{
		Text:    resp.Text(),
		Sources: results,
	}, nil
}

// contextBlock concatenates the retrieved chunks into the context section of
// the system prompt. With no results the section stays empty and the prompt
// instructs the model to say it does not know.
func contextBlock(results []knowledge.Result) string {
	if len(results) == 0 {
		return ""
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Document.Content
	}
	return strings.Join(parts, "\n\n")
}
