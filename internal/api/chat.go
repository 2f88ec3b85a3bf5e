package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bundesfaq/ragserver/internal/knowledge"
	"github.com/bundesfaq/ragserver/internal/rag"
)

// maxRequestBody bounds chat request bodies. Conversations are short text;
// anything bigger is a mistake or an attack.
const maxRequestBody = 1 << 20 // 1 MiB

// Answerer is the slice of the answer engine the chat endpoints need.
// *rag.Engine implements it; tests substitute stubs.
type Answerer interface {
	Retrieve(ctx context.Context, query string, k int) ([]knowledge.Result, error)
	Answer(ctx context.Context, req rag.AnswerRequest) (*rag.Answer, error)
	AnswerFrom(ctx context.Context, req rag.AnswerRequest, results []knowledge.Result, callback rag.StreamCallback) (*rag.Answer, error)
}

// chatHandler serves the question answering endpoints.
//
// Endpoints:
//   - POST /chat, /ask    - one-shot answer (JSON request/response)
//   - POST /chat/stream   - streaming answer (NDJSON lines)
type chatHandler struct {
	logger *slog.Logger
	engine Answerer
}

// parseRequest decodes and validates a chat request. On failure the error
// response has already been written and ok is false.
func (h *chatHandler) parseRequest(w http.ResponseWriter, r *http.Request) (question string, ov *Overrides, ok bool) {
	if h.engine == nil {
		writeError(w, http.StatusServiceUnavailable, codeUnavailable, "RAG system not available")
		return "", nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var req ChatAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return "", nil, false
	}

	question, found := lastUserMessage(req.Messages)
	if !found || strings.TrimSpace(question) == "" {
		writeError(w, http.StatusBadRequest, codeBadRequest, "messages must contain a non-empty user message")
		return "", nil, false
	}

	ov = req.overrides()
	if t := ov.Temperature; t != nil && (*t < 0 || *t > 2) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "temperature must be between 0 and 2")
		return "", nil, false
	}

	return question, ov, true
}

// answer serves POST /chat and POST /ask: one retrieval, one blocking model
// call, one complete envelope.
func (h *chatHandler) answer(w http.ResponseWriter, r *http.Request) {
	question, ov, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	ans, err := h.engine.Answer(r.Context(), rag.AnswerRequest{
		Question:    question,
		TopK:        ov.Top,
		Temperature: ov.Temperature,
	})
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, finalResponse(ans, ov.suggestFollowups()))
}

// stream serves POST /chat/stream as NDJSON. The first line reports the
// retrieval step before generation starts, each middle line carries one text
// increment, and the final line the complete answer with its sources.
// Concatenating every delta.content yields exactly the final message.content.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request) {
	question, ov, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming not supported")
		return
	}

	ctx := r.Context()
	req := rag.AnswerRequest{
		Question:    question,
		TopK:        ov.Top,
		Temperature: ov.Temperature,
	}

	// Retrieve before committing the response status, so retrieval failures
	// still surface as a regular HTTP error instead of a broken stream.
	results, err := h.engine.Retrieve(ctx, question, req.TopK)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	// First line: the retrieval thought. Sent before the model call so the
	// frontend can show the search step while generation is still running.
	if err := writeStreamLine(w, flusher, streamHead(len(results))); err != nil {
		h.logger.Debug("stream write failed", "error", err)
		return
	}

	var accumulated strings.Builder
	ans, err := h.engine.AnswerFrom(ctx, req, results, func(_ context.Context, delta string) error {
		if delta == "" {
			return nil
		}
		accumulated.WriteString(delta)
		return writeStreamLine(w, flusher, deltaResponse(accumulated.String(), delta))
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected mid-stream",
				"request_id", requestIDFromContext(ctx))
			return
		}
		h.logger.Error("stream failed",
			"error", err,
			"request_id", requestIDFromContext(ctx))
		// Status is committed; a flat error line is all that is left.
		_ = writeStreamLine(w, flusher, streamError{Error: "internal error"})
		return
	}

	if err := writeStreamLine(w, flusher, finalResponse(ans, ov.suggestFollowups())); err != nil {
		h.logger.Debug("stream write failed", "error", err)
	}
}

// writeEngineError maps engine failures to HTTP errors. Internal detail goes
// to the log; callers only ever see an opaque message.
func (h *chatHandler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, rag.ErrEmptyQuestion) {
		writeError(w, http.StatusBadRequest, codeBadRequest, "question must not be empty")
		return
	}

	h.logger.Error("chat request failed",
		"error", err,
		"path", r.URL.Path,
		"request_id", requestIDFromContext(r.Context()))
	writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
}

// searchThought is the retrieval step surfaced in context.thoughts.
func searchThought(found int) Thought {
	return Thought{
		Title:       rag.ThoughtTitleSearch,
		Description: rag.SearchThoughtDescription(found),
	}
}

// streamHead builds the first NDJSON line: retrieval done, generation pending.
func streamHead(found int) ChatAppResponse {
	return ChatAppResponse{
		Message: Message{Role: RoleAssistant},
		Delta:   Message{Role: RoleAssistant},
		Context: ResponseContext{
			DataPoints: emptyDataPoints(),
			Thoughts:   []Thought{searchThought(found)},
		},
	}
}

// deltaResponse builds a middle NDJSON line carrying one text increment plus
// the text accumulated so far.
func deltaResponse(accumulated, delta string) ChatAppResponse {
	return ChatAppResponse{
		Message: Message{Content: accumulated, Role: RoleAssistant},
		Delta:   Message{Content: delta, Role: RoleAssistant},
		Context: ResponseContext{
			DataPoints: emptyDataPoints(),
			Thoughts:   []Thought{},
		},
	}
}

// finalResponse builds the complete envelope for a finished answer: full
// text, source previews and citations, the retrieval thought, and follow-up
// suggestions unless the frontend turned them off.
func finalResponse(ans *rag.Answer, suggest bool) ChatAppResponse {
	var followups []string
	if suggest {
		followups = rag.FollowupQuestions()
	}

	return ChatAppResponse{
		Message: Message{Content: ans.Text, Role: RoleAssistant},
		Delta:   Message{Role: RoleAssistant},
		Context: ResponseContext{
			DataPoints: DataPoints{
				Text:      rag.SourcePreviews(ans.Sources),
				Images:    []string{},
				Citations: rag.SourceCitations(ans.Sources),
			},
			FollowupQuestions: followups,
			Thoughts:          []Thought{searchThought(len(ans.Sources))},
		},
	}
}
