// Package testutil provides deterministic genkit mocks so the answer and
// indexing pipelines can be exercised without network access or API keys.
package testutil

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Names under which the mocks register themselves. Point EngineConfig.Model
// and the embedder lookup at these in tests.
const (
	MockModelName    = "mock/test-model"
	MockEmbedderName = "mock/test-embedder"
)

// MockLLM serves canned responses keyed by substrings of the user message.
// Responses stream word by word so callers can observe more than one chunk,
// and the concatenation of all chunks always equals the final message text.
type MockLLM struct {
	mu        sync.Mutex
	rules     []mockRule
	fallback  string
	err       error
	failAfter int
	calls     []MockCall
}

type mockRule struct {
	pattern  string
	response string
}

// MockCall records one request the mock received.
type MockCall struct {
	SystemPrompt string
	UserMessage  string
	Config       any
	Response     string
}

// NewMockLLM creates a mock that answers fallback when no rule matches.
func NewMockLLM(fallback string) *MockLLM {
	return &MockLLM{fallback: fallback}
}

// AddResponse registers a response for user messages containing pattern.
// Matching is case-insensitive and the first matching rule wins.
func (m *MockLLM) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: pattern, response: response})
}

// FailWith makes every subsequent request fail before any chunk is sent.
func (m *MockLLM) FailWith(err error) {
	m.FailAfterChunks(0, err)
}

// FailAfterChunks makes requests fail after streaming the given number of
// chunks. Non-streaming requests fail without producing a response.
func (m *MockLLM) FailAfterChunks(chunks int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.failAfter = chunks
}

// Calls returns a copy of every request received so far.
func (m *MockLLM) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]MockCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// Reset clears recorded calls, rules, and any injected failure.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.rules = nil
	m.err = nil
	m.failAfter = 0
}

// RegisterModel registers the mock with genkit under MockModelName.
func (m *MockLLM) RegisterModel(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, MockModelName, &ai.ModelOptions{
		Label: "Mock Test Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			SystemRole: true,
		},
	}, m.generate)
}

func (m *MockLLM) generate(ctx context.Context, req *ai.ModelRequest, cb func(context.Context, *ai.ModelResponseChunk) error) (*ai.ModelResponse, error) {
	system := messageText(req, ai.RoleSystem)
	user := messageText(req, ai.RoleUser)

	m.mu.Lock()
	response := m.fallback
	lowered := strings.ToLower(user)
	for _, rule := range m.rules {
		if strings.Contains(lowered, strings.ToLower(rule.pattern)) {
			response = rule.response
			break
		}
	}
	failErr := m.err
	failAfter := m.failAfter
	m.calls = append(m.calls, MockCall{
		SystemPrompt: system,
		UserMessage:  user,
		Config:       req.Config,
		Response:     response,
	})
	m.mu.Unlock()

	if failErr != nil && failAfter <= 0 {
		return nil, failErr
	}

	if cb != nil {
		for i, piece := range strings.SplitAfter(response, " ") {
			if piece == "" {
				continue
			}
			if failErr != nil && i >= failAfter {
				return nil, failErr
			}
			chunk := &ai.ModelResponseChunk{Content: []*ai.Part{ai.NewTextPart(piece)}}
			if err := cb(ctx, chunk); err != nil {
				return nil, err
			}
		}
	}

	if failErr != nil {
		return nil, failErr
	}

	return &ai.ModelResponse{
		Request: req,
		Message: &ai.Message{
			Role:    ai.RoleModel,
			Content: []*ai.Part{ai.NewTextPart(response)},
		},
	}, nil
}

// messageText returns the text of the most recent message with the given role.
func messageText(req *ai.ModelRequest, role ai.Role) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role != role {
			continue
		}
		var sb strings.Builder
		for _, part := range msg.Content {
			if part.IsText() {
				sb.WriteString(part.Text)
			}
		}
		return sb.String()
	}
	return ""
}

// MockEmbedder returns deterministic vectors, so identical texts always land
// on identical embeddings across runs. Specific vectors can be pinned per
// text to steer similarity ordering in retrieval tests.
type MockEmbedder struct {
	mu      sync.Mutex
	dim     int
	vectors map[string][]float32
	err     error
	batches [][]string
}

// NewMockEmbedder creates a mock producing vectors of the given dimension.
func NewMockEmbedder(dim int) *MockEmbedder {
	return &MockEmbedder{dim: dim, vectors: make(map[string][]float32)}
}

// SetVector pins the vector returned for an exact text.
func (e *MockEmbedder) SetVector(text string, vector []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = vector
}

// FailWith makes every subsequent embed request fail.
func (e *MockEmbedder) FailWith(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.err = err
}

// Batches returns the texts of each embed request received so far.
func (e *MockEmbedder) Batches() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	batches := make([][]string, len(e.batches))
	copy(batches, e.batches)
	return batches
}

// RegisterEmbedder registers the mock with genkit under MockEmbedderName.
func (e *MockEmbedder) RegisterEmbedder(g *genkit.Genkit) ai.Embedder {
	return genkit.DefineEmbedder(g, MockEmbedderName, &ai.EmbedderOptions{
		Label:      "Mock Test Embedder",
		Dimensions: e.dim,
	}, e.embed)
}

func (e *MockEmbedder) embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	texts := make([]string, 0, len(req.Input))
	for _, doc := range req.Input {
		texts = append(texts, documentText(doc))
	}
	e.batches = append(e.batches, texts)

	if e.err != nil {
		return nil, e.err
	}

	resp := &ai.EmbedResponse{}
	for _, text := range texts {
		vector, ok := e.vectors[text]
		if !ok {
			vector = deterministicVector(text, e.dim)
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{Embedding: vector})
	}
	return resp, nil
}

func documentText(doc *ai.Document) string {
	var sb strings.Builder
	for _, part := range doc.Content {
		if part.IsText() {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// deterministicVector hashes text into a stable vector with components
// in [-1, 1].
func deterministicVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	block := sha256.Sum256([]byte(text))
	offset := 0
	for i := range vector {
		if offset+4 > len(block) {
			block = sha256.Sum256(block[:])
			offset = 0
		}
		bits := binary.BigEndian.Uint32(block[offset:])
		offset += 4
		vector[i] = float32(bits)/float32(math.MaxUint32)*2 - 1
	}
	return vector
}
