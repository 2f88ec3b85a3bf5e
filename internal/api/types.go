package api

// Wire types for the chat endpoints. Field names and nesting mirror the
// protocol the frontend speaks; renaming anything here breaks it.

// RoleUser and RoleAssistant are the two roles the endpoints care about.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// Overrides carries the per-request settings the frontend may send. Only
// Temperature, Top and SuggestFollowupQuestions have an effect; the rest are
// accepted for protocol compatibility and ignored (no hybrid retrieval, no
// reranking, no query rewriting, no agentic retrieval).
type Overrides struct {
	RetrievalMode            string   `json:"retrieval_mode,omitempty"`
	SemanticRanker           *bool    `json:"semantic_ranker,omitempty"`
	QueryRewriting           *bool    `json:"query_rewriting,omitempty"`
	ReasoningEffort          string   `json:"reasoning_effort,omitempty"`
	Temperature              *float32 `json:"temperature,omitempty"`
	Top                      int      `json:"top,omitempty"`
	SuggestFollowupQuestions *bool    `json:"suggest_followup_questions,omitempty"`
	SendTextSources          *bool    `json:"send_text_sources,omitempty"`
	Language                 string   `json:"language,omitempty"`
	UseAgenticRetrieval      bool     `json:"use_agentic_retrieval,omitempty"`
}

// RequestContext wraps the optional overrides object.
type RequestContext struct {
	Overrides *Overrides `json:"overrides,omitempty"`
}

// ChatAppRequest is the body of POST /chat, /ask and /chat/stream.
type ChatAppRequest struct {
	Messages     []Message       `json:"messages"`
	Context      *RequestContext `json:"context,omitempty"`
	SessionState any             `json:"session_state,omitempty"`
}

// Thought describes one processing step surfaced to the frontend.
type Thought struct {
	Title       string `json:"title"`
	Description any    `json:"description"`
}

// DataPoints lists the retrieved evidence behind an answer. The slices are
// always non-nil so the frontend sees [] rather than null.
type DataPoints struct {
	Text      []string `json:"text"`
	Images    []string `json:"images"`
	Citations []string `json:"citations"`
}

// ResponseContext is the context block of a ChatAppResponse.
// FollowupQuestions is deliberately not omitempty: the frontend distinguishes
// "no suggestions" (null) from "suggestions pending" on streamed lines.
type ResponseContext struct {
	DataPoints        DataPoints `json:"data_points"`
	FollowupQuestions []string   `json:"followup_questions"`
	Thoughts          []Thought  `json:"thoughts"`
}

// ChatAppResponse is the reply envelope shared by the chat endpoints. For
// streamed replies Delta holds the text added since the previous line and
// Message the text accumulated so far; non-streaming replies and the final
// stream line carry an empty Delta.
type ChatAppResponse struct {
	Message      Message         `json:"message"`
	Delta        Message         `json:"delta"`
	Context      ResponseContext `json:"context"`
	SessionState any             `json:"session_state"`
}

// emptyDataPoints returns a DataPoints whose slices marshal as [].
func emptyDataPoints() DataPoints {
	return DataPoints{Text: []string{}, Images: []string{}, Citations: []string{}}
}

// lastUserMessage returns the content of the most recent user turn. Earlier
// turns are ignored: the service keeps no conversation memory.
func lastUserMessage(messages []Message) (string, bool) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content, true
		}
	}
	return "", false
}

// overrides returns the request's overrides, never nil.
func (r *ChatAppRequest) overrides() *Overrides {
	if r.Context == nil || r.Context.Overrides == nil {
		return &Overrides{}
	}
	return r.Context.Overrides
}

// suggestFollowups reports whether the reply should carry follow-up
// questions. Defaults to true when the frontend sends nothing.
func (o *Overrides) suggestFollowups() bool {
	return o.SuggestFollowupQuestions == nil || *o.SuggestFollowupQuestions
}
