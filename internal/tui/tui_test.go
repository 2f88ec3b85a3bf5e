package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/goleak"

	"github.com/bundesfaq/ragserver/internal/api"
)

// goleakOptions returns standard goleak options for all TUI tests.
// Filters out persistent goroutines that are expected to exist:
// - netpoll goroutines
// - HTTP keep-alive goroutines from the shared default transport
func goleakOptions() []goleak.Option {
	return []goleak.Option{
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	}
}

// newTestModel creates a Model with initialized components for testing.
func newTestModel() *Model {
	ti := textinput.New()
	ti.Focus()
	return &Model{
		client:    NewClient("http://localhost:8000"),
		input:     ti,
		spinner:   spinner.New(),
		viewport:  viewport.New(80, 20),
		help:      help.New(),
		keys:      newKeyMap(),
		state:     StateInput,
		styles:    DefaultStyles(),
		markdown:  newMarkdownRenderer(80),
		ctx:       context.Background(), // Required for stream operations
		ctxCancel: func() {},
		width:     80,
	}
}

func TestNew_ErrorOnNilClient(t *testing.T) {
	_, err := New(context.Background(), nil, "test")
	if err == nil {
		t.Error("Expected error for nil client")
	}
}

func TestNew_ErrorOnNilContext(t *testing.T) {
	//lint:ignore SA1012 intentionally testing nil context handling
	_, err := New(nil, NewClient("http://localhost:8000"), "test") //nolint:staticcheck
	if err == nil {
		t.Error("Expected error for nil context")
	}
}

func TestModel_Init(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	cmd := m.Init()
	if cmd == nil {
		t.Error("Init should return a command (blink + spinner tick + health probe)")
	}
}

func TestModel_CtrlC_ClearsInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.input.SetValue("some input")

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if result.input.Value() != "" {
		t.Error("First Ctrl+C should clear input")
	}
}

func TestModel_DoubleCtrlC_Exits(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.lastCtrlC = time.Now()

	_, cmd := m.handleCtrlC()

	if cmd == nil {
		t.Error("Double Ctrl+C should return quit command")
	}
}

func TestModel_CtrlC_CancelsStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateStreaming

	canceled := false
	m.streamCancel = func() { canceled = true }

	model, _ := m.handleCtrlC()
	result := model.(*Model)

	if !canceled {
		t.Error("Ctrl+C during streaming should cancel")
	}
	if result.streamCancel != nil {
		t.Error("streamCancel should be nil after cancel")
	}

	// The canceled request then surfaces as a stream error event.
	model, _ = result.Update(streamErrorMsg{err: context.Canceled})
	result = model.(*Model)

	if result.state != StateInput {
		t.Error("Should return to StateInput")
	}
	if len(result.messages) != 1 || result.messages[0].Role != roleSystem {
		t.Error("Should add canceled system message")
	}
}

func TestModel_Esc_CancelsStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.state = StateThinking

	canceled := false
	m.streamCancel = func() { canceled = true }

	_, _ = m.handleKey(tea.KeyMsg{Type: tea.KeyEsc})

	if !canceled {
		t.Error("Esc during a request should cancel it")
	}
}

func TestModel_HandleSubmit(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("sends question", func(t *testing.T) {
		m := newTestModel()
		m.input.SetValue("  Wie hoch ist das Kindergeld?  ")

		model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		result := model.(*Model)

		if cmd == nil {
			t.Error("Submit should return a stream command")
		}
		if result.state != StateThinking {
			t.Error("Submit should transition to StateThinking")
		}
		if result.input.Value() != "" {
			t.Error("Submit should clear the input")
		}
		if len(result.messages) != 1 {
			t.Fatalf("Expected 1 message, got %d", len(result.messages))
		}
		if result.messages[0].Role != roleUser {
			t.Error("Submitted question should be a user message")
		}
		if result.messages[0].Text != "Wie hoch ist das Kindergeld?" {
			t.Errorf("Question should be trimmed, got %q", result.messages[0].Text)
		}
	})

	t.Run("ignores empty input", func(t *testing.T) {
		m := newTestModel()
		m.input.SetValue("   ")

		model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		result := model.(*Model)

		if cmd != nil {
			t.Error("Empty submit should not start a stream")
		}
		if result.state != StateInput {
			t.Error("Empty submit should stay in StateInput")
		}
		if len(result.messages) != 0 {
			t.Error("Empty submit should not add a message")
		}
	})

	t.Run("ignores submit while streaming", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming
		m.input.SetValue("another question")

		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

		if cmd != nil {
			t.Error("Submit during streaming should be ignored")
		}
	})
}

func TestModel_StreamMessageTypes(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("streamStartedMsg", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)

		m := newTestModel()
		m.state = StateThinking

		model, cmd := m.Update(streamStartedMsg{eventCh: eventCh, cancel: func() {}})
		result := model.(*Model)

		if result.streamEventCh == nil {
			t.Error("Should store the event channel")
		}
		if result.streamCancel == nil {
			t.Error("Should store the cancel function")
		}
		if cmd == nil {
			t.Error("Should start listening for events")
		}
	})

	t.Run("streamStatusMsg", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)

		m := newTestModel()
		m.state = StateThinking
		m.streamEventCh = eventCh

		model, cmd := m.Update(streamStatusMsg{status: "Gefunden 3 relevante Dokumente in der Wissensdatenbank"})
		result := model.(*Model)

		if !strings.Contains(result.status, "3 relevante Dokumente") {
			t.Errorf("Status should be stored, got %q", result.status)
		}
		if cmd == nil {
			t.Error("Should keep listening for events")
		}
	})

	t.Run("streamTextMsg", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)

		m := newTestModel()
		m.state = StateThinking
		m.streamEventCh = eventCh

		model, _ := m.Update(streamTextMsg{text: "Hello"})
		result := model.(*Model)

		if result.state != StateStreaming {
			t.Error("First fragment should transition to StateStreaming")
		}
		if result.output.String() != "Hello" {
			t.Errorf("Expected 'Hello', got %q", result.output.String())
		}
	})

	t.Run("streamDoneMsg", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming
		_, _ = m.output.WriteString("Das Kindergeld")

		final := &api.ChatAppResponse{
			Message: api.Message{Content: "Das Kindergeld beträgt 255 Euro.", Role: api.RoleAssistant},
			Context: api.ResponseContext{
				DataPoints:        api.DataPoints{Citations: []string{"kindergeld.md"}},
				FollowupQuestions: []string{"Wie beantrage ich Kindergeld?"},
			},
		}

		model, _ := m.Update(streamDoneMsg{final: final})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after stream done")
		}
		if len(result.messages) != 1 {
			t.Fatal("Should add assistant message")
		}
		msg := result.messages[0]
		if msg.Text != "Das Kindergeld beträgt 255 Euro." {
			t.Errorf("Should prefer the closing line's message, got %q", msg.Text)
		}
		if len(msg.Citations) != 1 || msg.Citations[0] != "kindergeld.md" {
			t.Errorf("Should carry citations, got %v", msg.Citations)
		}
		if len(msg.Followups) != 1 {
			t.Errorf("Should carry follow-up questions, got %v", msg.Followups)
		}
		if result.output.Len() != 0 {
			t.Error("Output buffer should be reset")
		}
	})

	t.Run("streamDoneMsg without closing line", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming
		_, _ = m.output.WriteString("partial answer")

		model, _ := m.Update(streamDoneMsg{})
		result := model.(*Model)

		if len(result.messages) != 1 {
			t.Fatal("Should add assistant message")
		}
		if result.messages[0].Text != "partial answer" {
			t.Errorf("Should fall back to accumulated output, got %q", result.messages[0].Text)
		}
	})

	t.Run("streamErrorMsg canceled", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming

		model, _ := m.Update(streamErrorMsg{err: context.Canceled})
		result := model.(*Model)

		if result.state != StateInput {
			t.Error("Should return to StateInput after error")
		}
		if len(result.messages) != 1 {
			t.Fatal("Should add system message for cancellation")
		}
		if result.messages[0].Role != roleSystem {
			t.Error("Should be system message for cancellation")
		}
	})

	t.Run("streamErrorMsg timeout", func(t *testing.T) {
		m := newTestModel()
		m.state = StateThinking

		model, _ := m.Update(streamErrorMsg{err: context.DeadlineExceeded})
		result := model.(*Model)

		if len(result.messages) != 1 {
			t.Fatal("Should add error message for timeout")
		}
		if result.messages[0].Role != roleError {
			t.Error("Should be error message for timeout")
		}
		if !strings.Contains(result.messages[0].Text, "timeout") {
			t.Errorf("Timeout message should say so, got %q", result.messages[0].Text)
		}
	})

	t.Run("streamErrorMsg server failure", func(t *testing.T) {
		m := newTestModel()
		m.state = StateStreaming

		model, _ := m.Update(streamErrorMsg{err: errors.New("server: model became unavailable")})
		result := model.(*Model)

		if result.messages[0].Role != roleError {
			t.Error("Should be error message for server failure")
		}
		if !strings.Contains(result.messages[0].Text, "model became unavailable") {
			t.Errorf("Error text should surface, got %q", result.messages[0].Text)
		}
	})
}

func TestListenForStream_UnionChannel(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("text event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{text: "hello"}

		cmd := listenForStream(eventCh)
		msg := cmd()

		if m, ok := msg.(streamTextMsg); !ok {
			t.Errorf("Expected streamTextMsg, got %T", msg)
		} else if m.text != "hello" {
			t.Errorf("Expected text 'hello', got %q", m.text)
		}
	})

	t.Run("status event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{status: "Recherche"}

		cmd := listenForStream(eventCh)
		msg := cmd()

		if m, ok := msg.(streamStatusMsg); !ok {
			t.Errorf("Expected streamStatusMsg, got %T", msg)
		} else if m.status != "Recherche" {
			t.Errorf("Expected status 'Recherche', got %q", m.status)
		}
	})

	t.Run("done event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		final := &api.ChatAppResponse{Message: api.Message{Content: "done"}}
		eventCh <- streamEvent{done: true, final: final}

		cmd := listenForStream(eventCh)
		msg := cmd()

		if m, ok := msg.(streamDoneMsg); !ok {
			t.Errorf("Expected streamDoneMsg, got %T", msg)
		} else if m.final.Message.Content != "done" {
			t.Errorf("Expected closing message 'done', got %q", m.final.Message.Content)
		}
	})

	t.Run("error event", func(t *testing.T) {
		eventCh := make(chan streamEvent, 1)
		eventCh <- streamEvent{err: context.Canceled}

		cmd := listenForStream(eventCh)
		msg := cmd()

		if _, ok := msg.(streamErrorMsg); !ok {
			t.Errorf("Expected streamErrorMsg, got %T", msg)
		}
	})

	t.Run("channel closed", func(t *testing.T) {
		eventCh := make(chan streamEvent)
		close(eventCh)

		cmd := listenForStream(eventCh)
		msg := cmd()

		if _, ok := msg.(streamErrorMsg); !ok {
			t.Errorf("Expected streamErrorMsg on channel close, got %T", msg)
		}
	})

	t.Run("nil channel returns nil", func(t *testing.T) {
		cmd := listenForStream(nil)
		msg := cmd()

		if msg != nil {
			t.Errorf("Expected nil for nil channel, got %T", msg)
		}
	})
}

func TestThoughtStatus(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	tests := []struct {
		name     string
		thoughts []api.Thought
		want     string
	}{
		{
			name: "description preferred",
			thoughts: []api.Thought{
				{Title: "Recherche", Description: "Gefunden 3 relevante Dokumente in der Wissensdatenbank"},
			},
			want: "Gefunden 3 relevante Dokumente in der Wissensdatenbank",
		},
		{
			name:     "title fallback when description is nil",
			thoughts: []api.Thought{{Title: "Recherche", Description: nil}},
			want:     "Recherche",
		},
		{
			name:     "title fallback when description is not a string",
			thoughts: []api.Thought{{Title: "Recherche", Description: 42}},
			want:     "Recherche",
		},
		{
			name:     "no thoughts",
			thoughts: nil,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := thoughtStatus(tt.thoughts); got != tt.want {
				t.Errorf("thoughtStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestModel_HealthProbe(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("healthy server", func(t *testing.T) {
		m := newTestModel()

		model, _ := m.Update(healthMsg{health: &Health{Status: "ok", VectorstoreLoaded: true, Documents: 128}})
		result := model.(*Model)

		if !strings.Contains(result.health, "128 chunks") {
			t.Errorf("Health line should report chunk count, got %q", result.health)
		}
	})

	t.Run("unreachable server", func(t *testing.T) {
		m := newTestModel()

		model, _ := m.Update(healthMsg{err: errors.New("connection refused")})
		result := model.(*Model)

		if !strings.Contains(result.health, "unreachable") {
			t.Errorf("Health line should report unreachable server, got %q", result.health)
		}
	})
}

func TestModel_WindowResize(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	model, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	result := model.(*Model)

	if result.viewport.Width != 120 {
		t.Errorf("Viewport width = %d, want 120", result.viewport.Width)
	}
	wantHeight := 40 - (separatorLines + promptLines + helpLines)
	if result.viewport.Height != wantHeight {
		t.Errorf("Viewport height = %d, want %d", result.viewport.Height, wantHeight)
	}

	// Tiny terminals must keep a usable viewport.
	model, _ = result.Update(tea.WindowSizeMsg{Width: 20, Height: 5})
	result = model.(*Model)

	if result.viewport.Height < minViewport {
		t.Errorf("Viewport height = %d, want at least %d", result.viewport.Height, minViewport)
	}
}

func TestModel_AddMessage_BoundsEnforcement(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	for i := 0; i < maxMessages+50; i++ {
		m.addMessage(Message{Role: roleUser, Text: "test"})
	}

	if len(m.messages) != maxMessages {
		t.Errorf("Expected exactly %d messages, got %d", maxMessages, len(m.messages))
	}
}

func TestModel_TypingForwardsToInput(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	model, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h")})
	result := model.(*Model)

	if result.input.Value() != "h" {
		t.Errorf("Typed rune should land in the input, got %q", result.input.Value())
	}
}

func TestModel_View(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.version = "test"
	m.rebuildViewportContent()

	view := m.View()
	if view == "" {
		t.Fatal("View should produce output")
	}
	if !strings.Contains(view, "> ") {
		t.Error("View should contain the input prompt")
	}
	if !strings.Contains(view, "ragserver") {
		t.Error("View should contain the server status line")
	}
}

func TestModel_ViewportShowsConversation(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()
	m.addMessage(Message{Role: roleUser, Text: "Wie hoch ist das Kindergeld?"})
	m.addMessage(Message{
		Role:      roleAssistant,
		Text:      "255 Euro pro Monat.",
		Citations: []string{"kindergeld.md"},
	})
	m.rebuildViewportContent()
	m.viewport.GotoBottom()

	view := m.View()
	if !strings.Contains(view, "Wie hoch ist das Kindergeld?") {
		t.Error("Viewport should show the user question")
	}
	if !strings.Contains(view, "kindergeld.md") {
		t.Error("Viewport should show the answer's sources")
	}
}

func TestMarkdownRenderer_UpdateWidth(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("UpdateWidth changes width", func(t *testing.T) {
		mr := newMarkdownRenderer(80)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}

		if !mr.UpdateWidth(120) {
			t.Error("UpdateWidth should return true when width changes")
		}
		if mr.width != 120 {
			t.Errorf("Expected width 120, got %d", mr.width)
		}
	})

	t.Run("UpdateWidth no-op for same width", func(t *testing.T) {
		mr := newMarkdownRenderer(80)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}

		if mr.UpdateWidth(80) {
			t.Error("UpdateWidth should return false when width unchanged")
		}
	})

	t.Run("UpdateWidth handles nil receiver", func(t *testing.T) {
		var mr *markdownRenderer
		if mr.UpdateWidth(100) {
			t.Error("UpdateWidth should return false for nil receiver")
		}
	})
}

func TestMarkdownRenderer_Render(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	t.Run("renders markdown", func(t *testing.T) {
		mr := newMarkdownRenderer(80)
		if mr == nil {
			t.Fatal("Failed to create markdown renderer")
		}

		result := mr.Render("**bold**")
		// Glamour adds ANSI codes, so just verify it's not empty
		if result == "" {
			t.Error("Render should produce output")
		}
	})

	t.Run("nil renderer returns original", func(t *testing.T) {
		var mr *markdownRenderer
		result := mr.Render("test")
		if result != "test" {
			t.Errorf("Expected original text, got %q", result)
		}
	})
}

func TestModel_CancelStream(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	canceled := false
	m.streamCancel = func() { canceled = true }

	m.cancelStream()

	if !canceled {
		t.Error("cancelStream should call cancel function")
	}
	if m.streamCancel != nil {
		t.Error("streamCancel should be nil after cancel")
	}
}

func TestModel_Quit(t *testing.T) {
	defer goleak.VerifyNone(t, goleakOptions()...)

	m := newTestModel()

	canceled := false
	m.ctxCancel = func() { canceled = true }

	_, cmd := m.quit()

	if cmd == nil {
		t.Error("quit should return quit command")
	}
	if !canceled {
		t.Error("quit should cancel the model context")
	}
}
