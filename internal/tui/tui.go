// Package tui provides the Bubble Tea terminal interface for chatting with
// a running ragserver. It talks to the HTTP API only; retrieval and answer
// generation stay on the server.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bundesfaq/ragserver/internal/api"
)

// State represents TUI state machine.
type State int

// TUI state machine states.
const (
	StateInput     State = iota // Awaiting user input
	StateThinking               // Request sent, waiting for the first answer fragment
	StateStreaming              // Receiving answer fragments
)

// maxMessages bounds the conversation kept in memory.
const maxMessages = 100

// streamTimeout is the maximum time for a single exchange.
const streamTimeout = 5 * time.Minute

// ctrlCWindow is how long a second Ctrl+C counts as "press again to exit".
const ctrlCWindow = 2 * time.Second

// Message role constants for consistent display.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
	roleError     = "error"
)

// Layout constants for viewport height calculation.
const (
	separatorLines = 2 // Two separator lines (above and below input)
	helpLines      = 1 // Help bar height
	promptLines    = 1 // Prompt line
	minViewport    = 3 // Minimum viewport height
)

// Message represents a conversation entry for display.
type Message struct {
	Role      string // "user", "assistant", "system", "error"
	Text      string
	Citations []string // source documents the answer is grounded in
	Followups []string // suggested follow-up questions
}

// Model is the Bubble Tea model for the ragserver terminal chat.
type Model struct {
	client  *Client
	version string

	// Input
	input textinput.Model

	// State
	state     State
	lastCtrlC time.Time
	status    string // retrieval progress while a request runs
	health    string // server status line under the banner

	// Output
	spinner  spinner.Model
	output   strings.Builder
	viewBuf  strings.Builder // Reusable buffer for View() to reduce allocations
	messages []Message

	// Scrollable message viewport
	viewport viewport.Model

	// Help bar for keyboard shortcuts
	help help.Model
	keys keyMap

	// Stream management
	// Note: No sync.WaitGroup - Bubble Tea's event loop provides
	// synchronization. A single union channel with discriminated events
	// keeps the select logic simple.
	streamCancel  context.CancelFunc
	streamEventCh <-chan streamEvent

	ctx       context.Context
	ctxCancel context.CancelFunc // For canceling all operations on exit

	// Dimensions
	width  int
	height int

	styles Styles

	// Markdown rendering (nil = graceful degradation to plain text)
	markdown *markdownRenderer
}

// addMessage appends a message and enforces the maxMessages bound.
func (m *Model) addMessage(msg Message) {
	m.messages = append(m.messages, msg)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// New creates a Model for chat interaction with the given server client.
//
// IMPORTANT: ctx MUST be the same context passed to tea.WithContext()
// to ensure consistent cancellation behavior.
func New(ctx context.Context, client *Client, version string) (*Model, error) {
	if client == nil {
		return nil, errors.New("tui.New: client is required")
	}
	if ctx == nil {
		return nil, errors.New("tui.New: ctx is required")
	}

	// Create cancellable context for cleanup on exit
	ctx, cancel := context.WithCancel(ctx)

	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = "Ask about Kindergeld, BAföG, taxes..."
	ti.CharLimit = 0
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	vp := viewport.New(80, 20)
	vp.MouseWheelEnabled = true

	m := &Model{
		client:    client,
		version:   version,
		input:     ti,
		spinner:   sp,
		viewport:  vp,
		help:      help.New(),
		keys:      newKeyMap(),
		styles:    DefaultStyles(),
		markdown:  newMarkdownRenderer(80),
		ctx:       ctx,
		ctxCancel: cancel,
		health:    "connecting...",
		width:     80, // Default width until WindowSizeMsg arrives
	}
	m.rebuildViewportContent()
	return m, nil
}

// healthMsg carries the result of the startup health probe.
type healthMsg struct {
	health *Health
	err    error
}

// checkHealth probes the server once so the banner can show its state.
func (m *Model) checkHealth() tea.Cmd {
	return func() tea.Msg {
		h, err := m.client.Health(m.ctx)
		return healthMsg{health: h, err: err}
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		m.checkHealth(),
	)
}

// Update implements tea.Model.
//
//nolint:gocognit,gocyclo // Bubble Tea Update requires type switch on all message types
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate viewport height: total - input - separators - help
		fixedHeight := separatorLines + promptLines + helpLines
		vpHeight := max(msg.Height-fixedHeight, minViewport)

		m.viewport.Width = msg.Width
		m.viewport.Height = vpHeight
		m.input.Width = max(msg.Width-4, 20) // Room for "> " prompt
		m.help.Width = msg.Width
		m.markdown.UpdateWidth(msg.Width)

		// Rebuild viewport content with new dimensions
		m.rebuildViewportContent()
		return m, nil

	case tea.MouseMsg:
		// Forward mouse events to viewport for wheel scrolling
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		// Rebuild viewport to update spinner animation
		if m.state == StateThinking {
			m.rebuildViewportContent()
		}
		return m, cmd

	case healthMsg:
		if msg.err != nil {
			m.health = "server unreachable: " + msg.err.Error()
		} else {
			m.health = fmt.Sprintf("server %s, %d chunks indexed", msg.health.Status, msg.health.Documents)
		}
		m.rebuildViewportContent()
		return m, nil

	case streamStartedMsg:
		m.streamCancel = msg.cancel
		m.streamEventCh = msg.eventCh
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(msg.eventCh)

	case streamStatusMsg:
		m.status = msg.status
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(m.streamEventCh)

	case streamTextMsg:
		m.state = StateStreaming
		m.output.WriteString(msg.text)
		m.rebuildViewportContent()
		m.viewport.GotoBottom()
		return m, listenForStream(m.streamEventCh)

	case streamDoneMsg:
		return m.finishStream(msg.final)

	case streamErrorMsg:
		return m.failStream(msg.err)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleKey routes keyboard input by state.
func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.handleCtrlC()
	case tea.KeyCtrlD:
		return m.quit()
	case tea.KeyEsc:
		// Esc cancels a running request but never exits.
		if m.state != StateInput {
			m.cancelStream()
		}
		return m, nil
	case tea.KeyEnter:
		return m.handleSubmit()
	case tea.KeyPgUp:
		m.viewport.ViewUp()
		return m, nil
	case tea.KeyPgDown:
		m.viewport.ViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleCtrlC implements the three-stage Ctrl+C: cancel a running request,
// clear typed input, and only then (pressed twice on empty input) exit.
func (m *Model) handleCtrlC() (tea.Model, tea.Cmd) {
	if m.state != StateInput {
		m.cancelStream()
		return m, nil
	}
	if m.input.Value() != "" {
		m.input.SetValue("")
		return m, nil
	}
	if time.Since(m.lastCtrlC) < ctrlCWindow {
		return m.quit()
	}
	m.lastCtrlC = time.Now()
	m.addMessage(Message{Role: roleSystem, Text: "Press Ctrl+C again to exit"})
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, nil
}

// handleSubmit sends the typed question to the server.
func (m *Model) handleSubmit() (tea.Model, tea.Cmd) {
	if m.state != StateInput {
		return m, nil
	}
	question := strings.TrimSpace(m.input.Value())
	if question == "" {
		return m, nil
	}

	m.addMessage(Message{Role: roleUser, Text: question})
	m.input.SetValue("")
	m.state = StateThinking
	m.status = ""
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	return m, m.startStream(question)
}

// finishStream records the completed answer with its citations.
func (m *Model) finishStream(final *api.ChatAppResponse) (tea.Model, tea.Cmd) {
	m.state = StateInput
	m.status = ""
	m.cancelStream()
	m.streamEventCh = nil

	// Prefer the closing line's assembled message; fall back to the
	// accumulated deltas for servers that omit it.
	var text string
	var citations, followups []string
	if final != nil {
		text = final.Message.Content
		citations = final.Context.DataPoints.Citations
		followups = final.Context.FollowupQuestions
	}
	if text == "" {
		text = m.output.String()
	}

	m.addMessage(Message{
		Role:      roleAssistant,
		Text:      text,
		Citations: citations,
		Followups: followups,
	})
	m.output.Reset()
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	// Re-focus input after stream completes
	return m, m.input.Focus()
}

// failStream reports a failed or canceled request.
func (m *Model) failStream(err error) (tea.Model, tea.Cmd) {
	m.state = StateInput
	m.status = ""
	m.cancelStream()
	m.streamEventCh = nil

	switch {
	case errors.Is(err, context.Canceled):
		m.addMessage(Message{Role: roleSystem, Text: "(Canceled)"})
	case errors.Is(err, context.DeadlineExceeded):
		m.addMessage(Message{Role: roleError, Text: "Request timeout (>5 min). Try a shorter question."})
	default:
		m.addMessage(Message{Role: roleError, Text: err.Error()})
	}
	m.output.Reset()
	m.rebuildViewportContent()
	m.viewport.GotoBottom()
	// Re-focus input after error
	return m, m.input.Focus()
}

// cancelStream cancels the in-flight request, if any.
func (m *Model) cancelStream() {
	if m.streamCancel != nil {
		m.streamCancel()
		m.streamCancel = nil
	}
}

// quit cancels all in-flight work and exits the program.
func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.cancelStream()
	m.ctxCancel()
	return m, tea.Quit
}

// View implements tea.Model.
func (m *Model) View() string {
	m.viewBuf.Reset()

	// Viewport (scrollable message area)
	_, _ = m.viewBuf.WriteString(m.viewport.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line above input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Input prompt - always visible so users can type while streaming
	_, _ = m.viewBuf.WriteString(m.styles.Prompt.Render("> "))
	_, _ = m.viewBuf.WriteString(m.input.View())
	_, _ = m.viewBuf.WriteString("\n")

	// Separator line below input
	_, _ = m.viewBuf.WriteString(m.renderSeparator())
	_, _ = m.viewBuf.WriteString("\n")

	// Help bar (keyboard shortcuts)
	_, _ = m.viewBuf.WriteString(m.renderStatusBar())

	return m.viewBuf.String()
}

// rebuildViewportContent reconstructs the viewport content from messages
// and state. Called when messages, streaming output, or state changes.
func (m *Model) rebuildViewportContent() {
	var b strings.Builder

	// Banner, server status and tips
	_, _ = b.WriteString(m.styles.RenderBanner())
	_, _ = b.WriteString(m.styles.Health.Render(fmt.Sprintf("ragserver %s - %s", m.version, m.health)))
	_, _ = b.WriteString("\n\n")
	_, _ = b.WriteString(m.styles.RenderWelcomeTips())
	_, _ = b.WriteString("\n")

	// Messages (already bounded by addMessage)
	for _, msg := range m.messages {
		switch msg.Role {
		case roleUser:
			_, _ = b.WriteString(m.styles.User.Render("You> "))
			_, _ = b.WriteString(msg.Text)
		case roleAssistant:
			_, _ = b.WriteString(m.styles.Assistant.Render("FAQ> "))
			_, _ = b.WriteString(m.markdown.Render(msg.Text))
			if len(msg.Citations) > 0 {
				_, _ = b.WriteString("\n")
				_, _ = b.WriteString(m.styles.Sources.Render("Sources: " + strings.Join(msg.Citations, ", ")))
			}
			if len(msg.Followups) > 0 {
				_, _ = b.WriteString("\n")
				_, _ = b.WriteString(m.styles.Followup.Render("Try: " + strings.Join(msg.Followups, " | ")))
			}
		case roleSystem:
			_, _ = b.WriteString(m.styles.System.Render(msg.Text))
		case roleError:
			_, _ = b.WriteString(m.styles.Error.Render("Error: " + msg.Text))
		}
		_, _ = b.WriteString("\n\n")
	}

	// Current streaming output
	if m.state == StateStreaming && m.output.Len() > 0 {
		_, _ = b.WriteString(m.styles.Assistant.Render("FAQ> "))
		_, _ = b.WriteString(m.output.String())
		_, _ = b.WriteString("\n\n")
	}

	// Thinking indicator with retrieval progress
	if m.state == StateThinking {
		_, _ = b.WriteString(m.spinner.View())
		_, _ = b.WriteString(" ")
		if m.status != "" {
			_, _ = b.WriteString(m.status)
		} else {
			_, _ = b.WriteString("Thinking...")
		}
		_, _ = b.WriteString("\n\n")
	}

	m.viewport.SetContent(b.String())
}

// renderSeparator returns a horizontal line separator.
func (m *Model) renderSeparator() string {
	width := m.width
	if width <= 0 {
		width = 80
	}
	return m.styles.Separator.Render(strings.Repeat("─", width))
}

// renderStatusBar returns state-appropriate keyboard shortcut help.
func (m *Model) renderStatusBar() string {
	var bindings []key.Binding
	switch m.state {
	case StateInput:
		bindings = []key.Binding{
			m.keys.Submit, m.keys.Cancel, m.keys.Quit, m.keys.ScrollUp,
		}
	case StateThinking, StateStreaming:
		bindings = []key.Binding{
			m.keys.EscCancel, m.keys.Cancel,
			m.keys.ScrollUp, m.keys.ScrollDown,
		}
	}
	return m.help.ShortHelpView(bindings)
}
