package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bundesfaq/ragserver/internal/api"
)

// streamBufferSize is sized for ~1.5s burst at 60 FPS refresh rate.
// This prevents backpressure during UI render delays while keeping
// memory bounded.
const streamBufferSize = 100

// streamEvent is a discriminated union for all stream events.
// Using a single channel with union type simplifies select logic
// and eliminates complex multi-channel closure handling.
type streamEvent struct {
	// Exactly one of these fields is set per event
	text   string               // answer fragment
	final  *api.ChatAppResponse // closing line (when done is true)
	err    error                // error (when non-nil)
	done   bool                 // true when the stream completed successfully
	status string               // retrieval progress, e.g. "Gefunden 3 relevante Dokumente..."
}

// Stream message types for Bubble Tea
type streamStartedMsg struct {
	eventCh <-chan streamEvent
	cancel  context.CancelFunc
}

type streamTextMsg struct {
	text string
}

type streamStatusMsg struct {
	status string
}

type streamDoneMsg struct {
	final *api.ChatAppResponse
}

type streamErrorMsg struct {
	err error
}

// startStream creates a command that initiates the HTTP stream.
//
// Goroutine lifecycle: the spawned goroutine exits when the server sends
// its closing line, the context is canceled, or an error occurs. Channel
// closure signals completion - no WaitGroup needed.
func (m *Model) startStream(question string) tea.Cmd {
	return func() tea.Msg {
		eventCh := make(chan streamEvent, streamBufferSize)

		// Bound each exchange so a stalled server cannot hang the UI forever.
		ctx, cancel := context.WithTimeout(m.ctx, streamTimeout)

		go func() {
			defer cancel()
			// Channel closure signals goroutine completion
			defer close(eventCh)

			// Panic recovery to prevent TUI lockup
			defer func() {
				if r := recover(); r != nil {
					slog.Error("stream panic recovered", "panic", r)
					select {
					case eventCh <- streamEvent{err: fmt.Errorf("stream panic: %v", r)}:
					default:
					}
				}
			}()

			stream, err := m.client.Stream(ctx, question)
			if err != nil {
				emitStreamError(ctx, eventCh, err)
				return
			}
			defer func() {
				if closeErr := stream.Close(); closeErr != nil {
					slog.Debug("closing stream", "error", closeErr)
				}
			}()

			var final *api.ChatAppResponse
			first := true

			for {
				line, err := stream.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					emitStreamError(ctx, eventCh, err)
					return
				}

				// The opening line carries retrieval thoughts only.
				if first {
					first = false
					if line.Delta.Content == "" && line.Message.Content == "" {
						select {
						case eventCh <- streamEvent{status: thoughtStatus(line.Context.Thoughts)}:
						case <-ctx.Done():
							return
						}
						continue
					}
				}

				if line.Delta.Content != "" {
					select {
					case eventCh <- streamEvent{text: line.Delta.Content}:
					case <-ctx.Done():
						return
					}
					continue
				}

				// Closing line: full message, sources, follow-ups.
				final = line
			}

			if final == nil {
				err := ctx.Err()
				if err == nil {
					err = errors.New("stream ended without a closing line")
				}
				emitStreamError(ctx, eventCh, err)
				return
			}

			select {
			case eventCh <- streamEvent{done: true, final: final}:
			case <-ctx.Done():
			}
		}()

		return streamStartedMsg{
			eventCh: eventCh,
			cancel:  cancel,
		}
	}
}

// emitStreamError delivers err without blocking. A canceled context is
// reported as such rather than as the transport error it caused.
func emitStreamError(ctx context.Context, eventCh chan<- streamEvent, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = ctxErr
	}
	select {
	case eventCh <- streamEvent{err: err}:
	default:
	}
}

// thoughtStatus extracts a display string from the retrieval thoughts.
func thoughtStatus(thoughts []api.Thought) string {
	if len(thoughts) == 0 {
		return ""
	}
	if desc, ok := thoughts[0].Description.(string); ok && desc != "" {
		return desc
	}
	return thoughts[0].Title
}

// listenForStream creates a command to wait for next stream event.
// Uses single union channel - no complex multi-channel select needed.
// Empty events (all fields zero) are skipped via loop instead of recursion
// to prevent stack overflow under pathological conditions.
func listenForStream(eventCh <-chan streamEvent) tea.Cmd {
	return func() tea.Msg {
		if eventCh == nil {
			return nil
		}

		for {
			event, ok := <-eventCh
			if !ok {
				// Channel closed - stream ended
				return streamErrorMsg{err: errors.New("stream ended without completion signal")}
			}

			// Discriminated union dispatch
			switch {
			case event.err != nil:
				return streamErrorMsg{err: event.err}
			case event.done:
				return streamDoneMsg{final: event.final}
			case event.status != "":
				return streamStatusMsg{status: event.status}
			case event.text != "":
				return streamTextMsg{text: event.text}
			default:
				// Empty event - loop instead of recursing
				continue
			}
		}
	}
}
