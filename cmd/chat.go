package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/bundesfaq/ragserver/internal/tui"
)

// defaultServerURL is where `ragserver serve` listens out of the box.
const defaultServerURL = "http://localhost:8000"

// runChat starts the interactive terminal chat against a running server.
func runChat() error {
	baseURL, err := parseChatServer()
	if err != nil {
		return fmt.Errorf("parsing chat flags: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	model, err := tui.New(ctx, tui.NewClient(baseURL), Version)
	if err != nil {
		return fmt.Errorf("creating TUI: %w", err)
	}

	// The model receives the same ctx so Ctrl+C and SIGTERM cancel
	// in-flight requests before the program exits.
	program := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("TUI exited: %w", err)
	}
	return nil
}

// parseChatServer reads the --server flag from the command line.
func parseChatServer() (string, error) {
	chatFlags := flag.NewFlagSet("chat", flag.ContinueOnError)
	chatFlags.SetOutput(os.Stderr)

	server := chatFlags.String("server", defaultServerURL, "Base URL of the ragserver API")

	args := []string{}
	if len(os.Args) > 2 {
		args = os.Args[2:]
	}
	if err := chatFlags.Parse(args); err != nil {
		return "", err
	}

	baseURL := strings.TrimRight(*server, "/")
	if baseURL == "" {
		return "", fmt.Errorf("--server must not be empty")
	}
	return baseURL, nil
}
