// Package cmd provides CLI commands for ragserver.
//
// Commands:
//   - serve: HTTP API server with NDJSON answer streaming
//   - build: vectorstore builds from PDF, text or web sources
//   - chat: interactive terminal chat against a running server
//
// Signal handling and graceful shutdown are implemented
// for all commands via context cancellation.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
)

// Execute is the main entry point for the ragserver CLI application.
func Execute() error {
	// Bootstrap logger; serve and build swap in the configured one.
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "serve":
		return runServe()
	case "build":
		return runBuild()
	case "chat":
		return runChat()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", os.Args[1])
	}
}

// runHelp displays the help message.
func runHelp() {
	fmt.Println("ragserver - Retrieval-augmented question answering over your documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  ragserver serve [addr]        Start the HTTP API server (default: :8000)")
	fmt.Println("  ragserver build [flags]       Build the vectorstore from a document source")
	fmt.Println("  ragserver chat [--server URL] Chat with a running server in the terminal")
	fmt.Println("  ragserver --version           Show version information")
	fmt.Println("  ragserver --help              Show this help")
	fmt.Println()
	fmt.Println("Build Flags:")
	fmt.Println("  --pdf FILE | --text FILE | --url URL   Source to index (exactly one)")
	fmt.Println("  --reset | --append                     Replace or extend the store (exactly one)")
	fmt.Println("  --out DIR                              Vectorstore directory (default from config)")
	fmt.Println("  --watch                                Rebuild whenever the source file changes")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OPENAI_API_KEY     Required: OpenAI API key")
	fmt.Println("  RAGSERVER_*        Optional: config overrides (addr, models, vectorstore dir, ...)")
	fmt.Println("  DEBUG              Optional: Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/bundesfaq/ragserver")
}
