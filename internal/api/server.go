package api

import (
	"log/slog"
	"net/http"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger          *slog.Logger
	Engine          Answerer   // Optional: nil serves 503 on the chat endpoints (degraded mode)
	Store           Collection // Optional: nil reports vectorstore_loaded=false in /health
	VectorstorePath string     // Reported by /health
	Version         string     // Reported by the banner endpoint
	CORSOrigins     []string   // Allowed origins for CORS
}

// Server is the JSON API HTTP server.
type Server struct {
	handler http.Handler
}

// NewServer creates a new API server with all routes configured. A nil Engine
// or Store is allowed: the server starts anyway and answers chat requests
// with 503 until the vectorstore is rebuilt, so /health and /config stay
// reachable for diagnosis.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	ch := &chatHandler{
		logger: logger,
		engine: cfg.Engine,
	}

	hh := &healthHandler{
		store:           cfg.Store,
		engine:          cfg.Engine,
		vectorstorePath: cfg.VectorstorePath,
	}

	mux := http.NewServeMux()

	// Service metadata
	mux.HandleFunc("GET /{$}", bannerHandler(version))
	mux.HandleFunc("GET /health", hh.health)
	mux.HandleFunc("GET /config", frontendSettings)
	mux.HandleFunc("GET /auth_setup", authSetup)

	// Chat. /ask is an alias kept for frontend compatibility; both answer in
	// one shot, /chat/stream answers as NDJSON.
	mux.HandleFunc("POST /chat", ch.answer)
	mux.HandleFunc("POST /ask", ch.answer)
	mux.HandleFunc("POST /chat/stream", ch.stream)

	// Uploads are rebuilt offline, not accepted over HTTP.
	mux.HandleFunc("POST /upload", upload)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → Routes
	// RequestID must be before Logging so request_id is available in log
	// attributes. CORS must be innermost-but-one so preflight OPTIONS gets
	// proper headers without hitting route dispatch.
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	return &Server{handler: handler}
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}
