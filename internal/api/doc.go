// Package api provides the JSON HTTP API for the BundesFAQ RAG service.
//
// # Architecture
//
// The server uses Go 1.22+ routing with a layered middleware stack:
//
//	Recovery → RequestID → Logging → CORS → Routes
//
// There is no authentication layer: the service answers questions over a
// public FAQ corpus and holds no per-user state. Conversation history lives
// entirely in the browser.
//
// # Endpoints
//
// Service metadata:
//   - GET /            - service banner (name, version, health path)
//   - GET /health      - vectorstore status and document count
//   - GET /config      - feature flags for the web frontend
//   - GET /auth_setup  - static "no auth" stub the frontend probes on load
//
// Chat:
//   - POST /chat        - one-shot answer (/ask is an alias)
//   - POST /chat/stream - streaming answer as NDJSON lines
//   - POST /upload      - always 501; ingestion happens offline via the
//     build command
//
// # Degraded Mode
//
// When the vectorstore failed to open at startup the server still runs:
// metadata endpoints work so the failure can be diagnosed, chat endpoints
// answer 503, and /health reports vectorstore_loaded=false.
//
// # Wire Format
//
// Request and response bodies follow the chat protocol of the original web
// frontend: payloads are sent bare (no envelope), and errors use
//
//	{"error": {"code": "...", "message": "..."}}
//
// Error messages are opaque; failure detail stays in the server log.
//
// # NDJSON Streaming
//
// /chat/stream replies with Content-Type application/x-ndjson. Every line is
// a complete ChatAppResponse JSON object:
//
//   - first line:  context.thoughts carries the retrieval step, before
//     generation starts
//   - middle lines: delta.content is the new text, message.content the text
//     so far
//   - final line:  empty delta, full message.content, data_points and
//     followup_questions
//
// Concatenating every delta.content in order equals the final
// message.content. If generation fails after the stream has started, the
// stream ends with a single flat {"error": "..."} line, since the HTTP
// status is already committed.
package api
