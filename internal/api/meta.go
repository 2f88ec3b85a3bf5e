package api

import "net/http"

// banner is the body of GET /, a tiny self-description for people poking the
// service with curl.
type banner struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Health  string `json:"health"`
}

// bannerHandler serves GET / exactly.
func bannerHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, banner{
			Message: "BundesFAQ RAG API",
			Version: version,
			Health:  "/health",
		})
	}
}

// frontendConfig is the feature flag set the web frontend reads on startup.
// Field names are camelCase because that is what the frontend expects.
// Flags only advertise what this backend actually does: no reranking, no
// query rewriting, no agentic retrieval, no uploads, German only.
type frontendConfig struct {
	DefaultReasoningEffort     string `json:"defaultReasoningEffort"`
	ShowMultimodalOptions      bool   `json:"showMultimodalOptions"`
	ShowSemanticRankerOption   bool   `json:"showSemanticRankerOption"`
	ShowQueryRewritingOption   bool   `json:"showQueryRewritingOption"`
	ShowReasoningEffortOption  bool   `json:"showReasoningEffortOption"`
	StreamingEnabled           bool   `json:"streamingEnabled"`
	ShowVectorOption           bool   `json:"showVectorOption"`
	ShowUserUpload             bool   `json:"showUserUpload"`
	ShowLanguagePicker         bool   `json:"showLanguagePicker"`
	ShowSpeechInput            bool   `json:"showSpeechInput"`
	ShowSpeechOutputBrowser    bool   `json:"showSpeechOutputBrowser"`
	ShowSpeechOutputAzure      bool   `json:"showSpeechOutputAzure"`
	ShowChatHistoryBrowser     bool   `json:"showChatHistoryBrowser"`
	ShowChatHistoryCosmos      bool   `json:"showChatHistoryCosmos"`
	ShowAgenticRetrievalOption bool   `json:"showAgenticRetrievalOption"`
	RagSearchTextEmbeddings    bool   `json:"ragSearchTextEmbeddings"`
	RagSearchImageEmbeddings   bool   `json:"ragSearchImageEmbeddings"`
	RagSendTextSources         bool   `json:"ragSendTextSources"`
	RagSendImageSources        bool   `json:"ragSendImageSources"`
}

// frontendSettings serves GET /config.
func frontendSettings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, frontendConfig{
		DefaultReasoningEffort:  "medium",
		StreamingEnabled:        true,
		ShowVectorOption:        true,
		ShowChatHistoryBrowser:  true, // history lives in the browser, no backend involved
		RagSearchTextEmbeddings: true,
		RagSendTextSources:      true,
	})
}

// authSetup serves GET /auth_setup. The service runs without authentication;
// the frontend still probes this route on startup.
func authSetup(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"auth":     false,
		"provider": nil,
	})
}

// upload serves POST /upload. Document ingestion happens offline through the
// build command, never over HTTP.
func upload(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotImplemented, codeNotImplemented,
		"document upload is not supported; rebuild the vectorstore with the build command")
}
