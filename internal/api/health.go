package api

import "net/http"

// Collection is the slice of the vector store the health endpoint needs.
// *knowledge.Store implements it.
type Collection interface {
	Count() int
}

// healthStatus is the body of GET /health. Docker healthchecks and the
// frontend both read it, so the field names are part of the wire contract.
type healthStatus struct {
	Status            string `json:"status"`
	VectorstoreLoaded bool   `json:"vectorstore_loaded"`
	VectorstorePath   string `json:"vectorstore_path"`
	Documents         int    `json:"documents"`
}

// healthHandler reports whether the service can actually answer questions.
type healthHandler struct {
	store           Collection
	engine          Answerer
	vectorstorePath string
}

// health serves GET /health. It always answers 200 so probes can tell
// "degraded" from "down"; a missing vectorstore shows up in the body.
func (h *healthHandler) health(w http.ResponseWriter, _ *http.Request) {
	status := healthStatus{
		Status:          "healthy",
		VectorstorePath: h.vectorstorePath,
	}

	if h.store != nil {
		status.VectorstoreLoaded = true
		status.Documents = h.store.Count()
	}
	if h.store == nil || h.engine == nil {
		status.Status = "degraded"
	}

	writeJSON(w, http.StatusOK, status)
}
