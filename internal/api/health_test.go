package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// stubCollection is a Collection with a fixed document count.
type stubCollection int

func (c stubCollection) Count() int { return int(c) }

func getHealth(t *testing.T, srv *Server) healthStatus {
	t.Helper()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want %d", w.Code, http.StatusOK)
	}

	var status healthStatus
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding health body: %v", err)
	}
	return status
}

func TestHealth_Healthy(t *testing.T) {
	srv := testServer(&stubEngine{answerText: "ok"}, stubCollection(42))

	status := getHealth(t, srv)

	if status.Status != "healthy" {
		t.Errorf("status = %q, want %q", status.Status, "healthy")
	}
	if !status.VectorstoreLoaded {
		t.Error("vectorstore_loaded = false, want true")
	}
	if status.Documents != 42 {
		t.Errorf("documents = %d, want %d", status.Documents, 42)
	}
	if status.VectorstorePath != "/data/chroma" {
		t.Errorf("vectorstore_path = %q, want %q", status.VectorstorePath, "/data/chroma")
	}
}

func TestHealth_DegradedWithoutStore(t *testing.T) {
	srv := testServer(nil, nil)

	status := getHealth(t, srv)

	if status.Status != "degraded" {
		t.Errorf("status = %q, want %q", status.Status, "degraded")
	}
	if status.VectorstoreLoaded {
		t.Error("vectorstore_loaded = true, want false")
	}
	if status.Documents != 0 {
		t.Errorf("documents = %d, want 0", status.Documents)
	}
}

func TestHealth_DegradedWithoutEngine(t *testing.T) {
	// Store opened but model setup failed: still degraded, but the store
	// details are reported.
	srv := testServer(nil, stubCollection(7))

	status := getHealth(t, srv)

	if status.Status != "degraded" {
		t.Errorf("status = %q, want %q", status.Status, "degraded")
	}
	if !status.VectorstoreLoaded {
		t.Error("vectorstore_loaded = false, want true")
	}
	if status.Documents != 7 {
		t.Errorf("documents = %d, want %d", status.Documents, 7)
	}
}
