package knowledge

import (
	"context"
	"errors"
	"strings"
	"testing"

	chromem "github.com/philippgille/chromem-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundesfaq/ragserver/internal/log"
)

// wordOverlapEmbedding embeds text as keyword counts, so similarity in tests
// is plain word overlap and fully deterministic.
func wordOverlapEmbedding() chromem.EmbeddingFunc {
	keywords := []string{"grundsteuer", "hebesatz", "hund", "wetter"}
	return func(_ context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		vec := make([]float32, len(keywords)+1)
		for i, kw := range keywords {
			vec[i] = float32(strings.Count(lower, kw))
		}
		// Constant component keeps keyword-free texts embeddable.
		vec[len(keywords)] = 1
		return vec, nil
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir(), wordOverlapEmbedding(), log.NewNop())
	require.NoError(t, err, "Open should not return error")
	return store
}

func seedDocuments(t *testing.T, store *Store) {
	t.Helper()

	docs := []Document{
		{
			ID:       "doc-1",
			Content:  "Die Grundsteuer wird von den Gemeinden erhoben.",
			Metadata: map[string]string{"source": "steuer.txt"},
		},
		{
			ID:       "doc-2",
			Content:  "Der Hebesatz unterscheidet sich je nach Gemeinde.",
			Metadata: map[string]string{"source": "steuer.txt"},
		},
		{
			ID:       "doc-3",
			Content:  "Der Hund spielt bei gutem Wetter im Garten.",
			Metadata: map[string]string{"source": "tiere.txt"},
		},
	}
	require.NoError(t, store.Add(context.Background(), docs))
}

func TestOpen_EmptyStore(t *testing.T) {
	store := openTestStore(t)

	assert.Equal(t, 0, store.Count(), "fresh store should be empty")

	results, err := store.Search(context.Background(), "Grundsteuer")
	require.NoError(t, err, "searching an empty store should not fail")
	assert.Empty(t, results)
}

func TestStore_AddAndSearch(t *testing.T) {
	store := openTestStore(t)
	seedDocuments(t, store)

	assert.Equal(t, 3, store.Count())

	results, err := store.Search(context.Background(), "Was ist die Grundsteuer?", WithTopK(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].Document.ID)
	assert.Equal(t, "Die Grundsteuer wird von den Gemeinden erhoben.", results[0].Document.Content)
	assert.Equal(t, "steuer.txt", results[0].Document.Metadata["source"])

	results, err = store.Search(context.Background(), "Was ist die Grundsteuer?", WithTopK(3))
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "doc-1", results[0].Document.ID, "best match should come first")
	for i := 1; i < len(results); i++ {
		assert.LessOrEqual(t, results[i].Similarity, results[i-1].Similarity,
			"results should be ordered by descending similarity")
	}
}

func TestStore_SearchClampsTopK(t *testing.T) {
	store := openTestStore(t)
	seedDocuments(t, store)

	results, err := store.Search(context.Background(), "Grundsteuer", WithTopK(50))
	require.NoError(t, err, "top-k above document count should be clamped, not fail")
	assert.Len(t, results, 3)
}

func TestStore_SearchFilter(t *testing.T) {
	store := openTestStore(t)
	seedDocuments(t, store)

	results, err := store.Search(context.Background(), "Hund",
		WithTopK(1),
		WithFilter("source", "tiere.txt"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-3", results[0].Document.ID)
}

func TestStore_AddValidation(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Add(context.Background(), nil), "adding nothing is a no-op")

	err := store.Add(context.Background(), []Document{{ID: "", Content: "Inhalt"}})
	require.Error(t, err, "documents need an id")
	assert.Equal(t, 0, store.Count())
}

func TestStore_AddPrecomputedEmbedding(t *testing.T) {
	// The embedding callback must not run when vectors are precomputed.
	failing := func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("embedding callback should not be called")
	}

	store, err := Open(t.TempDir(), failing, log.NewNop())
	require.NoError(t, err)

	err = store.Add(context.Background(), []Document{{
		ID:        "doc-1",
		Content:   "Die Grundsteuer wird von den Gemeinden erhoben.",
		Embedding: []float32{0.1, 0.2, 0.3, 0.4, 0.5},
	}})
	require.NoError(t, err, "precomputed embeddings should bypass the callback")
	assert.Equal(t, 1, store.Count())
}

func TestStore_Persistence(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, wordOverlapEmbedding(), log.NewNop())
	require.NoError(t, err)
	seedDocuments(t, store)
	require.NoError(t, store.Close())

	reopened, err := Open(dir, wordOverlapEmbedding(), log.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Count(), "documents should survive a reopen")

	results, err := reopened.Search(context.Background(), "Grundsteuer", WithTopK(1))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "doc-1", results[0].Document.ID)
}

func TestStore_Reset(t *testing.T) {
	store := openTestStore(t)
	seedDocuments(t, store)
	require.Equal(t, 3, store.Count())

	require.NoError(t, store.Reset())
	assert.Equal(t, 0, store.Count(), "reset should drop all documents")

	results, err := store.Search(context.Background(), "Grundsteuer")
	require.NoError(t, err)
	assert.Empty(t, results)

	// The store stays usable after a reset.
	err = store.Add(context.Background(), []Document{{
		ID:      "doc-neu",
		Content: "Die Grundsteuer ist neu geregelt.",
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Count())
}
