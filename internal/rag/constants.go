// Package rag constants.go defines the prompt template and the fixed
// response vocabulary shared by the answer endpoints.
package rag

import (
	"fmt"

	"github.com/bundesfaq/ragserver/internal/knowledge"
)

// systemPromptTemplate grounds the model in the retrieved context. The %s
// placeholder receives the concatenated context chunks.
const systemPromptTemplate = `You are a helpful assistant for question-answering tasks.
Use the retrieved context below to answer the user's question.

- If the answer is not in the context, say: "I don't know based on the provided documents."
- Be concise (max. 3 sentences).
- Ground your answer in the context, don't invent facts.

Context:
%s`

// ThoughtTitleSearch labels the retrieval step in the response envelope.
const ThoughtTitleSearch = "Recherche"

// sourcePreviewRunes is how much of each retrieved chunk is surfaced as a
// source citation.
const sourcePreviewRunes = 200

// followupQuestions are the static suggestions offered after an answer.
// The corpus is German FAQ data, so the suggestions are German too.
var followupQuestions = []string{
	"Können Sie mehr Details dazu erklären?",
	"Gibt es weitere Informationen zu diesem Thema?",
	"Welche rechtlichen Aspekte sind wichtig?",
}

// FollowupQuestions returns the follow-up suggestions for an answer.
// It returns a copy so callers cannot mutate the shared set.
func FollowupQuestions() []string {
	out := make([]string, len(followupQuestions))
	copy(out, followupQuestions)
	return out
}

// SearchThoughtDescription describes the retrieval step for the envelope.
func SearchThoughtDescription(found int) string {
	return fmt.Sprintf("Gefunden %d relevante Dokumente in der Wissensdatenbank", found)
}

// SourcePreviews renders retrieval results the way the frontend displays
// them: the first 200 runes of each chunk with a trailing ellipsis.
func SourcePreviews(results []knowledge.Result) []string {
	previews := make([]string, len(results))
	for i, r := range results {
		content := []rune(r.Document.Content)
		if len(content) > sourcePreviewRunes {
			content = content[:sourcePreviewRunes]
		}
		previews[i] = string(content) + "..."
	}
	return previews
}

// SourceCitations lists the origin of each retrieval result, falling back
// to the chunk ID when a chunk carries no source metadata.
func SourceCitations(results []knowledge.Result) []string {
	citations := make([]string, len(results))
	for i, r := range results {
		if source := r.Document.Metadata["source"]; source != "" {
			citations[i] = source
			continue
		}
		citations[i] = r.Document.ID
	}
	return citations
}
