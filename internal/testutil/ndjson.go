package testutil

import (
	"encoding/json"
	"strings"
	"testing"
)

// NDJSONLines splits a newline-delimited JSON body into its documents,
// failing the test on any line that is not valid JSON. Trailing newlines
// and blank lines are ignored.
func NDJSONLines(t *testing.T, body string) []json.RawMessage {
	t.Helper()

	var lines []json.RawMessage
	for i, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !json.Valid([]byte(line)) {
			t.Fatalf("ndjson line %d is not valid JSON: %q", i+1, line)
		}
		lines = append(lines, json.RawMessage(line))
	}
	return lines
}

// DecodeNDJSONLine unmarshals one NDJSON line into v, failing the test on
// malformed input.
func DecodeNDJSONLine(t *testing.T, line json.RawMessage, v any) {
	t.Helper()

	if err := json.Unmarshal(line, v); err != nil {
		t.Fatalf("decode ndjson line %q: %v", line, err)
	}
}
