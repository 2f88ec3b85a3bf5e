package tui

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bundesfaq/ragserver/internal/api"
)

// maxLineBytes bounds a single NDJSON line. The closing line carries the
// full answer plus every source preview, so it is far larger than deltas.
const maxLineBytes = 1 << 20

// healthTimeout bounds the startup health probe.
const healthTimeout = 5 * time.Second

// Client talks to a running ragserver over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client for the server at baseURL, e.g.
// "http://localhost:8000". The client carries no request timeout of its
// own; streaming calls are bounded by their context.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// Health mirrors the server's /health payload.
type Health struct {
	Status            string `json:"status"`
	VectorstoreLoaded bool   `json:"vectorstore_loaded"`
	Documents         int    `json:"documents"`
}

// Health probes the server's /health endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return nil, fmt.Errorf("building health request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reaching server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health returned %s", resp.Status)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}
	return &h, nil
}

// Stream starts a streaming chat request for question. The returned Stream
// yields one decoded NDJSON line per Next call; the caller must Close it.
// The request is bound to ctx, so canceling it aborts a blocked read.
func (c *Client) Stream(ctx context.Context, question string) (*Stream, error) {
	payload := api.ChatAppRequest{
		Messages: []api.Message{{Content: question, Role: api.RoleUser}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/stream", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reaching server: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Stream{body: resp.Body, scanner: scanner}, nil
}

// decodeAPIError turns a non-200 response into an error, preferring the
// server's error envelope message over the bare status line.
func decodeAPIError(resp *http.Response) error {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxLineBytes)).Decode(&envelope); err == nil && envelope.Error.Message != "" {
		return fmt.Errorf("server: %s", envelope.Error.Message)
	}
	return fmt.Errorf("server returned %s", resp.Status)
}

// Stream reads the NDJSON lines of one /chat/stream response.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next returns the next decoded line. It returns io.EOF once the stream is
// exhausted, and a plain error when the server aborts mid-stream with a
// flat {"error": ...} line.
func (s *Stream) Next() (*api.ChatAppResponse, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var fail struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(line, &fail); err == nil && fail.Error != "" {
			return nil, fmt.Errorf("server: %s", fail.Error)
		}

		var resp api.ChatAppResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			return nil, fmt.Errorf("decoding stream line: %w", err)
		}
		return &resp, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Close releases the underlying response body.
func (s *Stream) Close() error {
	return s.body.Close()
}
