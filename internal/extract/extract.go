// Package extract turns document sources into plain text ready for
// chunking. It supports PDF files, plain text files and web pages.
package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/ledongthuc/pdf"

	"github.com/bundesfaq/ragserver/internal/log"
)

const fetchTimeout = 30 * time.Second

var (
	// ErrUnsupportedKind indicates a source kind this package cannot handle.
	ErrUnsupportedKind = errors.New("unsupported source kind")

	// ErrNoText indicates a source that yielded no extractable text.
	ErrNoText = errors.New("no extractable text")
)

// Kind identifies how a source should be read.
type Kind string

const (
	// KindPDF reads a PDF file from disk, page by page.
	KindPDF Kind = "pdf"

	// KindText reads a plain text file from disk as-is.
	KindText Kind = "text"

	// KindURL fetches a web page and extracts its readable article text.
	KindURL Kind = "url"
)

// ParseKind converts a user-supplied string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindPDF:
		return KindPDF, nil
	case KindText:
		return KindText, nil
	case KindURL:
		return KindURL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
	}
}

// Extractor reads sources and returns their plain text.
type Extractor struct {
	logger log.Logger
	client *http.Client
}

// New creates an Extractor.
func New(logger log.Logger) *Extractor {
	return &Extractor{
		logger: logger,
		client: &http.Client{Timeout: fetchTimeout},
	}
}

// Extract returns the plain text of source. For KindPDF and KindText, source
// is a filesystem path; for KindURL it is an absolute URL. A source that
// yields only whitespace fails with ErrNoText.
func (e *Extractor) Extract(ctx context.Context, source string, kind Kind) (string, error) {
	var (
		text string
		err  error
	)

	switch kind {
	case KindPDF:
		text, err = e.extractPDF(ctx, source)
	case KindText:
		text, err = e.extractFile(source)
	case KindURL:
		text, err = e.extractURL(ctx, source)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("extract %s %q: %w", kind, source, ErrNoText)
	}
	return text, nil
}

// extractPDF reads every page of the PDF at path. Pages that cannot be
// decoded are logged and skipped so one broken page does not sink the
// whole document.
func (e *Extractor) extractPDF(ctx context.Context, path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %q: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("extract pdf %q: %w", path, err)
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := pageText(page)
		if err != nil {
			e.logger.Warn("skipping unreadable pdf page",
				"path", path,
				"page", i,
				"error", err)
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		b.WriteString(text)
		b.WriteString("\n")
	}

	e.logger.Debug("extracted pdf", "path", path, "pages", total)
	return b.String(), nil
}

// pageText extracts a single page. The PDF decoder panics on some malformed
// content streams; those become errors here so the caller can skip the page.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode page: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}

func (e *Extractor) extractFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file %q: %w", path, err)
	}
	return string(data), nil
}

// extractURL fetches the page and reduces it to its readable article text,
// dropping navigation, ads and markup.
func (e *Extractor) extractURL(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("fetch %q: unsupported scheme %q (use http or https)", rawURL, parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("fetch %q: missing host", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %q: %w", rawURL, err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch %q: unexpected status %s", rawURL, resp.Status)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("parse article %q: %w", rawURL, err)
	}

	e.logger.Debug("extracted url", "url", rawURL, "title", article.Title)
	return article.TextContent, nil
}
