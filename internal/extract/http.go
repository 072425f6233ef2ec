package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

const maxDocumentBytes = 32 << 20 // 32 MiB cap on fetched documents

// HTTPExtractor fetches documents over HTTP(S) and extracts plain text
// based on the response content type or URL extension.
type HTTPExtractor struct {
	client *http.Client
}

// NewHTTPExtractor creates an extractor with the given fetch timeout.
func NewHTTPExtractor(timeout time.Duration) *HTTPExtractor {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPExtractor{
		client: &http.Client{Timeout: timeout},
	}
}

func (e *HTTPExtractor) Extract(ctx context.Context, rawURL string) (*Document, error) {
	if rawURL == "" {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("empty document URL")}
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("invalid URL: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("fetch failed: %s", resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("reading body: %w", err)}
	}

	docType := detectType(resp.Header.Get("Content-Type"), rawURL)

	var content string
	switch docType {
	case "html":
		content = stripHTML(string(body))
	case "markdown":
		content, err = markdownText(body)
	case "csv":
		content, err = csvText(body)
	case "text", "json":
		content = string(body)
	default:
		return nil, &Error{URL: rawURL, Err: fmt.Errorf("unsupported document type %q", docType)}
	}
	if err != nil {
		return nil, &Error{URL: rawURL, Err: err}
	}

	return &Document{
		Content: content,
		Meta: DocumentMeta{
			Source:  rawURL,
			DocType: docType,
		},
	}, nil
}

// detectType maps a Content-Type header and URL path to a document type.
// The URL extension wins when the server sends a generic content type.
func detectType(contentType, rawURL string) string {
	ext := strings.ToLower(path.Ext(urlPath(rawURL)))
	switch ext {
	case ".md", ".markdown":
		return "markdown"
	case ".csv":
		return "csv"
	case ".html", ".htm":
		return "html"
	case ".json":
		return "json"
	case ".txt":
		return "text"
	case ".pdf", ".docx", ".doc", ".xlsx", ".pptx", ".eml", ".msg":
		return ext[1:]
	}

	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "text/html"):
		return "html"
	case strings.Contains(ct, "text/markdown"):
		return "markdown"
	case strings.Contains(ct, "text/csv"):
		return "csv"
	case strings.Contains(ct, "application/json"):
		return "json"
	case strings.Contains(ct, "application/pdf"):
		return "pdf"
	case strings.HasPrefix(ct, "text/"):
		return "text"
	case ct == "":
		return "text"
	}
	return strings.SplitN(ct, ";", 2)[0]
}

func urlPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Path
}
