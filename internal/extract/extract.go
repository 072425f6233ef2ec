package extract

import (
	"context"
	"fmt"
)

// Document is the extracted text of one source document plus the
// provenance fields the rest of the pipeline cares about.
type Document struct {
	Content string
	Meta    DocumentMeta
}

// DocumentMeta identifies where a document came from and what it was.
type DocumentMeta struct {
	Source  string // origin URL
	DocType string // "text", "html", "markdown", "csv", "json"
	Pages   int    // page count when the format has a notion of pages, else 0
}

// Extractor fetches a document by URL and returns its plain text.
// Format-specific parsers (PDF, DOCX, ...) plug in behind this interface;
// the pipeline never looks past Document.
type Extractor interface {
	Extract(ctx context.Context, url string) (*Document, error)
}

// Error reports a fetch or parse failure for a given URL.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
