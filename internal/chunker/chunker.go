package chunker

import (
	"strings"

	"docqa/internal/extract"
)

// DefaultSeparators is the split preference order: paragraph breaks
// first, then line breaks, then spaces, then bare characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// TokenCount is a token estimate for a piece of text. Approximate is set
// when the count comes from the chars/4 heuristic rather than a real
// tokenizer; callers that need precise budgets must check it.
type TokenCount struct {
	N           int
	Approximate bool
}

// SegmentMeta carries the provenance of one segment.
type SegmentMeta struct {
	Source  string
	DocType string
	Index   int // 0-based position within the document
	Count   int // total segments produced from the document
	Tokens  TokenCount
	Page    int // 0 when the source format has no pages
}

// Segment is a contiguous slice of a document's text, the unit that gets
// embedded and stored.
type Segment struct {
	Text string
	Meta SegmentMeta
}

// Chunker splits document text into overlapping segments.
type Chunker struct {
	size       int
	overlap    int
	separators []string
}

// New creates a Chunker. overlap must be smaller than size; that is
// enforced by config validation, not here.
func New(size, overlap int) *Chunker {
	return &Chunker{
		size:       size,
		overlap:    overlap,
		separators: DefaultSeparators,
	}
}

// Chunk splits the document into segments of at most size characters
// wherever a separator allows it, with consecutive segments overlapping
// by roughly overlap characters. Empty content yields no segments.
func (c *Chunker) Chunk(doc *extract.Document) []Segment {
	if doc == nil || doc.Content == "" {
		return nil
	}

	pieces := c.splitText(doc.Content, c.separators)

	segments := make([]Segment, len(pieces))
	for i, text := range pieces {
		segments[i] = Segment{
			Text: text,
			Meta: SegmentMeta{
				Source:  doc.Meta.Source,
				DocType: doc.Meta.DocType,
				Index:   i,
				Count:   len(pieces),
				Tokens:  EstimateTokens(text),
			},
		}
	}
	return segments
}

// EstimateTokens returns the chars/4 token approximation.
func EstimateTokens(text string) TokenCount {
	return TokenCount{N: len(text) / 4, Approximate: true}
}

// splitText splits on the first separator present in the text, recursing
// into the remaining separators for any piece still larger than size.
func (c *Chunker) splitText(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	splits := splitOn(text, sep)

	var chunks []string
	var good []string
	for _, s := range splits {
		if len(s) < c.size {
			good = append(good, s)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, c.mergeSplits(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, s)
		} else {
			chunks = append(chunks, c.splitText(s, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, c.mergeSplits(good, sep)...)
	}
	return chunks
}

// splitOn splits text by sep; the empty separator splits into runes.
func splitOn(text, sep string) []string {
	if sep == "" {
		runes := []rune(text)
		out := make([]string, len(runes))
		for i, r := range runes {
			out[i] = string(r)
		}
		return out
	}
	var out []string
	for _, s := range strings.Split(text, sep) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mergeSplits greedily joins small splits up to size characters, carrying
// a tail of up to overlap characters into the next chunk.
func (c *Chunker) mergeSplits(splits []string, sep string) []string {
	sepLen := len(sep)

	var docs []string
	var current []string
	total := 0

	for _, s := range splits {
		add := len(s)
		if len(current) > 0 {
			add += sepLen
		}
		if total+add > c.size && len(current) > 0 {
			if doc := strings.Join(current, sep); doc != "" {
				docs = append(docs, doc)
			}
			// Drop leading splits until the carried tail fits the overlap
			// budget and leaves room for the incoming split.
			for total > c.overlap || (total+add > c.size && total > 0) {
				drop := len(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
				add = len(s)
				if len(current) > 0 {
					add += sepLen
				}
			}
		}
		current = append(current, s)
		total += add
	}
	if doc := strings.Join(current, sep); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}
