package chunker

import (
	"strings"
	"testing"

	"docqa/internal/extract"
)

func testDoc(content string) *extract.Document {
	return &extract.Document{
		Content: content,
		Meta:    extract.DocumentMeta{Source: "https://example.com/doc.txt", DocType: "text"},
	}
}

func TestChunkEmptyDocument(t *testing.T) {
	c := New(500, 100)
	if got := c.Chunk(nil); got != nil {
		t.Errorf("nil doc: expected no segments, got %d", len(got))
	}
	if got := c.Chunk(testDoc("")); got != nil {
		t.Errorf("empty doc: expected no segments, got %d", len(got))
	}
}

func TestChunkShortDocumentIsSingleSegment(t *testing.T) {
	c := New(500, 100)
	segs := c.Chunk(testDoc("A short document."))
	if len(segs) != 1 {
		t.Fatalf("expected 1 segment, got %d", len(segs))
	}
	if segs[0].Text != "A short document." {
		t.Errorf("segment text altered: %q", segs[0].Text)
	}
}

func TestChunkSegmentSizing(t *testing.T) {
	// 5000 chars of unbroken prose with a space every few chars; size 500
	// with overlap 100 steps about 400 chars per segment, so roughly 13
	// segments cover the text.
	content := strings.Repeat("word one two three four five six sev ", 136)[:5000]
	c := New(500, 100)
	segs := c.Chunk(testDoc(content))

	if len(segs) < 12 || len(segs) > 14 {
		t.Errorf("expected about 13 segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if len(seg.Text) > 500 {
			t.Errorf("segment %d exceeds size: %d chars", i, len(seg.Text))
		}
		if seg.Text == "" {
			t.Errorf("segment %d is empty", i)
		}
	}
}

func TestChunkConsecutiveSegmentsOverlap(t *testing.T) {
	content := strings.Repeat("alpha beta gamma delta epsilon ", 100)
	c := New(200, 50)
	segs := c.Chunk(testDoc(content))
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i := 1; i < len(segs); i++ {
		// The tail carried from the previous segment must reappear at the
		// head of the next one.
		prev := segs[i-1].Text
		tail := prev[len(prev)-20:]
		if !strings.Contains(segs[i].Text, tail[:10]) && !strings.HasPrefix(segs[i].Text, lastWord(prev)) {
			t.Errorf("segment %d does not overlap with its predecessor", i)
		}
	}
}

func lastWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}

func TestChunkPrefersParagraphBreaks(t *testing.T) {
	para1 := strings.Repeat("a", 300)
	para2 := strings.Repeat("b", 300)
	c := New(500, 100)
	segs := c.Chunk(testDoc(para1 + "\n\n" + para2))

	if len(segs) != 2 {
		t.Fatalf("expected 2 segments split at the paragraph break, got %d", len(segs))
	}
	if !strings.HasPrefix(segs[0].Text, "a") || strings.Contains(segs[0].Text, "b") {
		t.Errorf("first segment crosses the paragraph break: %q", segs[0].Text[:20])
	}
	if !strings.HasPrefix(segs[1].Text, "b") {
		t.Errorf("second segment does not start at the second paragraph")
	}
}

func TestChunkFallsBackToCharacterSplit(t *testing.T) {
	// No separator at all: a single 1200-char run must still be split.
	content := strings.Repeat("x", 1200)
	c := New(500, 0)
	segs := c.Chunk(testDoc(content))
	if len(segs) < 3 {
		t.Fatalf("expected at least 3 segments, got %d", len(segs))
	}
	var joined strings.Builder
	for i, seg := range segs {
		if len(seg.Text) > 500 {
			t.Errorf("segment %d exceeds size: %d chars", i, len(seg.Text))
		}
		joined.WriteString(seg.Text)
	}
	if joined.Len() != 1200 {
		t.Errorf("character split lost text: got %d of 1200 chars", joined.Len())
	}
}

func TestChunkMetadata(t *testing.T) {
	content := strings.Repeat("some words here and there ", 60)
	c := New(200, 40)
	segs := c.Chunk(testDoc(content))
	if len(segs) < 2 {
		t.Fatalf("expected multiple segments, got %d", len(segs))
	}
	for i, seg := range segs {
		if seg.Meta.Source != "https://example.com/doc.txt" {
			t.Errorf("segment %d: wrong source %q", i, seg.Meta.Source)
		}
		if seg.Meta.DocType != "text" {
			t.Errorf("segment %d: wrong doc type %q", i, seg.Meta.DocType)
		}
		if seg.Meta.Index != i {
			t.Errorf("segment %d: index %d", i, seg.Meta.Index)
		}
		if seg.Meta.Count != len(segs) {
			t.Errorf("segment %d: count %d, want %d", i, seg.Meta.Count, len(segs))
		}
		if !seg.Meta.Tokens.Approximate {
			t.Errorf("segment %d: token count should be marked approximate", i)
		}
		if want := len(seg.Text) / 4; seg.Meta.Tokens.N != want {
			t.Errorf("segment %d: token estimate %d, want %d", i, seg.Meta.Tokens.N, want)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcdefg", 1},
		{strings.Repeat("a", 400), 100},
	}
	for _, tc := range cases {
		got := EstimateTokens(tc.text)
		if got.N != tc.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(tc.text), got.N, tc.want)
		}
		if !got.Approximate {
			t.Error("estimate must be marked approximate")
		}
	}
}
