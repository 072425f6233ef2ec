package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gtext "github.com/yuin/goldmark/text"
)

var (
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleRe  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	linesRe  = regexp.MustCompile(`\n{3,}`)
)

// stripHTML removes script/style blocks and markup, unescapes entities
// and collapses runs of whitespace, leaving readable plain text.
func stripHTML(src string) string {
	s := scriptRe.ReplaceAllString(src, " ")
	s = styleRe.ReplaceAllString(s, " ")

	// Block-level closers become line breaks so paragraph structure
	// survives for the chunker's separator preference.
	for _, tag := range []string{"</p>", "</div>", "</li>", "</tr>", "</h1>", "</h2>", "</h3>", "</h4>", "<br>", "<br/>", "<br />"} {
		s = strings.ReplaceAll(s, tag, tag+"\n")
	}

	s = tagRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = spaceRe.ReplaceAllString(s, " ")

	var out []string
	for _, line := range strings.Split(s, "\n") {
		out = append(out, strings.TrimSpace(line))
	}
	s = strings.Join(out, "\n")
	s = linesRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// markdownText parses markdown with goldmark and walks the AST
// collecting text content, dropping formatting.
func markdownText(src []byte) (string, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(gtext.NewReader(src))

	var sb strings.Builder
	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := n.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.Paragraph, *ast.Heading, *ast.ListItem:
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
		case *ast.FencedCodeBlock:
			for i := 0; i < t.Lines().Len(); i++ {
				line := t.Lines().At(i)
				sb.Write(line.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("parsing markdown: %w", err)
	}
	return strings.TrimSpace(sb.String()), nil
}

// csvText renders CSV rows as comma-joined lines.
func csvText(src []byte) (string, error) {
	r := csv.NewReader(bytes.NewReader(src))
	r.FieldsPerRecord = -1

	var sb strings.Builder
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parsing csv: %w", err)
		}
		sb.WriteString(strings.Join(record, ", "))
		sb.WriteByte('\n')
	}
	return sb.String(), nil
}
