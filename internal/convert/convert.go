// Package convert turns built documentation (HTML or Markdown) into the
// plaintext the corpus stores. Converted pages pass through a content filter
// that discards files too small to be useful and pages that are pure
// navigation.
package convert

import (
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// Filter decides which converted pages are kept.
type Filter struct {
	// MinBytes discards pages smaller than this many bytes of text.
	MinBytes int
	// RequiredKeywords marks a page as contentful when it contains at least
	// one of them; an empty list keeps every page large enough.
	RequiredKeywords []string
}

// Keep reports whether a converted page passes the filter.
func (f Filter) Keep(text string) bool {
	if len(text) < f.MinBytes {
		return false
	}
	if len(f.RequiredKeywords) == 0 {
		return true
	}
	for _, kw := range f.RequiredKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Elements whose text never belongs in the corpus.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"head":     true,
}

// Elements that end a text block.
var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true,
	"li": true, "ul": true, "ol": true, "dl": true, "dd": true, "dt": true,
	"table": true, "tr": true, "pre": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "footer": true, "nav": true,
}

// HTMLToText extracts the readable text of one HTML document.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skippedElements[n.Data] {
				return
			}
			if n.Data == "br" {
				sb.WriteByte('\n')
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			sb.WriteByte('\n')
		}
	}
	walk(doc)

	return normalizeText(sb.String()), nil
}

// MarkdownToText renders a Markdown document to plaintext.
func MarkdownToText(src []byte) (string, error) {
	md := goldmark.New()
	root := md.Parser().Parse(gmtext.NewReader(src))

	var sb strings.Builder
	err := gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			switch n.(type) {
			case *gmast.Paragraph, *gmast.Heading, *gmast.ListItem, *gmast.Blockquote:
				sb.WriteByte('\n')
			}
			return gmast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *gmast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *gmast.AutoLink:
			sb.Write(node.URL(src))
		case *gmast.FencedCodeBlock:
			writeCodeLines(&sb, node, src)
		case *gmast.CodeBlock:
			writeCodeLines(&sb, node, src)
		}
		return gmast.WalkContinue, nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to walk markdown: %w", err)
	}

	return normalizeText(sb.String()), nil
}

func writeCodeLines(sb *strings.Builder, node gmast.Node, src []byte) {
	lines := node.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(src))
	}
	sb.WriteByte('\n')
}

// normalizeText canonicalizes extracted text: NFC form, no trailing spaces,
// at most one blank line between blocks, exactly one trailing newline.
func normalizeText(s string) string {
	s = norm.NFC.String(s)

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := true // swallow leading blank lines
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	// Drop a trailing blank line kept by the loop.
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return ""
	}
	return strings.Join(out, "\n") + "\n"
}
