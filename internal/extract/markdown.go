package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownText renders markdown as plain prose. Each block becomes its own
// paragraph; code and raw HTML are dropped.
func markdownText(data []byte) (string, error) {
	decoded, err := decodeText(data)
	if err != nil {
		return "", err
	}

	source := []byte(decoded)
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var buf strings.Builder
	walkMarkdown(doc, source, &buf)
	return buf.String(), nil
}

func walkMarkdown(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.RawHTML:
		return

	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteByte(' ')
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.AutoLink:
		buf.Write(n.Label(source))
		return

	case *ast.Image:
		// Alt text only.
		walkChildren(n, source, buf)
		return

	case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
		walkChildren(n, source, buf)
		buf.WriteString("\n\n")
		return

	case *ast.ThematicBreak:
		buf.WriteString("\n\n")
		return
	}

	walkChildren(node, source, buf)
}

func walkChildren(node ast.Node, source []byte, buf *strings.Builder) {
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkMarkdown(c, source, buf)
	}
}
