package deck

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

type lineStyle int

const (
	lineBody lineStyle = iota
	lineHeading
	lineBullet
)

type renderedLine struct {
	style lineStyle
	text  string
}

// renderMarkdownLines flattens a markdown answer into styled lines for
// PDF layout. Inline formatting is dropped; headings and list items
// keep their role.
func renderMarkdownLines(md string) []renderedLine {
	source := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))
	var lines []renderedLine
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			lines = append(lines, renderedLine{style: lineHeading, text: nodeText(node, source)})
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			lines = append(lines, renderedLine{style: lineBullet, text: nodeText(node, source)})
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph:
			if _, inList := node.Parent().(*ast.ListItem); inList {
				return ast.WalkContinue, nil
			}
			lines = append(lines, renderedLine{style: lineBody, text: nodeText(node, source)})
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return lines
}

func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
