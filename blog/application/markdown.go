package application

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var listItemRegex = regexp.MustCompile(`^(\s*)([-*+]|\d+[.)])\s`)

type relativeLinkTransformer struct {
	baseURL string
}

func (t *relativeLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		link, linkOk := n.(*ast.Link)
		img, imgOk := n.(*ast.Image)
		if !linkOk && !imgOk {
			return ast.WalkContinue, nil
		}

		dest := ""
		if linkOk {
			dest = string(link.Destination)
		} else if imgOk {
			dest = string(img.Destination)
		}

		if dest == "" || strings.HasPrefix(dest, "#") || !isRelativeLink(dest) {
			return ast.WalkContinue, nil
		}

		destFile := path.Base(dest)
		if imgOk {
			img.Destination = []byte(t.baseURL + "/images/" + destFile)
		} else if linkOk {
			// Links to other posts are written as files; route them to the post page.
			destFile = strings.TrimSuffix(destFile, ".md")
			destFile = strings.TrimSuffix(destFile, ".html")
			link.Destination = []byte(t.baseURL + "/blog/" + destFile)
		}

		return ast.WalkContinue, nil
	})
}

func isRelativeLink(dest string) bool {
	// Absolute path check
	if strings.HasPrefix(dest, "/") {
		if strings.HasPrefix(dest, "//") {
			return false
		}
		return true
	}

	if strings.HasPrefix(dest, "./") || strings.HasPrefix(dest, "../") {
		return true
	}

	if strings.Contains(dest, ":") {
		return false
	}

	return true
}

// MarkdownRenderer converts post content to HTML.
type MarkdownRenderer interface {
	Render(content string) (string, error)
}

type MarkdownRendererImpl struct {
	renderer goldmark.Markdown
}

// NewMarkdownRenderer builds a GFM renderer that resolves relative links and
// images against baseURL.
func NewMarkdownRenderer(baseURL string) MarkdownRenderer {
	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithASTTransformers(
				util.Prioritized(&relativeLinkTransformer{baseURL: strings.TrimRight(baseURL, "/")}, 100),
			),
		),
		goldmark.WithRendererOptions(
			html.WithXHTML(),
		),
	)

	return &MarkdownRendererImpl{
		renderer: renderer,
	}
}

func (r *MarkdownRendererImpl) Render(content string) (string, error) {
	var buf bytes.Buffer
	if err := r.renderer.Convert([]byte(splitParagraphs(content)), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}
	return buf.String(), nil
}

// splitParagraphs turns every line break into a paragraph break so that each
// line of post content renders as its own block. Fenced code, consecutive list
// items and table rows keep their single line breaks.
func splitParagraphs(content string) string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var b strings.Builder
	inFence := false
	prevKind := lineBlank
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		kind := classifyLine(trimmed, line)

		if i > 0 {
			b.WriteByte('\n')
			keepTight := inFence ||
				prevKind == lineBlank ||
				kind == lineBlank ||
				(prevKind == kind && (kind == lineList || kind == lineTable))
			if !keepTight {
				b.WriteByte('\n')
			}
		}
		b.WriteString(line)

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			kind = lineFence
		}
		if inFence && kind != lineFence {
			kind = lineFence
		}
		prevKind = kind
	}
	return b.String()
}

type lineKind int

const (
	lineBlank lineKind = iota
	lineText
	lineList
	lineTable
	lineFence
)

func classifyLine(trimmed, raw string) lineKind {
	switch {
	case trimmed == "":
		return lineBlank
	case listItemRegex.MatchString(raw):
		return lineList
	case strings.HasPrefix(trimmed, "|"):
		return lineTable
	default:
		return lineText
	}
}
