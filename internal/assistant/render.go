package assistant

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/util"
)

// markdown understands paragraphs and emphasis only. Headings, lists, links,
// images, code and raw HTML are not parsed, so they render as escaped text.
var markdown = goldmark.New(
	goldmark.WithParser(parser.NewParser(
		parser.WithBlockParsers(util.Prioritized(parser.NewParagraphParser(), 1000)),
		parser.WithInlineParsers(util.Prioritized(parser.NewEmphasisParser(), 500)),
	)),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// Render converts a reply to HTML allowing bold, italic and line breaks.
func Render(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		// Never fall back to the unescaped text
		return "<p>" + string(util.EscapeHTML([]byte(text))) + "</p>"
	}
	return strings.TrimSpace(buf.String())
}
