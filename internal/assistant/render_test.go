package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender_Emphasis(t *testing.T) {
	assert.Equal(t, "<p><strong>bold</strong> and <em>italic</em></p>", Render("**bold** and *italic*"))
}

func TestRender_LineBreaks(t *testing.T) {
	out := Render("first line\nsecond line")
	assert.Contains(t, out, "first line<br")
	assert.Contains(t, out, "second line")

	paragraphs := Render("one\n\ntwo")
	assert.Equal(t, "<p>one</p>\n<p>two</p>", paragraphs)
}

func TestRender_EscapesHTML(t *testing.T) {
	out := Render(`<script>alert("x")</script> & <b>hi</b>`)
	assert.NotContains(t, out, "<script>")
	assert.NotContains(t, out, "<b>")
	assert.Contains(t, out, "&lt;script&gt;")
	assert.Contains(t, out, "&amp;")
}

func TestRender_IgnoresOtherMarkdown(t *testing.T) {
	tests := map[string]string{
		"link":    "[click](javascript:alert(1))",
		"image":   "![x](http://example.com/x.png)",
		"heading": "# Title",
		"list":    "- item",
		"code":    "`code`",
	}

	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			out := Render(input)
			assert.NotContains(t, out, "<a")
			assert.NotContains(t, out, "<img")
			assert.NotContains(t, out, "<h1")
			assert.NotContains(t, out, "<li")
			assert.NotContains(t, out, "<code")
		})
	}
}

func TestRender_Empty(t *testing.T) {
	assert.Equal(t, "", Render(""))
}
