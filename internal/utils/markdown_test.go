package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderCommentStripsUnsafeMarkup(t *testing.T) {
	out := string(RenderComment("hi <script>alert(1)</script>\nsee https://example.com"))
	assert.NotContains(t, out, "<script>")
	assert.Contains(t, out, `href="https://example.com"`)
	assert.Contains(t, out, "<br")
}

func TestRenderMarkdownEmbedsYouTube(t *testing.T) {
	out := string(RenderMarkdown("# Demo\n\nhttps://youtu.be/abc123\n\n![shot](https://img.example/a.png)"))
	assert.Contains(t, out, "https://www.youtube.com/embed/abc123")
	assert.Contains(t, out, `loading="lazy"`)
}

func TestPlainExcerpt(t *testing.T) {
	assert.Equal(t, "Hello world", PlainExcerpt("<p>Hello   <b>world</b></p>", 50))
	long := "<p>" + strings.Repeat("a", 20) + "</p>"
	assert.Equal(t, strings.Repeat("a", 10)+"…", PlainExcerpt(long, 10))
}
