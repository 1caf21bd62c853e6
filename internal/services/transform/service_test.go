package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

const page = `<html><head><title>Apollo 11</title><meta property="og:title" content="Apollo 11 mission overview"></head>
<body>
<nav><a href="/">Home</a> | <a href="/about">About</a></nav>
<article>
<h1>Apollo 11</h1>
<p>Apollo 11 was the American spaceflight that first landed humans on the Moon. Commander Neil Armstrong and lunar module pilot Buzz Aldrin landed the Apollo Lunar Module Eagle on July 20, 1969.</p>
<p>Armstrong became the first person to step onto the Moon's surface six hours and thirty-nine minutes later. See the <a href="/wiki/Saturn_V">Saturn V</a> article.</p>
</article>
<footer>Copyright notice</footer>
<script>track()</script>
</body></html>`

func TestHTMLToMarkdown_ExtractsArticle(t *testing.T) {
	s := NewService(arbor.NewLogger())

	markdown, err := s.HTMLToMarkdown(page, "https://example.com")

	require.NoError(t, err)
	assert.Contains(t, markdown, "Apollo 11")
	assert.Contains(t, markdown, "Neil Armstrong")
	assert.Contains(t, markdown, "https://example.com/wiki/Saturn_V")
	assert.NotContains(t, markdown, "Copyright notice")
	assert.NotContains(t, markdown, "track()")
	assert.NotContains(t, markdown, "About")
	assert.NotContains(t, markdown, "\n\n\n")
}

func TestHTMLToMarkdown_ResolvesLinksAgainstPageURL(t *testing.T) {
	s := NewService(arbor.NewLogger())
	html := `<article><p>Read about the <a href="Saturn_V">Saturn V</a>, the <a href="/wiki/Eagle">Eagle</a> and
<a href="http://nasa.gov/apollo">NASA</a>.</p><img src="../img/landing.png" alt="Landing"></article>`

	markdown, err := s.HTMLToMarkdown(html, "https://example.com/wiki/Apollo_11")

	require.NoError(t, err)
	assert.Contains(t, markdown, "(https://example.com/wiki/Saturn_V)")
	assert.Contains(t, markdown, "(https://example.com/wiki/Eagle)")
	assert.Contains(t, markdown, "(http://nasa.gov/apollo)")
	assert.Contains(t, markdown, "(https://example.com/img/landing.png)")
	assert.NotContains(t, markdown, "%2F")
}

func TestHTMLToMarkdown_Empty(t *testing.T) {
	s := NewService(arbor.NewLogger())
	markdown, err := s.HTMLToMarkdown("   ", "")
	require.NoError(t, err)
	assert.Empty(t, markdown)
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Apollo 11 mission overview", Title(page))
	assert.Equal(t, "Plain", Title("<html><head><title> Plain </title></head></html>"))
}

func TestStripHTMLTags(t *testing.T) {
	got := stripHTMLTags("<p>Fish &amp; chips</p>\n<p>today</p>")
	assert.Equal(t, "Fish & chips today", got)
	assert.False(t, strings.Contains(got, "<"))
}
