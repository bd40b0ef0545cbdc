package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Widget Store</title>
  <style>body { color: red; }</style>
  <script>console.log("tracking");</script>
</head>
<body>
  <nav><a href="/home">Home</a><a href="/cart">Cart</a></nav>
  <h1>Welcome to the Widget Store</h1>
  <p>We sell the finest widgets.</p>
  <ul>
    <li>Red widget</li>
    <li>Blue widget</li>
  </ul>
  <p>Read our <a href="https://example.com/faq">FAQ</a> for details.</p>
  <a href="#top">Back to top</a>
  <noscript>Please enable JavaScript.</noscript>
</body>
</html>`

func TestExtractReadableText(t *testing.T) {
	text, err := extractReadableText(samplePage, 0)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(text, "Widget Store"))
	assert.Contains(t, text, "Welcome to the Widget Store")
	assert.Contains(t, text, "We sell the finest widgets.")
	assert.Contains(t, text, "- Red widget")
	assert.Contains(t, text, "- Blue widget")
	assert.Contains(t, text, "FAQ (https://example.com/faq)")
	assert.Contains(t, text, "Home (/home)")

	// Script, style, and noscript bodies never leak into the text.
	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "enable JavaScript")
}

func TestExtractFragmentLinksKeepTextOnly(t *testing.T) {
	text, err := extractReadableText(samplePage, 0)
	require.NoError(t, err)

	assert.Contains(t, text, "Back to top")
	assert.NotContains(t, text, "(#top)")
}

func TestExtractTruncates(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 500; i++ {
		sb.WriteString("<p>This paragraph repeats to make the page very long.</p>")
	}
	sb.WriteString("</body></html>")

	text, err := extractReadableText(sb.String(), 1000)
	require.NoError(t, err)

	assert.Contains(t, text, "[Content truncated: 1000 of ")
	assert.Less(t, len(text), 1200)
}

func TestExtractCollapsesBlankLines(t *testing.T) {
	text, err := extractReadableText("<html><body><div></div><div></div><div></div><p>content</p></body></html>", 0)
	require.NoError(t, err)

	assert.NotContains(t, text, "\n\n\n")
	assert.Contains(t, text, "content")
}

func TestExtractEmptyPage(t *testing.T) {
	text, err := extractReadableText("<html><body></body></html>", 0)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}
