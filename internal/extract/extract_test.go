package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected string
	}{
		{
			name:     "title element",
			html:     `<html><head><title>Summa Theologiae</title></head><body><h1>Other</h1></body></html>`,
			expected: "Summa Theologiae",
		},
		{
			name:     "h1 fallback",
			html:     `<html><body><h1>Natural Law</h1><p>text</p></body></html>`,
			expected: "Natural Law",
		},
		{
			name:     "no title at all",
			html:     `<html><body><p>text only</p></body></html>`,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := Extract("https://example.com/", strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, page.Title)
		})
	}
}

func TestExtractText(t *testing.T) {
	html := `<html><head><title>t</title><style>body{color:red}</style></head>
	<body>
		<nav>skip this nav</nav>
		<p>Aquinas wrote</p><p>on natural law.</p>
		<script>var x = 1;</script>
		<div>In the Summa.</div>
		<footer>skip footer</footer>
	</body></html>`

	page, err := Extract("https://example.com/", strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Aquinas wrote on natural law. In the Summa.", page.Text)
	assert.NotContains(t, page.Text, "skip")
	assert.NotContains(t, page.Text, "var x")
}

func TestExtractTextBlockBoundaries(t *testing.T) {
	// Adjacent blocks must not glue into one token.
	html := `<html><body><div>first</div><div>second</div></body></html>`
	page, err := Extract("https://example.com/", strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, "first second", page.Text)
}

func TestExtractLinks(t *testing.T) {
	html := `<html><body>
		<a href="/relative/path">rel</a>
		<a href="https://other.org/page#frag">abs</a>
		<a href="#top">anchor</a>
		<a href="javascript:void(0)">js</a>
		<a href="mailto:x@y.z">mail</a>
		<a href="ftp://files.example.com/f">ftp</a>
	</body></html>`

	page, err := Extract("https://example.com/base/", strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://example.com/relative/path",
		"https://other.org/page",
	}, page.Links)
}
