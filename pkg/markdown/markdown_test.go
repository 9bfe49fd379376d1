package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderKeepsAllowedMarkup(t *testing.T) {
	r := New()
	out, err := r.Render("# Fish robots\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\n- [x] done\n")
	require.NoError(t, err)

	assert.Contains(t, out, `<h1 id="fish-robots">Fish robots</h1>`)
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, "<td>1</td>")
	assert.Contains(t, out, `type="checkbox"`)
}

func TestRenderStripsScriptsAndHandlers(t *testing.T) {
	r := New()
	out, err := r.Render("<script>alert(1)</script>\n\n<p onclick=\"steal()\">hello</p>\n\n[x](javascript:alert(1))")
	require.NoError(t, err)

	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onclick")
	assert.NotContains(t, out, "javascript:")
	assert.Contains(t, out, "hello")
}

func TestPlainText(t *testing.T) {
	r := New()
	assert.Equal(t, "Title body text", r.PlainText("<h1>Title</h1>\n<p>body <em>text</em></p>"))
}
