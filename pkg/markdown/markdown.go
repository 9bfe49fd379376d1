// Package markdown converts user-authored markdown into sanitized HTML.
package markdown

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var allowedTags = []string{
	"h1", "h2", "h3", "h4", "h5", "h6", "div", "p", "span", "a", "br", "strong", "em", "s", "strike", "del",
	"ul", "ol", "li", "table", "thead", "tbody", "th", "tr", "td", "img", "image", "audio", "video", "input",
	"pre", "code", "blockquote", "figure", "figcaption", "abbr", "details", "summary", "cite", "sub", "sup",
	"time", "address", "hr", "section",
}

// Renderer renders markdown and strips everything outside the allow-list.
type Renderer struct {
	md     goldmark.Markdown
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// New constructs a renderer with tables, footnotes, task lists and heading ids enabled.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Footnote),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
		),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	return &Renderer{md: md, policy: newPolicy(), strict: bluemonday.StrictPolicy()}
}

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs("id").Globally()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("type", "value", "checked", "disabled").OnElements("input")
	p.AllowAttrs("class").OnElements("code", "div", "span")
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("src", "controls").OnElements("audio", "video")
	p.AllowStandardURLs()
	return p
}

// Render returns sanitized HTML for the given markdown source.
func (r *Renderer) Render(source string) (string, error) {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// PlainText strips every tag from rendered HTML, leaving collapsed text suitable for snippets.
func (r *Renderer) PlainText(htmlSource string) string {
	return strings.Join(strings.Fields(r.strict.Sanitize(htmlSource)), " ")
}
