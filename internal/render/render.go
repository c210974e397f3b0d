// ABOUTME: Markdown rendering for message content
// ABOUTME: Converts chat text to HTML with raw HTML and unsafe links stripped

package render

import (
	"bytes"
	"html"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Renderer turns chat markdown into HTML fragments. The zero value is not
// usable; call New.
type Renderer struct {
	md goldmark.Markdown
}

// New creates a renderer with the chat flavour of markdown: autolinks,
// strikethrough, and hard line breaks. goldmark's safe mode stays on, so raw
// HTML is omitted and javascript: links are dropped.
func New() *Renderer {
	return &Renderer{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
			goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
		),
	}
}

// HTML renders content. It falls back to escaped text if conversion fails.
func (r *Renderer) HTML(content string) string {
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(content), &buf); err != nil {
		return html.EscapeString(content)
	}
	return strings.TrimSpace(buf.String())
}
