package agent

import (
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// HTML renders the answer markdown to sanitized HTML suitable for direct
// embedding in a page.
func (a *Answer) HTML() string {
	return renderMarkdown(a.Text)
}

// HTML renders the message content to sanitized HTML.
func (m Message) HTML() string {
	return renderMarkdown(m.Content)
}

func renderMarkdown(text string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	doc := p.Parse([]byte(text))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.HrefTargetBlank,
	})
	raw := markdown.Render(doc, renderer)

	return string(bluemonday.UGCPolicy().SanitizeBytes(raw))
}
