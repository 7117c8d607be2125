package controllers

import (
	"bytes"
	"html/template"
	"log"

	"github.com/blavejr/finadvisor/models"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// raw HTML in model output is dropped by goldmark's default renderer
var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

func renderMarkdown(source string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		log.Printf("Warning: markdown rendering failed: %v", err)
		return template.HTML(template.HTMLEscapeString(source))
	}
	return template.HTML(buf.String())
}

type messageView struct {
	IsUser bool
	Text   string
	HTML   template.HTML
}

// user text is left for the template to escape; assistant text is rendered Markdown
func toMessageViews(messages []models.Message) []messageView {
	views := make([]messageView, len(messages))
	for i, m := range messages {
		if m.IsUser {
			views[i] = messageView{IsUser: true, Text: m.Content}
		} else {
			views[i] = messageView{HTML: renderMarkdown(m.Content)}
		}
	}
	return views
}
