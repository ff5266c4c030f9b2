// Package stages holds optional pipeline stages that run around the
// split/rejoin core.
package stages

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"

	"github.com/Artur-/polymer-build/internal/document"
	"github.com/Artur-/polymer-build/internal/stream"
)

// Markdown renders .md sources to .html documents so they flow through
// the splitter like any other page. Non-markdown documents pass through
// unchanged.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown returns a markdown rendering stage.
func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New()}
}

// Process implements stream.Transform.
func (m *Markdown) Process(ctx context.Context, doc document.Document, emit stream.Emit) error {
	ext := strings.ToLower(doc.Ext())
	if ext != ".md" && ext != ".markdown" {
		return emit(doc)
	}
	var buf bytes.Buffer
	if err := m.md.Convert(doc.Body, &buf); err != nil {
		return fmt.Errorf("render markdown %s: %w", doc.Path, err)
	}
	out := strings.TrimSuffix(doc.Path, ext) + ".html"
	return emit(document.New(out, doc.Root, buf.Bytes()))
}
