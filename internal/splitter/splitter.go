// Package splitter breaks inline script blocks out of HTML documents so
// each block can travel the rest of the pipeline as its own pseudo-file.
package splitter

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/Artur-/polymer-build/internal/document"
	"github.com/Artur-/polymer-build/internal/dom"
	"github.com/Artur-/polymer-build/internal/registry"
	"github.com/Artur-/polymer-build/internal/stream"
)

// compositeExt marks documents the splitter decomposes.
const compositeExt = ".html"

// extByType maps a script element's declared type attribute to the file
// extension of the extracted pseudo-file.
var extByType = map[string]string{
	"text/ecmascript-6":        "js",
	"application/javascript":   "js",
	"text/javascript":          "js",
	"application/x-typescript": "ts",
	"text/x-typescript":        "ts",
}

const defaultExt = "js"

// Splitter is a stream transform that extracts inline scripts from HTML
// documents into deterministic sibling pseudo-files, rewrites the parent
// to reference them via src, and records the relationship so the
// rejoiner can reassemble them later. It keeps no state of its own; all
// state lives in the shared registry.
type Splitter struct {
	reg *registry.Registry
	log *slog.Logger
}

// New returns a splitter bound to the given registry.
func New(reg *registry.Registry, log *slog.Logger) *Splitter {
	return &Splitter{reg: reg, log: log}
}

// Process implements stream.Transform. Documents that are not HTML, are
// empty, or contain no inline scripts pass through unchanged. Otherwise
// it emits one document per extracted block followed by the rewritten
// parent; the parent is not withheld waiting for its children.
func (s *Splitter) Process(ctx context.Context, doc document.Document, emit stream.Emit) error {
	if !strings.HasSuffix(doc.Path, compositeExt) || len(doc.Body) == 0 {
		return emit(doc)
	}

	tree, err := dom.Parse(doc.Body)
	if err != nil {
		return fmt.Errorf("split %s: %w", doc.Path, err)
	}

	// Only source-less scripts are split out. Style blocks stay inline.
	var inline []*html.Node
	for _, el := range dom.FindAll(tree, "script") {
		if _, ok := dom.Attr(el, "src"); !ok {
			inline = append(inline, el)
		}
	}
	if len(inline) == 0 {
		return emit(doc)
	}

	children := make([]document.Document, 0, len(inline))
	for i, el := range inline {
		name := fmt.Sprintf("%s_script_%d.%s", doc.Base(), i, scriptExt(el))
		childPath := document.Normalize(path.Join(doc.Dir(), name))
		if err := s.reg.RegisterPart(doc.Path, childPath); err != nil {
			return fmt.Errorf("split %s: %w", doc.Path, err)
		}
		content := dom.Text(el)
		dom.SetText(el, "")
		dom.SetAttr(el, "src", name)
		children = append(children, document.New(childPath, doc.Root, []byte(content)))
	}

	body, err := dom.Serialize(tree)
	if err != nil {
		return fmt.Errorf("split %s: %w", doc.Path, err)
	}

	s.log.Debug("split document", "path", doc.Path, "parts", len(children))

	// Emission happens only after every block registered and the parent
	// serialized, so a failed document never produces partial output.
	for _, child := range children {
		if err := emit(child); err != nil {
			return err
		}
	}
	return emit(doc.WithBody(body))
}

// scriptExt picks the pseudo-file extension for one inline block.
func scriptExt(el *html.Node) string {
	t, ok := dom.Attr(el, "type")
	if !ok {
		return defaultExt
	}
	if ext, ok := extByType[strings.ToLower(strings.TrimSpace(t))]; ok {
		return ext
	}
	return defaultExt
}
