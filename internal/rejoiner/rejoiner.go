// Package rejoiner reassembles a split document once the parent and all
// of its extracted parts have arrived, in whatever order the pipeline
// delivers them.
package rejoiner

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/Artur-/polymer-build/internal/document"
	"github.com/Artur-/polymer-build/internal/dom"
	"github.com/Artur-/polymer-build/internal/registry"
	"github.com/Artur-/polymer-build/internal/stream"
)

// Rejoiner is a stream transform that classifies every document by
// registry lookup: tracked parents and tracked children are absorbed
// into their record and produce no output until the record completes,
// at which point exactly one reassembled document is emitted. Anything
// untracked passes through untouched.
type Rejoiner struct {
	reg *registry.Registry
	log *slog.Logger
}

// New returns a rejoiner bound to the given registry.
func New(reg *registry.Registry, log *slog.Logger) *Rejoiner {
	return &Rejoiner{reg: reg, log: log}
}

// Process implements stream.Transform. The completion check lives in
// the registry and is latched, so the reassembled document is emitted
// exactly once regardless of arrival order. A child arriving after its
// record already emitted is an error; a child that was never registered
// is treated as an ordinary untracked document.
func (r *Rejoiner) Process(ctx context.Context, doc document.Document, emit stream.Emit) error {
	if r.reg.IsTracked(doc.Path) {
		ready, err := r.reg.SetParentHandle(doc)
		if err != nil {
			return fmt.Errorf("rejoin %s: %w", doc.Path, err)
		}
		if ready == nil {
			r.log.Debug("holding parent", "path", doc.Path)
			return nil
		}
		return r.rejoin(ready, emit)
	}

	if owner, ok := r.reg.OwnerOf(doc.Path); ok {
		ready, err := r.reg.SetPartContent(doc.Path, doc.Body)
		if err != nil {
			return fmt.Errorf("rejoin part %s: %w", doc.Path, err)
		}
		if ready == nil {
			r.log.Debug("holding part", "path", doc.Path, "parent", owner)
			return nil
		}
		return r.rejoin(ready, emit)
	}

	return emit(doc)
}

// rejoin inlines every stored part back into the parent tree and emits
// the single reassembled document.
func (r *Rejoiner) rejoin(ready *registry.Ready, emit stream.Emit) error {
	parent := ready.Parent
	tree, err := dom.Parse(parent.Body)
	if err != nil {
		return fmt.Errorf("rejoin %s: %w", parent.Path, err)
	}

	dir := parent.Dir()
	restored := 0
	for _, el := range dom.FindAll(tree, "script") {
		src, ok := dom.Attr(el, "src")
		if !ok {
			continue
		}
		content, ok := ready.Parts[document.Normalize(path.Join(dir, src))]
		if !ok {
			continue
		}
		dom.RemoveAttr(el, "src")
		dom.SetText(el, string(content))
		restored++
	}

	body, err := dom.Serialize(tree)
	if err != nil {
		return fmt.Errorf("rejoin %s: %w", parent.Path, err)
	}

	r.log.Debug("rejoined document", "path", parent.Path, "parts", restored)
	return emit(parent.WithBody(body))
}
