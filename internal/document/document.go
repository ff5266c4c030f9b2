// Package document defines the unit of data that flows through the
// build pipeline.
package document

import (
	"path"
	"strings"
)

// Document is one in-flight file: a normalized slash-separated path,
// the payload bytes, and the root directory the path is relative to.
// Documents are values; transforms never mutate one they received,
// they construct new ones.
type Document struct {
	Path string
	Root string
	Body []byte
}

// New builds a Document with a normalized path.
func New(p, root string, body []byte) Document {
	return Document{Path: Normalize(p), Root: root, Body: body}
}

// WithBody returns a copy of d carrying a different payload.
func (d Document) WithBody(body []byte) Document {
	d.Body = body
	return d
}

// Dir returns the directory portion of the document path.
func (d Document) Dir() string {
	return path.Dir(d.Path)
}

// Base returns the final element of the document path.
func (d Document) Base() string {
	return path.Base(d.Path)
}

// Ext returns the path extension, including the dot.
func (d Document) Ext() string {
	return path.Ext(d.Path)
}

// Normalize converts p to the canonical slash-separated clean form used
// as identity everywhere split relationships are tracked.
func Normalize(p string) string {
	return path.Clean(strings.ReplaceAll(p, "\\", "/"))
}
