// Package manifest records what a build produced.
package manifest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/zeebo/xxh3"

	"github.com/Artur-/polymer-build/internal/document"
)

// Filename is where a build writes its manifest, relative to the output
// directory.
const Filename = "build-manifest.json"

// Entry describes one output document.
type Entry struct {
	Path string `json:"path"`
	Size int    `json:"size"`
	Hash string `json:"hash"`
}

// Manifest accumulates entries as documents leave the pipeline. Writing
// the same path twice keeps the latest entry.
type Manifest struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// New returns an empty manifest.
func New() *Manifest {
	return &Manifest{entries: make(map[string]Entry)}
}

// Add records one output document.
func (m *Manifest) Add(doc document.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[doc.Path] = Entry{
		Path: doc.Path,
		Size: len(doc.Body),
		Hash: fmt.Sprintf("%016x", xxh3.Hash(doc.Body)),
	}
}

// Len returns the number of recorded entries.
func (m *Manifest) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Encode renders the manifest as JSON, entries sorted by path.
func (m *Manifest) Encode() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	b, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return b, nil
}
