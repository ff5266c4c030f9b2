// Package registry is the shared bookkeeping between the splitter and
// the rejoiner. It records, per parent document, which child
// pseudo-files were extracted, which have come back with processed
// content, and whether the parent itself has come back. Completeness is
// decided under one lock and latched, so a record produces its rejoin
// snapshot exactly once no matter in which order the parent and its
// children arrive.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/Artur-/polymer-build/internal/document"
)

var (
	// ErrChildConflict reports a child path registered a second time,
	// under the same or a different parent.
	ErrChildConflict = errors.New("child path already registered")

	// ErrUnknownParent reports a parent handle for a path that was
	// never split.
	ErrUnknownParent = errors.New("parent path not tracked")

	// ErrUnknownChild reports part content for a path no record owns.
	ErrUnknownChild = errors.New("unknown child path")

	// ErrPartAlreadySet reports a part slot written twice. This is an
	// internal-consistency violation, not a normal update.
	ErrPartAlreadySet = errors.New("part content already set")

	// ErrParentAlreadySet reports a parent handle set twice before the
	// record completed.
	ErrParentAlreadySet = errors.New("parent handle already set")

	// ErrRecordSealed reports an update to a record that has already
	// completed and emitted its rejoined document.
	ErrRecordSealed = errors.New("record already rejoined")
)

// part is one extracted pseudo-file slot under a record.
type part struct {
	content []byte
	set     bool
}

// Record tracks one split relationship, keyed by the parent path.
type Record struct {
	parentPath string
	order      []string // child paths in document order
	parts      map[string]*part
	missing    int
	parent     *document.Document
	sealed     bool
}

// ParentPath returns the identity key of the record.
func (r *Record) ParentPath() string {
	return r.parentPath
}

func (r *Record) complete() bool {
	return r.missing == 0 && r.parent != nil
}

// Ready is the snapshot of a record at the moment it completed: the
// parent document as it arrived at the rejoiner plus the processed
// content of every child, keyed by child path.
type Ready struct {
	Parent document.Document
	Parts  map[string][]byte
}

// Registry is the ownership table shared by one splitter/rejoiner pair.
// It must not be shared across independent pairs whose documents may
// collide on parent paths.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
	owners  map[string]*Record // reverse index: child path -> record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		owners:  make(map[string]*Record),
	}
}

// getOrCreate returns the record for parentPath, creating an empty one
// on first use. Caller holds g.mu.
func (g *Registry) getOrCreate(parentPath string) *Record {
	rec, ok := g.records[parentPath]
	if !ok {
		rec = &Record{
			parentPath: parentPath,
			parts:      make(map[string]*part),
		}
		g.records[parentPath] = rec
	}
	return rec
}

// RegisterPart adds an unset slot for childPath under parentPath's
// record, creating the record on first use. Registering a child path
// twice fails: under a different parent it is an ownership conflict,
// under the same parent it means the parent was split a second time.
func (g *Registry) RegisterPart(parentPath, childPath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if owner, ok := g.owners[childPath]; ok {
		return fmt.Errorf("%w: %q already belongs to %q", ErrChildConflict, childPath, owner.parentPath)
	}
	rec := g.getOrCreate(parentPath)
	if rec.sealed {
		return fmt.Errorf("%w: cannot re-split %q", ErrRecordSealed, parentPath)
	}
	rec.parts[childPath] = &part{}
	rec.order = append(rec.order, childPath)
	rec.missing++
	g.owners[childPath] = rec
	return nil
}

// SetParentHandle stores the parent document once it reaches the
// rejoiner. The returned Ready is non-nil exactly when this call
// completed the record.
func (g *Registry) SetParentHandle(doc document.Document) (*Ready, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.records[doc.Path]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownParent, doc.Path)
	}
	if rec.sealed {
		return nil, fmt.Errorf("%w: parent %q arrived again", ErrRecordSealed, doc.Path)
	}
	if rec.parent != nil {
		return nil, fmt.Errorf("%w: %q", ErrParentAlreadySet, doc.Path)
	}
	rec.parent = &doc
	return g.sealIfComplete(rec), nil
}

// SetPartContent stores the processed payload of one child. The
// returned Ready is non-nil exactly when this call completed the
// record.
func (g *Registry) SetPartContent(childPath string, content []byte) (*Ready, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rec, ok := g.owners[childPath]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChild, childPath)
	}
	if rec.sealed {
		return nil, fmt.Errorf("%w: child %q arrived after %q was rejoined", ErrRecordSealed, childPath, rec.parentPath)
	}
	slot := rec.parts[childPath]
	if slot.set {
		return nil, fmt.Errorf("%w: %q", ErrPartAlreadySet, childPath)
	}
	slot.content = content
	slot.set = true
	rec.missing--
	return g.sealIfComplete(rec), nil
}

// sealIfComplete latches the completion transition. Caller holds g.mu.
func (g *Registry) sealIfComplete(rec *Record) *Ready {
	if !rec.complete() || rec.sealed {
		return nil
	}
	rec.sealed = true
	ready := &Ready{
		Parent: *rec.parent,
		Parts:  make(map[string][]byte, len(rec.parts)),
	}
	for p, slot := range rec.parts {
		ready.Parts[p] = slot.content
	}
	return ready
}

// IsTracked reports whether parentPath has a record.
func (g *Registry) IsTracked(parentPath string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.records[parentPath]
	return ok
}

// OwnerOf returns the parent path owning childPath, if any.
func (g *Registry) OwnerOf(childPath string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.owners[childPath]
	if !ok {
		return "", false
	}
	return rec.parentPath, true
}

// IsComplete reports whether parentPath's record has received its
// parent handle and every part.
func (g *Registry) IsComplete(parentPath string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[parentPath]
	return ok && rec.sealed
}

// Finalize reports every record that never completed. A pipeline run
// calls it after the stream drains; a non-nil error means some parent
// or child document was dropped before reaching the rejoiner, which
// would otherwise leak the record silently.
func (g *Registry) Finalize() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var errs []error
	paths := make([]string, 0, len(g.records))
	for p := range g.records {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		rec := g.records[p]
		if rec.sealed {
			continue
		}
		var missing []string
		for _, cp := range rec.order {
			if !rec.parts[cp].set {
				missing = append(missing, cp)
			}
		}
		if rec.parent == nil {
			missing = append(missing, p+" (parent)")
		}
		errs = append(errs, fmt.Errorf("split of %q never completed, still missing: %s", p, strings.Join(missing, ", ")))
	}
	return errors.Join(errs...)
}
