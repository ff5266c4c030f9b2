package rejoiner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Artur-/polymer-build/internal/document"
	"github.com/Artur-/polymer-build/internal/dom"
	"github.com/Artur-/polymer-build/internal/registry"
	"github.com/Artur-/polymer-build/internal/splitter"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const srcBody = `<script>console.log(1)</script><script type="application/x-typescript">let x:number=1</script>`

// split runs the splitter over the canonical two-script page and
// returns the registry plus the three emitted documents.
func split(t *testing.T) (*registry.Registry, []document.Document) {
	t.Helper()
	reg := registry.New()
	s := splitter.New(reg, discard())
	var out []document.Document
	err := s.Process(context.Background(), document.New("a/index.html", "a", []byte(srcBody)), func(d document.Document) error {
		out = append(out, d)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 3)
	return reg, out
}

func feed(t *testing.T, r *Rejoiner, docs []document.Document) []document.Document {
	t.Helper()
	var out []document.Document
	for _, doc := range docs {
		err := r.Process(context.Background(), doc, func(d document.Document) error {
			out = append(out, d)
			return nil
		})
		require.NoError(t, err)
	}
	return out
}

func permutations(docs []document.Document) [][]document.Document {
	if len(docs) <= 1 {
		return [][]document.Document{docs}
	}
	var out [][]document.Document
	for i := range docs {
		rest := make([]document.Document, 0, len(docs)-1)
		rest = append(rest, docs[:i]...)
		rest = append(rest, docs[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]document.Document{docs[i]}, p...))
		}
	}
	return out
}

// assertRestored checks the reassembled page against the pre-split
// original: both scripts inline, no src attributes, contents intact.
func assertRestored(t *testing.T, doc document.Document) {
	t.Helper()
	assert.Equal(t, "a/index.html", doc.Path)

	tree, err := dom.Parse(doc.Body)
	require.NoError(t, err)
	scripts := dom.FindAll(tree, "script")
	require.Len(t, scripts, 2)

	wantText := []string{"console.log(1)", "let x:number=1"}
	for i, el := range scripts {
		_, hasSrc := dom.Attr(el, "src")
		assert.False(t, hasSrc, "script %d must not keep its src attribute", i)
		assert.Equal(t, wantText[i], dom.Text(el))
	}
	typ, ok := dom.Attr(scripts[1], "type")
	require.True(t, ok)
	assert.Equal(t, "application/x-typescript", typ)
}

func TestRoundTripUnderAnyArrivalOrder(t *testing.T) {
	_, docs := split(t)

	for i, order := range permutations(docs) {
		t.Run(fmt.Sprintf("order_%d", i), func(t *testing.T) {
			// Each permutation needs a fresh split so the registry
			// starts from scratch.
			reg, fresh := split(t)
			byPath := make(map[string]document.Document, len(fresh))
			for _, d := range fresh {
				byPath[d.Path] = d
			}
			ordered := make([]document.Document, len(order))
			for j, d := range order {
				ordered[j] = byPath[d.Path]
			}

			out := feed(t, New(reg, discard()), ordered)
			require.Len(t, out, 1, "exactly one reassembled document")
			assertRestored(t, out[0])
		})
	}
}

func TestScenarioChildParentChildOrder(t *testing.T) {
	reg, docs := split(t)
	c0, c1, parent := docs[0], docs[1], docs[2]

	out := feed(t, New(reg, discard()), []document.Document{c1, parent, c0})
	require.Len(t, out, 1)
	assertRestored(t, out[0])
}

func TestHeldDocumentsProduceNoOutput(t *testing.T) {
	reg, docs := split(t)
	r := New(reg, discard())

	out := feed(t, r, docs[:2]) // both children, parent still missing
	assert.Empty(t, out)
	assert.False(t, reg.IsComplete("a/index.html"))
}

func TestUntrackedPassthroughIsByteIdentical(t *testing.T) {
	r := New(registry.New(), discard())
	doc := document.New("a/vendor.js", "a", []byte("void 0;"))

	out := feed(t, r, []document.Document{doc})
	require.Len(t, out, 1)
	assert.Equal(t, doc.Path, out[0].Path)
	assert.Equal(t, doc.Body, out[0].Body)
}

func TestLateChildAfterEmissionIsRejected(t *testing.T) {
	reg, docs := split(t)
	r := New(reg, discard())

	out := feed(t, r, docs)
	require.Len(t, out, 1)

	err := r.Process(context.Background(), docs[0], func(document.Document) error {
		t.Fatal("late child must not trigger a second emission")
		return nil
	})
	require.ErrorIs(t, err, registry.ErrRecordSealed)
}

func TestParentArrivingTwiceBeforeCompletionIsRejected(t *testing.T) {
	reg, docs := split(t)
	r := New(reg, discard())
	parent := docs[2]

	out := feed(t, r, []document.Document{parent})
	assert.Empty(t, out)

	err := r.Process(context.Background(), parent, func(document.Document) error { return nil })
	require.ErrorIs(t, err, registry.ErrParentAlreadySet)
}

func TestProcessedChildContentWinsOverOriginal(t *testing.T) {
	// Downstream stages may rewrite a pseudo-file before it returns;
	// the rejoin must inline the processed bytes, not the originals.
	reg, docs := split(t)
	r := New(reg, discard())

	compiled := docs[1].WithBody([]byte("var x = 1;"))
	out := feed(t, r, []document.Document{docs[0], compiled, docs[2]})
	require.Len(t, out, 1)

	tree, err := dom.Parse(out[0].Body)
	require.NoError(t, err)
	scripts := dom.FindAll(tree, "script")
	require.Len(t, scripts, 2)
	assert.Equal(t, "var x = 1;", dom.Text(scripts[1]))
}
