// Package stream provides the transform abstraction documents flow
// through, plus the channel plumbing to chain, fork and merge stages.
// Delivery order is guaranteed within a single chain of Pipe calls but
// not across forked branches, so stages that correlate related
// documents must tolerate arbitrary interleavings.
package stream

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Artur-/polymer-build/internal/document"
)

// Emit delivers one output document downstream. It blocks until the
// document is accepted or the pipeline is cancelled.
type Emit func(document.Document) error

// Transform processes one input document at a time, calling emit zero
// or more times. Returning an error fails the item and aborts the run;
// a transform must not emit partial output for a failed item.
type Transform interface {
	Process(ctx context.Context, doc document.Document, emit Emit) error
}

// Func adapts a plain function to the Transform interface.
type Func func(ctx context.Context, doc document.Document, emit Emit) error

// Process implements Transform.
func (f Func) Process(ctx context.Context, doc document.Document, emit Emit) error {
	return f(ctx, doc, emit)
}

const chanBuf = 8

// Pipe runs t over every document from in on its own goroutine and
// returns the output channel. Items are processed one at a time to
// completion; an input is consumed only after its outputs were emitted.
func Pipe(ctx context.Context, g *errgroup.Group, t Transform, in <-chan document.Document) <-chan document.Document {
	out := make(chan document.Document, chanBuf)
	g.Go(func() error {
		defer close(out)
		emit := func(d document.Document) error {
			select {
			case out <- d:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case doc, ok := <-in:
				if !ok {
					return nil
				}
				if err := t.Process(ctx, doc, emit); err != nil {
					return fmt.Errorf("%s: %w", doc.Path, err)
				}
			}
		}
	})
	return out
}

// Fork splits a stream in two: documents matching pred go to the first
// channel, everything else to the second.
func Fork(ctx context.Context, g *errgroup.Group, in <-chan document.Document, pred func(document.Document) bool) (<-chan document.Document, <-chan document.Document) {
	match := make(chan document.Document, chanBuf)
	rest := make(chan document.Document, chanBuf)
	g.Go(func() error {
		defer close(match)
		defer close(rest)
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case doc, ok := <-in:
				if !ok {
					return nil
				}
				dst := rest
				if pred(doc) {
					dst = match
				}
				select {
				case dst <- doc:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
	})
	return match, rest
}

// Merge fans several streams into one, in arrival order. The output
// closes once every input has drained.
func Merge(ctx context.Context, g *errgroup.Group, ins ...<-chan document.Document) <-chan document.Document {
	out := make(chan document.Document, chanBuf)
	var wg sync.WaitGroup
	wg.Add(len(ins))
	for _, in := range ins {
		in := in
		g.Go(func() error {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case doc, ok := <-in:
					if !ok {
						return nil
					}
					select {
					case out <- doc:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
		})
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Sink drains in, handing each document to fn.
func Sink(ctx context.Context, g *errgroup.Group, in <-chan document.Document, fn func(document.Document) error) {
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case doc, ok := <-in:
				if !ok {
					return nil
				}
				if err := fn(doc); err != nil {
					return err
				}
			}
		}
	})
}
