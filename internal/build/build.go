// Package build wires the pipeline together over a source tree: read,
// render markdown, split inline scripts, run per-language stages on the
// extracted pseudo-files, rejoin, optionally compress, write.
package build

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Artur-/polymer-build/internal/config"
	"github.com/Artur-/polymer-build/internal/document"
	"github.com/Artur-/polymer-build/internal/manifest"
	"github.com/Artur-/polymer-build/internal/registry"
	"github.com/Artur-/polymer-build/internal/rejoiner"
	"github.com/Artur-/polymer-build/internal/splitter"
	"github.com/Artur-/polymer-build/internal/stages"
	"github.com/Artur-/polymer-build/internal/stream"
)

// Builder runs one build over one source tree. A Builder owns its
// registry; two builds must never share one, since colliding parent
// paths would corrupt each other's records.
type Builder struct {
	cfg config.Config
	log *slog.Logger
	reg *registry.Registry
	man *manifest.Manifest

	// scriptStages run on the extracted pseudo-file branch, between
	// splitter and rejoiner. This is where per-language compilers slot
	// in; they must preserve document paths.
	scriptStages []stream.Transform
}

// New returns a Builder for one run.
func New(cfg config.Config, log *slog.Logger, scriptStages ...stream.Transform) *Builder {
	return &Builder{
		cfg:          cfg,
		log:          log,
		reg:          registry.New(),
		man:          manifest.New(),
		scriptStages: scriptStages,
	}
}

// isScriptPart matches the pseudo-files the splitter fans out, by the
// naming contract downstream stages rely on.
func isScriptPart(d document.Document) bool {
	return strings.Contains(d.Base(), "_script_") &&
		(strings.HasSuffix(d.Path, ".js") || strings.HasSuffix(d.Path, ".ts"))
}

// Run executes the build and blocks until the pipeline drains. It fails
// if any document fails, and after a clean drain it fails if any split
// relationship never completed.
func (b *Builder) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	src := b.walk(ctx, g)
	pages := stream.Pipe(ctx, g, stages.NewMarkdown(), src)
	split := stream.Pipe(ctx, g, splitter.New(b.reg, b.log), pages)

	// Extracted scripts travel their own branch. The merge back is
	// unordered, which is exactly what the rejoiner is built to absorb.
	scripts, rest := stream.Fork(ctx, g, split, isScriptPart)
	for _, st := range b.scriptStages {
		scripts = stream.Pipe(ctx, g, st, scripts)
	}
	joined := stream.Pipe(ctx, g, rejoiner.New(b.reg, b.log), stream.Merge(ctx, g, scripts, rest))

	out := joined
	if b.cfg.Compress {
		out = stream.Pipe(ctx, g, stages.NewCompress(b.cfg.CompressLevel), joined)
	}

	written := 0
	stream.Sink(ctx, g, out, func(doc document.Document) error {
		if err := b.write(doc); err != nil {
			return err
		}
		b.man.Add(doc)
		written++
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if err := b.reg.Finalize(); err != nil {
		return fmt.Errorf("incomplete build: %w", err)
	}
	if err := b.writeManifest(); err != nil {
		return err
	}

	b.log.Info("build complete", "src", b.cfg.SrcDir, "out", b.cfg.OutDir, "documents", written)
	return nil
}

// walk streams every regular file under the source directory.
func (b *Builder) walk(ctx context.Context, g *errgroup.Group) <-chan document.Document {
	out := make(chan document.Document, 8)
	g.Go(func() error {
		defer close(out)
		return filepath.WalkDir(b.cfg.SrcDir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(b.cfg.SrcDir, p)
			if err != nil {
				return err
			}
			body, err := os.ReadFile(p)
			if err != nil {
				return fmt.Errorf("read %s: %w", p, err)
			}
			doc := document.New(filepath.ToSlash(rel), b.cfg.SrcDir, body)
			select {
			case out <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	return out
}

func (b *Builder) write(doc document.Document) error {
	target := filepath.Join(b.cfg.OutDir, filepath.FromSlash(doc.Path))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", doc.Path, err)
	}
	if err := os.WriteFile(target, doc.Body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", doc.Path, err)
	}
	return nil
}

func (b *Builder) writeManifest() error {
	data, err := b.man.Encode()
	if err != nil {
		return err
	}
	target := filepath.Join(b.cfg.OutDir, manifest.Filename)
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
