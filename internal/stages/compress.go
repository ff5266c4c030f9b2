package stages

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/Artur-/polymer-build/internal/document"
	"github.com/Artur-/polymer-build/internal/stream"
)

// compressibleExts lists the text outputs worth precompressing.
var compressibleExts = map[string]bool{
	".html": true,
	".js":   true,
	".ts":   true,
	".css":  true,
	".json": true,
	".svg":  true,
}

// Compress emits a gzip sibling (<path>.gz) alongside each compressible
// output document, for servers that prefer precompressed assets.
type Compress struct {
	level int
}

// NewCompress returns a compression stage. An out-of-range level falls
// back to the gzip default.
func NewCompress(level int) *Compress {
	if level < gzip.BestSpeed || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	return &Compress{level: level}
}

// Process implements stream.Transform.
func (c *Compress) Process(ctx context.Context, doc document.Document, emit stream.Emit) error {
	if err := emit(doc); err != nil {
		return err
	}
	if !compressibleExts[strings.ToLower(doc.Ext())] || len(doc.Body) == 0 {
		return nil
	}
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, c.level)
	if err != nil {
		return fmt.Errorf("compress %s: %w", doc.Path, err)
	}
	if _, err := zw.Write(doc.Body); err != nil {
		return fmt.Errorf("compress %s: %w", doc.Path, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress %s: %w", doc.Path, err)
	}
	return emit(document.New(doc.Path+".gz", doc.Root, buf.Bytes()))
}
