// Package pdf rasterizes page thumbnails with go-fitz and assembles merged
// documents with pdfcpu.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	fitz "github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// Doc abstracts an opened document for rasterization. *fitz.Document satisfies it.
type Doc interface {
	NumPage() int
	ImageDPI(pageNumber int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Opener opens an in-memory PDF.
type Opener func(data []byte) (Doc, error)

func fitzOpen(data []byte) (Doc, error) {
	return fitz.NewFromMemory(data)
}

// Rendered is the result of rasterizing a document.
type Rendered struct {
	PageCount  int
	Thumbnails [][]byte
}

// Renderer turns every page of a PDF into a PNG thumbnail.
type Renderer struct {
	dpi  float64
	open Opener
}

// NewRenderer renders at scale times the native 72 DPI.
func NewRenderer(scale float64) *Renderer {
	if scale <= 0 {
		scale = 0.8
	}
	return &Renderer{dpi: 72 * scale, open: fitzOpen}
}

// WithOpener swaps the document backend.
func (r *Renderer) WithOpener(o Opener) *Renderer {
	r.open = o
	return r
}

// Render rasterizes all pages in order. Any page failure fails the document.
func (r *Renderer) Render(ctx context.Context, data []byte) (Rendered, error) {
	doc, err := r.open(data)
	if err != nil {
		return Rendered{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	out := Rendered{PageCount: n, Thumbnails: make([][]byte, 0, n)}
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return Rendered{}, err
		}
		img, err := doc.ImageDPI(i, r.dpi)
		if err != nil {
			return Rendered{}, fmt.Errorf("failed to render page %d: %w", i+1, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return Rendered{}, fmt.Errorf("failed to encode PNG: %w", err)
		}
		out.Thumbnails = append(out.Thumbnails, buf.Bytes())
	}

	log.Debug().
		Int("pages", n).
		Float64("dpi", r.dpi).
		Msg("rendered thumbnails")
	return out, nil
}
