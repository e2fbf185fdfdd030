// Package render runs the document to diagram pipeline used by the CLI,
// the HTTP server and the watcher: split, lay out, compose, draw.
package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ha1tch/uml-toolkit/internal/config"
	"github.com/ha1tch/uml-toolkit/pkg/design"
	"github.com/ha1tch/uml-toolkit/pkg/diagram"
)

// Format is an output file format.
type Format string

const (
	FormatSVG Format = "svg"
	FormatPNG Format = "png"
	FormatDOT Format = "dot" // Graphviz source
)

// ParseFormat accepts "svg", "png" and "dot" (alias "gv"),
// case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(s, "."))) {
	case FormatSVG:
		return FormatSVG, nil
	case FormatPNG:
		return FormatPNG, nil
	case FormatDOT, "gv":
		return FormatDOT, nil
	}
	return "", fmt.Errorf("unknown output format %q", s)
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatPNG:
		return "image/png"
	case FormatDOT:
		return "text/vnd.graphviz; charset=utf-8"
	}
	return "image/svg+xml"
}

// Kinds lists the diagrams drawn for a document, in output order.
var Kinds = []diagram.Kind{diagram.KindUseCase, diagram.KindClass}

// Renderer holds the palette, layout and raster settings applied to every
// diagram.
type Renderer struct {
	Palette  diagram.Palette
	Layout   func(kind diagram.Kind) diagram.LayoutOptions
	Measurer diagram.Measurer

	// Supersample is the PNG oversampling factor. Zero means
	// diagram.DefaultSupersample.
	Supersample int
}

// New creates a renderer from the configuration.
func New(cfg *config.Config) (*Renderer, error) {
	p, err := cfg.Palette()
	if err != nil {
		return nil, err
	}
	return &Renderer{
		Palette:     p,
		Layout:      cfg.LayoutOptions,
		Measurer:    diagram.DefaultMeasurer(),
		Supersample: cfg.Render.Supersample,
	}, nil
}

// Default creates a renderer with built-in settings.
func Default() *Renderer {
	return &Renderer{
		Palette:     diagram.DefaultPalette(),
		Layout:      diagram.DefaultLayoutOptions,
		Measurer:    diagram.DefaultMeasurer(),
		Supersample: diagram.DefaultSupersample,
	}
}

// WithPalette returns a copy of r drawing with p.
func (r *Renderer) WithPalette(p diagram.Palette) *Renderer {
	c := *r
	c.Palette = p
	return &c
}

// Graph returns the document's graph of the given kind.
func Graph(doc *design.Document, kind diagram.Kind) *diagram.Graph {
	useCase, class := diagram.FromDocument(doc)
	if kind == diagram.KindClass {
		return class
	}
	return useCase
}

// Scene lays out and composes one diagram of the document.
func (r *Renderer) Scene(ctx context.Context, doc *design.Document, kind diagram.Kind) (*diagram.Scene, *diagram.LayoutResult, error) {
	g := Graph(doc, kind)
	lr, err := diagram.Arrange(ctx, g, r.Layout(kind))
	if err != nil {
		return nil, nil, err
	}
	sc := diagram.Compose(g, lr, r.Palette, r.Measurer)
	sc.Title = doc.SystemName
	return sc, lr, nil
}

// Write renders one diagram in the given format to w. An empty diagram
// writes nothing.
func (r *Renderer) Write(ctx context.Context, w io.Writer, doc *design.Document, kind diagram.Kind, format Format) error {
	sc, _, err := r.Scene(ctx, doc, kind)
	if err != nil {
		return err
	}
	return r.WriteScene(ctx, w, sc, format)
}

// WriteScene draws a composed scene at its natural size. Images show the
// whole content even when it outgrows the scene's view box.
func (r *Renderer) WriteScene(ctx context.Context, w io.Writer, sc *diagram.Scene, format Format) error {
	if format == FormatDOT {
		return diagram.RenderDOT(w, sc)
	}
	v := diagram.NewView(sc.FitContent(diagram.ExportPadding))
	if format == FormatPNG {
		ss := r.Supersample
		if ss <= 0 {
			ss = diagram.DefaultSupersample
		}
		return diagram.RenderPNGSupersampled(ctx, w, v, ss)
	}
	return diagram.RenderSVG(ctx, w, v)
}

// Bytes renders one diagram into memory.
func (r *Renderer) Bytes(ctx context.Context, doc *design.Document, kind diagram.Kind, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Write(ctx, &buf, doc, kind, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OutputName is the export file name of a diagram, e.g.
// "Loja_Online_class.svg".
func OutputName(doc *design.Document, kind diagram.Kind, format Format) string {
	return design.ExportName(doc.SystemName, kind.String(), string(format))
}
