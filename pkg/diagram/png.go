// Raster rendering via gogpu/gg.
// Draws at a multiple of the target size and downsamples for smoother
// edges.

package diagram

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/draw"
)

// DefaultSupersample is the render scale used before downsampling.
const DefaultSupersample = 2

// PNGSurface rasterizes a scene. Text is projected by hand because gg
// draws glyphs in device space.
type PNGSurface struct {
	// Supersample is the oversampling factor. Values below 1 mean 1.
	Supersample int

	dc      *gg.Context
	view    View
	w, h    float64 // device size
	scale   float64 // device pixels per diagram unit
	palette Palette
	out     image.Image
	err     error
}

// NewPNGSurface returns a surface with the default oversampling.
func NewPNGSurface() *PNGSurface {
	return &PNGSurface{Supersample: DefaultSupersample}
}

// Begin implements Surface.
func (s *PNGSurface) Begin(v View) error {
	ss := max(1, s.Supersample)
	s.view = v
	s.palette = v.Scene.Palette
	s.w, s.h = float64(v.Width*ss), float64(v.Height*ss)
	s.scale = v.Viewport.PixelScale(s.w, s.h)
	s.err = nil

	s.dc = gg.NewContext(v.Width*ss, v.Height*ss)
	bg := s.palette.Background
	if bg == "" {
		bg = "#ffffff"
	}
	s.dc.ClearWithColor(gg.Hex(bg))
	return nil
}

func (s *PNGSurface) project(p Point) Point {
	return s.view.Viewport.Project(p, s.w, s.h)
}

func (s *PNGSurface) check(err error) {
	if err != nil && s.err == nil {
		s.err = err
	}
}

// DrawEdge implements Surface.
func (s *PNGSurface) DrawEdge(e EdgeSegment) error {
	a, b := s.project(e.From), s.project(e.To)
	c := gg.Hex(s.palette.LinkColor)
	s.dc.SetRGBA(c.R, c.G, c.B, LinkOpacity)
	s.dc.SetLineWidth(LinkWidth * s.scale)
	s.dc.DrawLine(a.X, a.Y, b.X, b.Y)
	s.check(s.dc.Stroke())

	if !e.Arrow() {
		return s.err
	}
	tip, left, right, ok := ArrowHead(e.From, e.To)
	if !ok {
		return s.err
	}
	tip, left, right = s.project(tip), s.project(left), s.project(right)
	s.dc.MoveTo(left.X, left.Y)
	s.dc.LineTo(tip.X, tip.Y)
	s.dc.LineTo(right.X, right.Y)
	s.dc.SetHexColor(s.palette.ArrowStroke)
	s.dc.SetLineWidth(LinkWidth * s.scale)
	s.check(s.dc.Stroke())
	return s.err
}

// DrawNode implements Surface.
func (s *PNGSurface) DrawNode(n SceneNode) error {
	for _, p := range n.Glyph.Prims {
		s.primitive(n.Pos, p)
	}
	return s.err
}

func (s *PNGSurface) primitive(origin Point, p Primitive) {
	at := func(x, y float64) Point { return s.project(origin.Add(Point{x, y})) }

	switch p.Kind {
	case PrimCircle:
		c := at(p.X, p.Y)
		s.dc.DrawCircle(c.X, c.Y, p.RX*s.scale)
		s.paint(p)
	case PrimEllipse:
		c := at(p.X, p.Y)
		s.dc.DrawEllipse(c.X, c.Y, p.RX*s.scale, p.RY*s.scale)
		s.paint(p)
	case PrimRect:
		tl := at(p.X, p.Y)
		s.dc.DrawRectangle(tl.X, tl.Y, p.W*s.scale, p.H*s.scale)
		s.paint(p)
	case PrimLine:
		a, b := at(p.X, p.Y), at(p.X2, p.Y2)
		s.dc.DrawLine(a.X, a.Y, b.X, b.Y)
		s.paint(p)
	case PrimText:
		face, err := faceFor(p.Font, p.FontSize*s.scale)
		if err != nil {
			s.check(err)
			return
		}
		pt := at(p.X, p.Y)
		s.dc.SetFont(face)
		s.dc.SetHexColor(p.Fill)
		ax := 0.0
		if p.Anchor == AnchorMiddle {
			ax = 0.5
		}
		s.dc.DrawStringAnchored(p.Text, pt.X, pt.Y, ax, 0)
	}
}

// paint fills and then strokes the current path.
func (s *PNGSurface) paint(p Primitive) {
	if p.Fill != "" {
		s.dc.SetHexColor(p.Fill)
		s.check(s.dc.FillPreserve())
	}
	if p.Stroke != "" {
		s.dc.SetHexColor(p.Stroke)
		s.dc.SetLineWidth(p.StrokeWidth * s.scale)
		s.check(s.dc.StrokePreserve())
	}
	s.dc.ClearPath()
}

// End implements Surface. It downsamples the oversampled image to the
// requested size.
func (s *PNGSurface) End() error {
	defer func() {
		_ = s.dc.Close()
	}()
	if s.err != nil {
		return s.err
	}
	src := s.dc.Image()
	dst := image.NewRGBA(image.Rect(0, 0, s.view.Width, s.view.Height))
	if max(1, s.Supersample) == 1 {
		draw.Copy(dst, image.Point{}, src, src.Bounds(), draw.Src, nil)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)
	}
	s.out = dst
	return nil
}

// Image returns the rendered image after a successful Render.
func (s *PNGSurface) Image() image.Image { return s.out }

type rasterFaceKey struct {
	style FontStyle
	px    float64
}

var (
	fontSources = sync.OnceValues(loadFontSources)
	facesMu     sync.Mutex
	faces       = make(map[rasterFaceKey]text.Face)
)

func loadFontSources() (map[FontStyle]*text.FontSource, error) {
	out := make(map[FontStyle]*text.FontSource, 3)
	for _, st := range []FontStyle{FontSans, FontSansBold, FontMono} {
		src, err := text.NewFontSource(st.TTF())
		if err != nil {
			return nil, fmt.Errorf("load font: %w", err)
		}
		out[st] = src
	}
	return out, nil
}

// faceFor returns a cached face at a device pixel size, rounded to a
// quarter pixel so zooming does not grow the cache without bound.
func faceFor(style FontStyle, px float64) (text.Face, error) {
	srcs, err := fontSources()
	if err != nil {
		return nil, err
	}
	px = math.Max(1, math.Round(px*4)/4)
	key := rasterFaceKey{style, px}

	facesMu.Lock()
	defer facesMu.Unlock()
	if f, ok := faces[key]; ok {
		return f, nil
	}
	f := srcs[style].Face(px)
	faces[key] = f
	return f, nil
}

// RenderPNG rasterizes the view with the default oversampling and writes
// it as PNG to w. An empty scene writes nothing.
func RenderPNG(ctx context.Context, w io.Writer, v View) error {
	return RenderPNGSupersampled(ctx, w, v, DefaultSupersample)
}

// RenderPNGSupersampled is RenderPNG drawing at supersample times the
// output size before downsampling. Factors below 1 mean 1.
func RenderPNGSupersampled(ctx context.Context, w io.Writer, v View, supersample int) error {
	s := &PNGSurface{Supersample: supersample}
	if err := Render(ctx, s, v); err != nil {
		return err
	}
	if s.Image() == nil {
		return nil
	}
	return png.Encode(w, s.Image())
}
