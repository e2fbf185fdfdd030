package diagram

import (
	"context"
	"errors"
	"math"
	"sort"
)

// SceneNode is a node with its resolved position and glyph.
type SceneNode struct {
	Node
	Pos    Point
	Placed bool // false means the layout never reached the node and it sits at the origin
	Glyph  Glyph
}

// Bounds returns the node's extent in diagram coordinates.
func (n SceneNode) Bounds() Rect {
	return n.Glyph.Bounds.Translate(n.Pos)
}

// exitPoint is where the ray from the node's center toward p leaves the
// node's outline: the ellipse of a use case, the glyph rectangle of any
// other node. It returns the center when p is the center.
func (n SceneNode) exitPoint(p Point) Point {
	d := p.Sub(n.Pos)
	if d.Len() == 0 {
		return n.Pos
	}
	if n.Group == GroupUseCase {
		k := math.Hypot(d.X/UseCaseRX, d.Y/UseCaseRY)
		return n.Pos.Add(d.Scale(1 / k))
	}

	r := n.Bounds()
	lo, hi := r.Min(), r.Max()
	t := math.Inf(1)
	switch {
	case d.X > 0:
		t = min(t, (hi.X-n.Pos.X)/d.X)
	case d.X < 0:
		t = min(t, (lo.X-n.Pos.X)/d.X)
	}
	switch {
	case d.Y > 0:
		t = min(t, (hi.Y-n.Pos.Y)/d.Y)
	case d.Y < 0:
		t = min(t, (lo.Y-n.Pos.Y)/d.Y)
	}
	return n.Pos.Add(d.Scale(max(t, 0)))
}

// inside reports whether p lies within the node's outline.
func (n SceneNode) inside(p Point) bool {
	if n.Group == GroupUseCase {
		d := p.Sub(n.Pos)
		return math.Hypot(d.X/UseCaseRX, d.Y/UseCaseRY) <= 1
	}
	return n.Bounds().Contains(p)
}

// Scene is a fully resolved diagram: positioned glyphs and edge segments.
// A Scene is immutable once composed; every layout change composes a new
// one.
type Scene struct {
	Kind    Kind
	Title   string
	Nodes   []SceneNode
	Edges   []EdgeSegment
	ViewBox Box
	Palette Palette
}

// Empty reports whether the scene has nothing to draw.
func (s *Scene) Empty() bool {
	return s == nil || len(s.Nodes) == 0
}

// Compose resolves a graph against a layout result. Unplaced nodes are
// kept at the origin; edges touching them are not drawn. Edge ends are
// clipped to the node outlines. A nil layout
// places nothing. When the layout carries no view box, the view box fits
// the glyph bounds.
func Compose(g *Graph, lr *LayoutResult, p Palette, m Measurer) *Scene {
	sc := &Scene{Kind: g.Kind, Palette: p}
	if g.Empty() {
		return sc
	}

	pos := func(id string) (Point, bool) {
		if lr == nil {
			return Point{}, false
		}
		return lr.Position(id)
	}

	sc.Nodes = make([]SceneNode, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		pt, placed := pos(n.ID)
		sc.Nodes = append(sc.Nodes, SceneNode{
			Node:   n,
			Pos:    pt,
			Placed: placed,
			Glyph:  BuildGlyph(n, p, m),
		})
	}
	sc.Edges = BuildEdges(g, pos)
	index := make(map[string]int, len(sc.Nodes))
	for i, n := range sc.Nodes {
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}
	for i := range sc.Edges {
		if e := &sc.Edges[i]; e.Visible {
			clipEdge(e, sc.Nodes[index[e.Source]], sc.Nodes[index[e.Target]])
		}
	}

	if lr != nil {
		sc.ViewBox = lr.ViewBox
	}
	if sc.ViewBox.Width <= 0 || sc.ViewBox.Height <= 0 {
		sc.ViewBox = sc.Bounds().Pad(DefaultColumnOptions().Padding)
	}
	return sc
}

// Bounds returns the union of every node's extent.
func (s *Scene) Bounds() Box {
	var b Box
	for _, n := range s.Nodes {
		r := n.Bounds()
		lo, hi := r.Min(), r.Max()
		b = b.Union(Box{MinX: lo.X, MinY: lo.Y, Width: hi.X - lo.X, Height: hi.Y - lo.Y})
	}
	return b
}

// ExportPadding surrounds the content when an export outgrows its view box.
const ExportPadding = 40

// FitContent returns the scene itself when every node lies within its
// view box, and otherwise a copy whose view box is the content bounds
// grown by padding. Static exports use it; the live force window keeps
// its fixed size.
func (s *Scene) FitContent(padding float64) *Scene {
	if s.Empty() {
		return s
	}
	content := s.Bounds()
	if s.ViewBox.ContainsBox(content) {
		return s
	}
	c := *s
	c.ViewBox = content.Pad(padding)
	return &c
}

// Overlap names two nodes whose extents intersect.
type Overlap struct {
	A, B string
	Area float64
}

// Overlaps lists every pair of placed nodes whose extents intersect,
// largest first. A settled layout normally has none.
func (s *Scene) Overlaps() []Overlap {
	var out []Overlap
	for i := 0; i < len(s.Nodes); i++ {
		if !s.Nodes[i].Placed {
			continue
		}
		for j := i + 1; j < len(s.Nodes); j++ {
			if !s.Nodes[j].Placed {
				continue
			}
			if a := RectOverlap(s.Nodes[i].Bounds(), s.Nodes[j].Bounds()); a > 0 {
				out = append(out, Overlap{A: s.Nodes[i].ID, B: s.Nodes[j].ID, Area: a})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Area > out[j].Area })
	return out
}

// View is one render request: a scene seen through a viewport on an
// output surface of Width×Height pixels.
type View struct {
	Scene    *Scene
	Viewport Viewport
	Width    int
	Height   int
}

// NewView shows the whole scene at its natural size.
func NewView(sc *Scene) View {
	v := View{Scene: sc, Viewport: NewViewport(sc.ViewBox)}
	v.Width, v.Height = naturalSize(sc.ViewBox)
	return v
}

func naturalSize(vb Box) (int, int) {
	w, h := int(vb.Width+0.5), int(vb.Height+0.5)
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	return w, h
}

// Surface receives drawing calls from Render.
type Surface interface {
	Begin(v View) error
	DrawEdge(e EdgeSegment) error
	DrawNode(n SceneNode) error
	End() error
}

// ErrNoSurface is returned by Render for a nil surface.
var ErrNoSurface = errors.New("diagram: nil surface")

// Render draws the view onto s: edges first so node glyphs cover the line
// ends, then nodes. An empty scene draws nothing and is not an error.
func Render(ctx context.Context, s Surface, v View) error {
	if v.Scene.Empty() {
		return nil
	}
	if s == nil {
		return ErrNoSurface
	}
	if v.Width <= 0 || v.Height <= 0 {
		v.Width, v.Height = naturalSize(v.Viewport.ViewBox)
	}

	if err := s.Begin(v); err != nil {
		return err
	}
	for _, e := range v.Scene.Edges {
		if !e.Visible {
			continue
		}
		if err := s.DrawEdge(e); err != nil {
			return err
		}
	}
	for i, n := range v.Scene.Nodes {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := s.DrawNode(n); err != nil {
			return err
		}
	}
	return s.End()
}
