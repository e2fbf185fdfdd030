package diagram

import "math"

// Generalization arrowhead geometry. The marker is 10 units long and 10
// wide, scaled by the link stroke width, with its tip on the end of the
// link.
const (
	MarkerID    = "arrow-generalization"
	MarkerRefX  = 10
	LinkWidth   = 1.5
	LinkOpacity = 0.8
	arrowLength = 10 * LinkWidth
	arrowHalfW  = 5 * LinkWidth

	arrowGap   = 2               // between the tip and the target outline
	arrowNudge = 2 * arrowLength // furthest a tip is pulled back to clear the target
)

// EdgeSegment is an edge resolved against node positions.
type EdgeSegment struct {
	Source, Target string
	Type           EdgeType
	From, To       Point

	// Visible is false when either endpoint has no position yet. Such a
	// segment is degenerate and renderers skip it.
	Visible bool
}

// Arrow reports whether the segment ends in a hollow arrowhead.
func (e EdgeSegment) Arrow() bool {
	return e.Type == EdgeGeneralization
}

// PositionFunc resolves a node id to its current center.
type PositionFunc func(id string) (Point, bool)

// BuildEdges resolves every edge of g center to center. Edges are only
// ever built from a Graph, so both endpoints are known nodes; an endpoint
// without a position yields an invisible segment. Compose clips the
// segments to the node outlines.
func BuildEdges(g *Graph, pos PositionFunc) []EdgeSegment {
	segs := make([]EdgeSegment, 0, len(g.Edges))
	for _, e := range g.Edges {
		from, okFrom := pos(e.Source)
		to, okTo := pos(e.Target)
		segs = append(segs, EdgeSegment{
			Source:  e.Source,
			Target:  e.Target,
			Type:    e.Type,
			From:    from,
			To:      to,
			Visible: okFrom && okTo,
		})
	}
	return segs
}

// ArrowHead returns the hollow triangle drawn at the target end of a
// generalization, as tip, left wing, right wing. The tip is at to. It
// reports false when the segment has no direction.
func ArrowHead(from, to Point) (tip, left, right Point, ok bool) {
	u, ok := direction(from, to)
	if !ok {
		return Point{}, Point{}, Point{}, false
	}
	n := Point{-u.Y, u.X}

	tip = to
	base := tip.Sub(u.Scale(arrowLength))
	left = base.Add(n.Scale(arrowHalfW))
	right = base.Sub(n.Scale(arrowHalfW))
	return tip, left, right, true
}

// direction returns the unit vector from a to b.
func direction(a, b Point) (Point, bool) {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 || math.IsNaN(l) {
		return Point{}, false
	}
	return d.Scale(1 / l), true
}

// clipEdge moves the ends of a visible segment from the node centers to
// the node outlines. A generalization ends at an arrow tip placed so the
// whole arrowhead lies outside its target. Overlapping nodes leave the
// segment center to center.
func clipEdge(e *EdgeSegment, src, dst SceneNode) {
	u, ok := direction(src.Pos, dst.Pos)
	if !ok {
		return
	}
	from := src.exitPoint(dst.Pos)
	to := dst.exitPoint(src.Pos)
	if to.Sub(from).Dot(u) <= 0 {
		return
	}
	if e.Arrow() {
		to = to.Sub(u.Scale(arrowGap))
		for pulled := 0.0; pulled < arrowNudge && to.Sub(from).Dot(u) > arrowLength; pulled++ {
			tip, left, right, _ := ArrowHead(from, to)
			if !dst.inside(tip) && !dst.inside(left) && !dst.inside(right) {
				break
			}
			to = to.Sub(u)
		}
	}
	e.From, e.To = from, to
}
