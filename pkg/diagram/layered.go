package diagram

import (
	"sort"
)

// LayeredOptions configures the layered layout.
type LayeredOptions struct {
	LayerSpacing float64 // vertical gap between rows, edge to edge
	NodeSpacing  float64 // horizontal gap between neighbours in a row
	Passes       int     // barycenter sweeps, each one down and one up
	Padding      float64 // view box padding around the content; negative means none
}

// DefaultLayeredOptions returns the default spacing.
func DefaultLayeredOptions() LayeredOptions {
	return LayeredOptions{
		LayerSpacing: 80,
		NodeSpacing:  60,
		Passes:       4,
		Padding:      120,
	}
}

func (o *LayeredOptions) fill() {
	d := DefaultLayeredOptions()
	if o.LayerSpacing <= 0 {
		o.LayerSpacing = d.LayerSpacing
	}
	if o.NodeSpacing <= 0 {
		o.NodeSpacing = d.NodeSpacing
	}
	if o.Passes <= 0 {
		o.Passes = d.Passes
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
}

// LayoutLayered arranges a graph in rows, Sugiyama style, in one
// deterministic pass:
//
//  1. Rows: a node sits one row below its lowest generalization target, so
//     superclasses are drawn above their subclasses. Nodes outside any
//     hierarchy share the top row.
//  2. Order: barycenter sweeps over every edge reduce crossings between
//     adjacent rows.
//  3. Coordinates: each row is centered on x = 0 with its nodes spaced by
//     their glyph widths; rows are stacked by their tallest glyph.
func LayoutLayered(g *Graph, opts LayeredOptions) *LayoutResult {
	opts.fill()
	lr := NewLayoutResult(StrategyLayered)
	lr.Settled = true
	if g.Empty() {
		return lr
	}

	layers := assignRows(g)
	adj := adjacency(g)
	for i := 0; i < opts.Passes; i++ {
		for l := 1; l < len(layers); l++ {
			orderByBarycenter(layers[l], layers[l-1], adj)
		}
		for l := len(layers) - 2; l >= 0; l-- {
			orderByBarycenter(layers[l], layers[l+1], adj)
		}
	}

	var content Box
	y := 0.0
	for l, layer := range layers {
		rowH := 0.0
		total := opts.NodeSpacing * float64(len(layer)-1)
		sizes := make([]Point, len(layer))
		for i, id := range layer {
			n, _ := g.Node(id)
			sizes[i] = nodeExtent(n)
			total += sizes[i].X
			rowH = max(rowH, sizes[i].Y)
		}
		if l > 0 {
			y += opts.LayerSpacing
		}
		cy := y + rowH/2
		x := -total / 2
		for i, id := range layer {
			cx := x + sizes[i].X/2
			lr.set(id, NodeLayout{X: cx, Y: cy})
			ext := Box{MinX: x, MinY: cy - sizes[i].Y/2, Width: sizes[i].X, Height: sizes[i].Y}
			content = content.Union(ext)
			x += sizes[i].X + opts.NodeSpacing
		}
		y += rowH
	}
	lr.ViewBox = content.Pad(opts.Padding)
	return lr
}

// nodeExtent is the width and height a node occupies in a row.
func nodeExtent(n Node) Point {
	switch n.Group {
	case GroupClass:
		m := MeasureClass(n.Data)
		return Point{m.Width, m.Height}
	case GroupActor:
		return Point{2 * UseCaseRY, ActorLabelY + LabelFontSize}
	}
	return Point{2 * UseCaseRX, 2 * UseCaseRY}
}

// assignRows groups node ids by row in graph order. A generalization
// cycle is cut where it is first entered.
func assignRows(g *Graph) [][]string {
	parents := make(map[string][]string)
	for _, e := range g.Edges {
		if e.Type == EdgeGeneralization {
			parents[e.Source] = append(parents[e.Source], e.Target)
		}
	}

	rank := make(map[string]int, len(g.Nodes))
	visiting := make(map[string]bool)
	var rankOf func(id string) int
	rankOf = func(id string) int {
		if r, ok := rank[id]; ok {
			return r
		}
		if visiting[id] {
			return -1
		}
		visiting[id] = true
		r := 0
		for _, p := range parents[id] {
			r = max(r, rankOf(p)+1)
		}
		visiting[id] = false
		rank[id] = r
		return r
	}

	var layers [][]string
	for _, n := range g.Nodes {
		r := rankOf(n.ID)
		for len(layers) <= r {
			layers = append(layers, nil)
		}
		layers[r] = append(layers[r], n.ID)
	}
	return layers
}

// adjacency lists the neighbours of every node, ignoring edge direction.
func adjacency(g *Graph) map[string][]string {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.Source] = append(adj[e.Source], e.Target)
		adj[e.Target] = append(adj[e.Target], e.Source)
	}
	return adj
}

// orderByBarycenter reorders layer in place by the mean index of each
// node's neighbours in the fixed layer. Nodes without neighbours there
// keep their own index, so the sort is stable for them.
func orderByBarycenter(layer, fixed []string, adj map[string][]string) {
	index := make(map[string]int, len(fixed))
	for i, id := range fixed {
		index[id] = i
	}
	bary := make(map[string]float64, len(layer))
	for i, id := range layer {
		sum, n := 0.0, 0
		for _, nb := range adj[id] {
			if j, ok := index[nb]; ok {
				sum += float64(j)
				n++
			}
		}
		if n == 0 {
			bary[id] = float64(i)
		} else {
			bary[id] = sum / float64(n)
		}
	}
	sort.SliceStable(layer, func(a, b int) bool {
		return bary[layer[a]] < bary[layer[b]]
	})
}

// crossings counts edge crossings between two adjacent rows.
func crossings(upper, lower []string, adj map[string][]string) int {
	pos := make(map[string]int, len(lower))
	for i, id := range lower {
		pos[id] = i
	}
	type pair struct{ u, l int }
	var edges []pair
	for i, id := range upper {
		for _, nb := range adj[id] {
			if j, ok := pos[nb]; ok {
				edges = append(edges, pair{i, j})
			}
		}
	}
	count := 0
	for a := 0; a < len(edges); a++ {
		for b := a + 1; b < len(edges); b++ {
			e1, e2 := edges[a], edges[b]
			if (e1.u < e2.u && e1.l > e2.l) || (e1.u > e2.u && e1.l < e2.l) {
				count++
			}
		}
	}
	return count
}
