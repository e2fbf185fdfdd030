// Layout results shared by both layout strategies.

package diagram

// LayoutResult holds the positions produced by a layout pass.
type LayoutResult struct {
	Strategy Strategy

	// Positioned nodes (center coordinates). Nodes missing here were never
	// placed and render at the origin.
	Nodes map[string]NodeLayout

	// Placement order, for deterministic iteration
	Order []string

	// Visible coordinate window
	ViewBox Box

	// Force layout only
	Ticks   int
	Settled bool
}

// NodeLayout contains the position of a node.
type NodeLayout struct {
	X, Y   float64 // Center position
	Side   Side    // Column side (column layout actors only)
	Pinned bool    // Held by the user (force layout only)
}

// NewLayoutResult creates an empty LayoutResult.
func NewLayoutResult(strategy Strategy) *LayoutResult {
	return &LayoutResult{
		Strategy: strategy,
		Nodes:    make(map[string]NodeLayout),
	}
}

// set records a node position unless the node is already placed.
func (lr *LayoutResult) set(id string, nl NodeLayout) bool {
	if _, ok := lr.Nodes[id]; ok {
		return false
	}
	lr.Nodes[id] = nl
	lr.Order = append(lr.Order, id)
	return true
}

// Position returns the position of a node and whether it was placed.
func (lr *LayoutResult) Position(id string) (Point, bool) {
	if n, ok := lr.Nodes[id]; ok {
		return Point{n.X, n.Y}, true
	}
	return Point{}, false
}

// Positions returns a plain id to point map.
func (lr *LayoutResult) Positions() map[string]Point {
	out := make(map[string]Point, len(lr.Nodes))
	for id, n := range lr.Nodes {
		out[id] = Point{n.X, n.Y}
	}
	return out
}

// Points returns the placed positions in placement order.
func (lr *LayoutResult) Points() []Point {
	pts := make([]Point, 0, len(lr.Order))
	for _, id := range lr.Order {
		n := lr.Nodes[id]
		pts = append(pts, Point{n.X, n.Y})
	}
	return pts
}
