package diagram

import "slices"

// Side is the column an actor is placed in.
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideRight {
		return "right"
	}
	return "left"
}

// SideFunc assigns an actor to a column. index is the actor's position
// among the graph's actors.
type SideFunc func(index int, actor Node) Side

// ParitySides puts even-indexed actors on the left and odd-indexed
// actors on the right.
func ParitySides(index int, _ Node) Side {
	if index%2 == 0 {
		return SideLeft
	}
	return SideRight
}

// NameSides puts actors whose name is in names on the left and every
// other actor on the right.
func NameSides(names ...string) SideFunc {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return func(_ int, actor Node) Side {
		if set[actor.Data.Name] {
			return SideLeft
		}
		return SideRight
	}
}

// ColumnOptions configures the deterministic column layout.
type ColumnOptions struct {
	Side SideFunc // nil means ParitySides

	LeftX, MiddleX, RightX float64 // column centers
	Top                    float64 // y of the first row, zero included

	RowSpacing   float64 // vertical space per use case row
	GroupSpacing float64 // extra space between actor groups

	// A generalization between actors anchors the parent here and the
	// child ChildOffset below it.
	AnchorX, AnchorY float64
	ChildOffset      float64

	Padding float64 // added around the bounding box to form the view box; negative means none
}

// DefaultColumnOptions returns the use-case diagram defaults.
func DefaultColumnOptions() ColumnOptions {
	return ColumnOptions{
		Side:         ParitySides,
		LeftX:        150,
		MiddleX:      500,
		RightX:       850,
		Top:          100,
		RowSpacing:   110,
		GroupSpacing: 60,
		AnchorX:      850,
		AnchorY:      100,
		ChildOffset:  150,
		Padding:      120,
	}
}

func (o *ColumnOptions) fill() {
	d := DefaultColumnOptions()
	if o.Side == nil {
		o.Side = d.Side
	}
	if o.LeftX == 0 && o.MiddleX == 0 && o.RightX == 0 {
		o.LeftX, o.MiddleX, o.RightX = d.LeftX, d.MiddleX, d.RightX
	}
	if o.RowSpacing <= 0 {
		o.RowSpacing = d.RowSpacing
	}
	if o.GroupSpacing < 0 {
		o.GroupSpacing = 0
	}
	if o.AnchorX == 0 && o.AnchorY == 0 {
		o.AnchorX, o.AnchorY = o.RightX, o.Top
	}
	if o.ChildOffset <= 0 {
		o.ChildOffset = d.ChildOffset
	}
	if o.Padding < 0 {
		o.Padding = 0
	}
}

// LayoutColumns places actors in a left or right column and their use
// cases in a middle column, in one deterministic pass. The same graph and
// options always produce the same result.
//
// Every actor group reserves max(1, n) rows for its n use cases and the
// actor sits centered against them. Left groups are stacked first, then
// right groups continue below them so the shared middle column never
// doubles up. A generalization between two actors is placed before
// anything else: the parent at the top-right anchor and the child right
// below it, with their use cases centered on them. Nodes not reached by
// any rule stay unplaced.
func LayoutColumns(g *Graph, opts ColumnOptions) *LayoutResult {
	opts.fill()
	lr := NewLayoutResult(StrategyColumns)
	if g.Empty() {
		return lr
	}

	isGroup := func(id string, grp Group) bool {
		n, ok := g.Node(id)
		return ok && n.Group == grp
	}

	var actors []Node
	for _, n := range g.Nodes {
		if n.Group == GroupActor {
			actors = append(actors, n)
		}
	}

	// Use cases per actor, in edge discovery order.
	useCases := make(map[string][]string)
	for _, e := range g.Edges {
		if e.Type != EdgeUsage {
			continue
		}
		a, u := e.Source, e.Target
		if !isGroup(a, GroupActor) || !isGroup(u, GroupUseCase) {
			a, u = e.Target, e.Source
			if !isGroup(a, GroupActor) || !isGroup(u, GroupUseCase) {
				continue
			}
		}
		if !slices.Contains(useCases[a], u) {
			useCases[a] = append(useCases[a], u)
		}
	}

	// centerUseCases spreads an actor's use cases symmetrically around y.
	centerUseCases := func(actorID string, y float64) {
		ucs := useCases[actorID]
		mid := float64(len(ucs)-1) / 2
		for i, u := range ucs {
			lr.set(u, NodeLayout{X: opts.MiddleX, Y: y + (float64(i)-mid)*opts.RowSpacing})
		}
	}

	cursor := opts.Top

	for _, e := range g.Edges {
		if e.Type != EdgeGeneralization || !isGroup(e.Source, GroupActor) || !isGroup(e.Target, GroupActor) {
			continue
		}
		parentY := opts.AnchorY
		childY := opts.AnchorY + opts.ChildOffset
		lr.set(e.Target, NodeLayout{X: opts.AnchorX, Y: parentY, Side: SideRight})
		lr.set(e.Source, NodeLayout{X: opts.AnchorX, Y: childY, Side: SideRight})
		centerUseCases(e.Target, parentY)
		centerUseCases(e.Source, childY)

		for _, p := range lr.Points() {
			cursor = max(cursor, p.Y+opts.RowSpacing+opts.GroupSpacing)
		}
		break
	}

	var left, right []Node
	for i, a := range actors {
		if opts.Side(i, a) == SideLeft {
			left = append(left, a)
		} else {
			right = append(right, a)
		}
	}

	stack := func(group []Node, x float64, side Side) {
		for _, a := range group {
			if p, placed := lr.Position(a.ID); placed {
				centerUseCases(a.ID, p.Y)
				continue
			}
			rows := max(1, len(useCases[a.ID]))
			actorY := cursor + float64(rows-1)*opts.RowSpacing/2
			lr.set(a.ID, NodeLayout{X: x, Y: actorY, Side: side})
			centerUseCases(a.ID, actorY)
			cursor += float64(rows)*opts.RowSpacing + opts.GroupSpacing
		}
	}
	stack(left, opts.LeftX, SideLeft)
	stack(right, opts.RightX, SideRight)

	if len(lr.Order) > 0 {
		lr.ViewBox = BoundingBox(lr.Points()).Pad(opts.Padding)
	}
	lr.Settled = true
	return lr
}
