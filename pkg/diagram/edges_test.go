package diagram

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEdgesResolves(t *testing.T) {
	g := NewGraph(KindClass,
		[]Node{class("C1", "A", nil, nil), class("C2", "B", nil, nil), class("C3", "C", nil, nil)},
		[]Edge{
			{"C1", "C2", EdgeGeneralization},
			{"C2", "C3", EdgeAssociation},
			{"C3", "GONE", EdgeAssociation},
		},
	)
	pos := map[string]Point{"C1": {0, 0}, "C2": {100, 0}}
	segs := BuildEdges(g, func(id string) (Point, bool) {
		p, ok := pos[id]
		return p, ok
	})

	require.Len(t, segs, 2, "dangling edge dropped at graph construction")

	assert.True(t, segs[0].Visible)
	assert.True(t, segs[0].Arrow())
	assert.Equal(t, Point{100, 0}, segs[0].To)

	assert.False(t, segs[1].Visible, "C3 has no position yet")
	assert.False(t, segs[1].Arrow())
}

func TestArrowHead(t *testing.T) {
	tip, left, right, ok := ArrowHead(Point{0, 0}, Point{100, 0})
	require.True(t, ok)
	assert.Equal(t, Point{100, 0}, tip)
	assert.Equal(t, Point{85, 7.5}, left)
	assert.Equal(t, Point{85, -7.5}, right)

	_, _, _, ok = ArrowHead(Point{5, 5}, Point{5, 5})
	assert.False(t, ok)
}

func TestOnlyGeneralizationHasArrow(t *testing.T) {
	for _, et := range []EdgeType{EdgeUsage, EdgeAssociation, EdgeAggregation, EdgeComposition} {
		assert.False(t, EdgeSegment{Type: et}.Arrow(), et.String())
	}
	assert.True(t, EdgeSegment{Type: EdgeGeneralization}.Arrow())
}

// placedScene composes g with every node at the given position.
func placedScene(g *Graph, pos map[string]Point) *Scene {
	lr := NewLayoutResult(StrategyForce)
	for _, n := range g.Nodes {
		p := pos[n.ID]
		lr.set(n.ID, NodeLayout{X: p.X, Y: p.Y})
	}
	lr.ViewBox = Box{Width: 1000, Height: 800}
	return Compose(g, lr, DefaultPalette(), ApproxMeasurer{})
}

func TestGeneralizationArrowClearsTarget(t *testing.T) {
	tests := []struct {
		name   string
		nodes  []Node
		target Point
	}{
		{"class, mostly horizontal", []Node{class("C1", "Cao", nil, nil), class("C2", "Animal", nil, nil)}, Point{300, 40}},
		{"class, steep", []Node{class("C1", "Cao", nil, nil), class("C2", "Animal", nil, nil)}, Point{60, 200}},
		{"class, shallow near corner", []Node{class("C1", "Cao", nil, nil), class("C2", "Animal", []string{"+ nome: string"}, nil)}, Point{260, 70}},
		{"use case", []Node{useCase("C1", "Pagar com Pix"), useCase("C2", "Pagar")}, Point{250, 30}},
		{"actor", []Node{actor("C1", "Gerente"), actor("C2", "Funcionario")}, Point{40, 220}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := KindClass
			if tt.nodes[0].Group != GroupClass {
				kind = KindUseCase
			}
			g := NewGraph(kind, tt.nodes, []Edge{{"C1", "C2", EdgeGeneralization}})
			sc := placedScene(g, map[string]Point{"C1": {0, 0}, "C2": tt.target})

			require.Len(t, sc.Edges, 1)
			e := sc.Edges[0]
			require.True(t, e.Visible)
			tip, left, right, ok := ArrowHead(e.From, e.To)
			require.True(t, ok)

			dst := sc.Nodes[1]
			for name, p := range map[string]Point{"tip": tip, "left": left, "right": right} {
				assert.False(t, dst.inside(p), "%s %v inside target", name, p)
				if dst.Group == GroupClass {
					assert.False(t, dst.Bounds().Contains(p), "%s %v inside target bounds", name, p)
				}
			}
			assert.False(t, sc.Nodes[0].Bounds().Contains(tip))
		})
	}
}

func TestComposeClipsToOutline(t *testing.T) {
	g := NewGraph(KindClass,
		[]Node{class("C1", "Pedido", nil, nil), class("C2", "Item", nil, nil)},
		[]Edge{{"C1", "C2", EdgeComposition}},
	)
	sc := placedScene(g, map[string]Point{"C1": {0, 0}, "C2": {300, 40}})

	e := sc.Edges[0]
	assert.InDelta(t, 100, e.From.X, 1e-9)
	assert.InDelta(t, 40.0/3, e.From.Y, 1e-9)
	assert.InDelta(t, 200, e.To.X, 1e-9)
	assert.InDelta(t, 40-40.0/3, e.To.Y, 1e-9)

	uc := NewGraph(KindUseCase,
		[]Node{actor("A", "Cliente"), useCase("U", "Comprar")},
		[]Edge{{"A", "U", EdgeUsage}},
	)
	sc = placedScene(uc, map[string]Point{"A": {0, 0}, "U": {400, 0}})
	assert.InDelta(t, 400-UseCaseRX, sc.Edges[0].To.X, 1e-9)
	assert.InDelta(t, 0, sc.Edges[0].To.Y, 1e-9)
}

func TestComposeKeepsCentersWhenOverlapping(t *testing.T) {
	g := NewGraph(KindClass,
		[]Node{class("C1", "A", nil, nil), class("C2", "B", nil, nil)},
		[]Edge{{"C1", "C2", EdgeGeneralization}},
	)
	sc := placedScene(g, map[string]Point{"C1": {0, 0}, "C2": {50, 5}})
	assert.Equal(t, Point{0, 0}, sc.Edges[0].From)
	assert.Equal(t, Point{50, 5}, sc.Edges[0].To)

	sc = placedScene(g, map[string]Point{"C1": {10, 10}, "C2": {10, 10}})
	assert.Equal(t, sc.Edges[0].From, sc.Edges[0].To)
	assert.False(t, math.IsNaN(sc.Edges[0].To.X))
}
