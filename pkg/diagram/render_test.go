package diagram

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// generalizationScene is two classes, one without compartments, joined by
// a generalization.
func generalizationScene(t *testing.T) *Scene {
	t.Helper()
	g := NewGraph(KindClass,
		[]Node{
			class("C1", "Pedido", []string{"+ id: int", "+ total: float"}, []string{"+ fechar(): void"}),
			class("C2", "Entidade", nil, nil),
		},
		[]Edge{{"C1", "C2", EdgeGeneralization}},
	)
	lr := NewLayoutResult(StrategyForce)
	lr.set("C1", NodeLayout{X: 300, Y: 400})
	lr.set("C2", NodeLayout{X: 700, Y: 400})
	lr.ViewBox = Box{Width: 1000, Height: 800}
	return Compose(g, lr, DefaultPalette(), ApproxMeasurer{})
}

func TestComposeUnplaced(t *testing.T) {
	g := NewGraph(KindUseCase,
		[]Node{actor("A", "Cliente"), useCase("U", "Comprar"), useCase("LONE", "Sozinho")},
		[]Edge{{"A", "U", EdgeUsage}},
	)
	lr := LayoutColumns(g, DefaultColumnOptions())
	sc := Compose(g, lr, DefaultPalette(), ApproxMeasurer{})

	require.Len(t, sc.Nodes, 3)
	lone := sc.Nodes[2]
	assert.False(t, lone.Placed)
	assert.Equal(t, Point{}, lone.Pos)
	assert.Equal(t, lr.ViewBox, sc.ViewBox)
	require.Len(t, sc.Edges, 1)
	assert.True(t, sc.Edges[0].Visible)
}

func TestComposeWithoutLayout(t *testing.T) {
	sc := Compose(NewGraph(KindClass, []Node{class("C", "X", nil, nil)}, nil), nil, DefaultPalette(), nil)
	require.Len(t, sc.Nodes, 1)
	assert.False(t, sc.Nodes[0].Placed)
	assert.False(t, sc.ViewBox.IsZero())
}

func TestSceneOverlaps(t *testing.T) {
	sc := generalizationScene(t)
	assert.Empty(t, sc.Overlaps())

	g := NewGraph(KindClass, []Node{class("C1", "A", nil, nil), class("C2", "B", nil, nil)}, nil)
	lr := NewLayoutResult(StrategyForce)
	lr.set("C1", NodeLayout{X: 0, Y: 0})
	lr.set("C2", NodeLayout{X: 50, Y: 0})
	ov := Compose(g, lr, DefaultPalette(), nil).Overlaps()
	require.Len(t, ov, 1)
	assert.Equal(t, 150.0*30, ov[0].Area)
}

func TestRenderEmptyIsNoop(t *testing.T) {
	var buf bytes.Buffer
	sc := Compose(NewGraph(KindClass, nil, nil), nil, DefaultPalette(), nil)
	require.NoError(t, RenderSVG(context.Background(), &buf, NewView(sc)))
	assert.Zero(t, buf.Len())

	require.NoError(t, RenderPNG(context.Background(), &buf, NewView(sc)))
	assert.Zero(t, buf.Len())
}

func TestRenderSVG(t *testing.T) {
	sc := generalizationScene(t)
	sc.Title = "Loja & Cia"
	out, err := SVGBytes(context.Background(), NewView(sc))
	require.NoError(t, err)
	svg := string(out)

	assert.Contains(t, svg, `viewBox="0 0 1000 800"`)
	assert.Contains(t, svg, `<marker id="arrow-generalization"`)
	assert.Contains(t, svg, `orient="auto-start-reverse"`)
	assert.Contains(t, svg, `marker-end="url(#arrow-generalization)"`)
	assert.Contains(t, svg, "M0,-5L10,0L0,5")
	assert.Contains(t, svg, "Loja &amp; Cia")
	assert.Contains(t, svg, "+ fechar(): void")
	assert.Contains(t, svg, `transform="translate(300,400)"`)

	// Edges are drawn before nodes.
	assert.Less(t, strings.Index(svg, "class=\"link"), strings.Index(svg, "class=\"node"))
}

func TestRenderSVGPlainEdges(t *testing.T) {
	g := NewGraph(KindUseCase,
		[]Node{actor("A", "Cliente"), useCase("U", "Fazer Pedido")},
		[]Edge{{"A", "U", EdgeUsage}},
	)
	sc := Compose(g, LayoutColumns(g, DefaultColumnOptions()), DefaultPalette(), ApproxMeasurer{})
	out, err := SVGBytes(context.Background(), NewView(sc))
	require.NoError(t, err)
	svg := string(out)

	assert.Equal(t, 1, strings.Count(svg, `class="link usage"`))
	assert.NotContains(t, svg, "marker-end")
	assert.Contains(t, svg, `viewBox="30 -20 590 240"`)
}

func TestRenderPNG(t *testing.T) {
	sc := generalizationScene(t)
	v := NewView(sc)
	v.Width, v.Height = 500, 400

	var buf bytes.Buffer
	require.NoError(t, RenderPNG(context.Background(), &buf, v))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, 500, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())
}

func TestRenderPNGSupersampleFactors(t *testing.T) {
	for _, ss := range []int{0, 1, 4} {
		v := NewView(generalizationScene(t))
		v.Width, v.Height = 250, 200

		var buf bytes.Buffer
		require.NoError(t, RenderPNGSupersampled(context.Background(), &buf, v, ss))
		img, err := png.Decode(&buf)
		require.NoError(t, err, "factor %d", ss)
		assert.Equal(t, 250, img.Bounds().Dx(), "factor %d", ss)
		assert.Equal(t, 200, img.Bounds().Dy(), "factor %d", ss)
	}
}

func TestFitContent(t *testing.T) {
	sc := generalizationScene(t)
	assert.Same(t, sc, sc.FitContent(ExportPadding), "content already inside the view box")

	g := NewGraph(KindClass, []Node{class("C1", "Pedido", nil, nil), class("C2", "Item", nil, nil)}, nil)
	lr := NewLayoutResult(StrategyForce)
	lr.set("C1", NodeLayout{X: 300, Y: 400})
	lr.set("C2", NodeLayout{X: 1900, Y: -300})
	lr.ViewBox = Box{Width: 1000, Height: 800}
	wide := Compose(g, lr, DefaultPalette(), ApproxMeasurer{})

	fit := wide.FitContent(ExportPadding)
	assert.Equal(t, Box{MinX: 160, MinY: -355, Width: 1880, Height: 810}, fit.ViewBox)
	assert.Equal(t, Box{Width: 1000, Height: 800}, wide.ViewBox, "original untouched")

	empty := Compose(NewGraph(KindClass, nil, nil), nil, DefaultPalette(), nil)
	assert.Same(t, empty, empty.FitContent(ExportPadding))
}

func TestFitContentSettledChain(t *testing.T) {
	var nodes []Node
	var edges []Edge
	for i := 0; i < 12; i++ {
		nodes = append(nodes, class(fmt.Sprintf("C%d", i), fmt.Sprintf("Classe%d", i), []string{"+ id: int"}, nil))
		if i > 0 {
			edges = append(edges, Edge{fmt.Sprintf("C%d", i-1), fmt.Sprintf("C%d", i), EdgeAssociation})
		}
	}
	g := NewGraph(KindClass, nodes, edges)
	lr, err := Arrange(context.Background(), g, DefaultLayoutOptions(KindClass))
	require.NoError(t, err)

	sc := Compose(g, lr, DefaultPalette(), ApproxMeasurer{}).FitContent(ExportPadding)
	for _, n := range sc.Nodes {
		b := n.Bounds()
		lo, hi := b.Min(), b.Max()
		assert.True(t, sc.ViewBox.Contains(lo) && sc.ViewBox.Contains(hi), "%s clipped by %s", n.ID, sc.ViewBox)
	}
}

func TestRenderCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var buf bytes.Buffer
	err := RenderSVG(ctx, &buf, NewView(generalizationScene(t)))
	assert.ErrorIs(t, err, context.Canceled)
}
