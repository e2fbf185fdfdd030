package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countKind(g Glyph, k PrimKind) int {
	n := 0
	for _, p := range g.Prims {
		if p.Kind == k {
			n++
		}
	}
	return n
}

func TestMeasureClass(t *testing.T) {
	tests := []struct {
		name          string
		attrs, meths  int
		attrH, methH  float64
		height        float64
	}{
		{"empty", 0, 0, 0, 0, 30},
		{"attributes only", 3, 0, 64, 0, 94},
		{"methods only", 0, 2, 0, 46, 76},
		{"both", 2, 1, 46, 28, 104},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := MeasureClass(NodeData{
				Attributes: make([]string, tt.attrs),
				Methods:    make([]string, tt.meths),
			})
			assert.Equal(t, tt.attrH, m.AttrHeight)
			assert.Equal(t, tt.methH, m.MethodHeight)
			assert.Equal(t, tt.height, m.Height)
			assert.Equal(t, m.NameHeight+m.AttrHeight+m.MethodHeight, m.Height)
			assert.Equal(t, tt.attrs == 0, m.AttrHeight == 0)
		})
	}
}

func TestClassGlyphDividers(t *testing.T) {
	p := DefaultPalette()

	full := BuildGlyph(class("C1", "Pedido", []string{"+ id: int", "+ total: float"}, []string{"+ fechar(): void"}), p, ApproxMeasurer{})
	bare := BuildGlyph(class("C2", "Item", nil, nil), p, ApproxMeasurer{})

	assert.Equal(t, 2, countKind(full, PrimLine))
	assert.Equal(t, 1, countKind(bare, PrimLine), "no attribute/method divider without attributes")
	assert.Equal(t, 30.0, bare.Bounds.H)
	assert.Equal(t, 104.0, full.Bounds.H)

	rect := full.Prims[0]
	require.Equal(t, PrimRect, rect.Kind)
	assert.Equal(t, -100.0, rect.X)
	assert.Equal(t, -52.0, rect.Y)
	assert.Equal(t, p.ClassFill, rect.Fill)

	var name, members []Primitive
	for _, pr := range full.Prims {
		if pr.Kind != PrimText {
			continue
		}
		if pr.Font == FontSansBold {
			name = append(name, pr)
		} else {
			members = append(members, pr)
		}
	}
	require.Len(t, name, 1)
	assert.Equal(t, AnchorMiddle, name[0].Anchor)
	assert.Equal(t, -32.0, name[0].Y)

	require.Len(t, members, 3)
	for _, m := range members {
		assert.Equal(t, AnchorStart, m.Anchor)
		assert.Equal(t, FontMono, m.Font)
		assert.Equal(t, -90.0, m.X)
	}
	assert.Equal(t, []float64{-12, 6, 34}, []float64{members[0].Y, members[1].Y, members[2].Y})
}

func TestActorGlyph(t *testing.T) {
	g := BuildGlyph(actor("A", "Cliente"), DefaultPalette(), ApproxMeasurer{})
	assert.Equal(t, 1, countKind(g, PrimCircle))
	assert.Equal(t, 4, countKind(g, PrimLine))
	require.Equal(t, 1, countKind(g, PrimText))

	label := g.Prims[len(g.Prims)-1]
	assert.Equal(t, "Cliente", label.Text)
	assert.Equal(t, 60.0, label.Y)
	for _, p := range g.Prims[:5] {
		assert.Equal(t, ActorStrokeWidth, p.StrokeWidth)
	}
}

func TestUseCaseGlyphWraps(t *testing.T) {
	m := ApproxMeasurer{}
	g := BuildGlyph(useCase("U", "Gerar relatório mensal de vendas por região"), DefaultPalette(), m)

	assert.Equal(t, PrimEllipse, g.Prims[0].Kind)
	assert.Equal(t, 100.0, g.Prims[0].RX)
	assert.Equal(t, 40.0, g.Prims[0].RY)

	lines := g.Prims[1:]
	require.Greater(t, len(lines), 1)
	// The block of lines is centered on the ellipse.
	first, last := lines[0].Y, lines[len(lines)-1].Y
	assert.InDelta(t, 0.3*LabelFontSize*2, first+last, 1e-9)
}

func TestWrapLabelWidth(t *testing.T) {
	measurers := map[string]Measurer{
		"approx": ApproxMeasurer{},
		"font":   DefaultMeasurer(),
	}
	labels := []string{
		"Fazer Pedido",
		"Consultar histórico de pedidos anteriores do cliente",
		"a b c d e f g h i j k l m n o p q r s t u v w x y z",
		"Supercalifragilisticexpialidocious-extraordinariamente-longo curto",
	}
	for name, m := range measurers {
		for _, label := range labels {
			for _, line := range WrapLabel(label, UseCaseWrapWidth, LabelFontSize, FontSans, m) {
				if strings.Contains(line, " ") {
					assert.LessOrEqual(t, m.Measure(line, LabelFontSize, FontSans), float64(UseCaseWrapWidth), "%s: %q", name, line)
				}
			}
		}
	}
}

func TestWrapLabelDegenerate(t *testing.T) {
	assert.Equal(t, []string{"um dois tres"}, WrapLabel("um dois tres", 0, 14, FontSans, ApproxMeasurer{}))
	assert.Equal(t, []string{"um dois tres"}, WrapLabel("um dois tres", 10, 14, FontSans, nil))
	assert.Equal(t, []string{""}, WrapLabel("   ", 180, 14, FontSans, ApproxMeasurer{}))
	assert.Equal(t, []string{"Palavra"}, WrapLabel("Palavra", 1, 14, FontSans, ApproxMeasurer{}))
}

func TestNormalizeLabel(t *testing.T) {
	decomposed := "Relato\u0301rio"
	assert.Equal(t, "Relat\u00f3rio", NormalizeLabel("  "+decomposed+" "))
}
