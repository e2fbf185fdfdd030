package diagram

import "math"

// PrimKind is the kind of a drawing primitive.
type PrimKind int

const (
	PrimCircle PrimKind = iota
	PrimEllipse
	PrimLine
	PrimRect
	PrimText
)

// TextAnchor is the horizontal alignment of a text primitive.
type TextAnchor int

const (
	AnchorStart TextAnchor = iota
	AnchorMiddle
)

// Primitive is one element of a glyph in the node's local frame, where the
// node position is the origin.
type Primitive struct {
	Kind PrimKind

	X, Y   float64 // circle/ellipse center, rect top-left, line start, text baseline anchor
	X2, Y2 float64 // line end
	W, H   float64 // rect size
	RX, RY float64 // circle radius in RX, ellipse radii

	Text     string
	FontSize float64
	Font     FontStyle
	Anchor   TextAnchor

	Fill        string // empty means no fill
	Stroke      string // empty means no stroke
	StrokeWidth float64
}

// Glyph is the complete local drawing of a node.
type Glyph struct {
	NodeID string
	Group  Group
	Bounds Rect // local extent, centered near the origin
	Prims  []Primitive
}

// Shape constants.
const (
	ActorStrokeWidth = 2.5
	ActorHeadRadius  = 15
	ActorLabelY      = 60

	UseCaseRX          = 100
	UseCaseRY          = 40
	UseCaseStrokeWidth = 2
	UseCaseWrapWidth   = 180
	UseCaseLineHeight  = 1.1 // em

	ClassWidth       = 200
	ClassPadding     = 10
	ClassLineHeight  = 18
	ClassNameHeight  = 30
	ClassStrokeWidth = 2

	LabelFontSize  = 14
	MemberFontSize = 12
)

// ClassMetrics holds the compartment sizes of a class box.
type ClassMetrics struct {
	Width        float64
	NameHeight   float64
	AttrHeight   float64
	MethodHeight float64
	Height       float64
}

// MeasureClass computes the compartment sizes for class data. A
// compartment with n lines reserves n*lineHeight plus padding, and
// nothing at all when empty.
func MeasureClass(d NodeData) ClassMetrics {
	compartment := func(n int) float64 {
		if n == 0 {
			return 0
		}
		return float64(n*ClassLineHeight + ClassPadding)
	}
	m := ClassMetrics{
		Width:        ClassWidth,
		NameHeight:   ClassNameHeight,
		AttrHeight:   compartment(len(d.Attributes)),
		MethodHeight: compartment(len(d.Methods)),
	}
	m.Height = m.NameHeight + m.AttrHeight + m.MethodHeight
	return m
}

// BuildGlyph draws a node in its local frame. It depends only on the
// node's data, the palette and the text measurer, never on layout state.
func BuildGlyph(n Node, p Palette, m Measurer) Glyph {
	switch n.Group {
	case GroupActor:
		return actorGlyph(n, p, m)
	case GroupClass:
		return classGlyph(n, p, m)
	}
	return useCaseGlyph(n, p, m)
}

func actorGlyph(n Node, p Palette, m Measurer) Glyph {
	stroke := func(x1, y1, x2, y2 float64) Primitive {
		return Primitive{Kind: PrimLine, X: x1, Y: y1, X2: x2, Y2: y2, Stroke: p.ActorStroke, StrokeWidth: ActorStrokeWidth}
	}
	name := NormalizeLabel(n.Data.Name)
	prims := []Primitive{
		{Kind: PrimCircle, X: 0, Y: -25, RX: ActorHeadRadius, Stroke: p.ActorStroke, StrokeWidth: ActorStrokeWidth},
		stroke(0, -10, 0, 20),  // torso
		stroke(-20, 5, 20, 5),  // arms
		stroke(0, 20, -15, 40), // legs
		stroke(0, 20, 15, 40),
		{Kind: PrimText, X: 0, Y: ActorLabelY, Text: name, FontSize: LabelFontSize, Font: FontSans, Anchor: AnchorMiddle, Fill: p.ActorText},
	}

	w := 40.0
	if m != nil {
		w = math.Max(w, m.Measure(name, LabelFontSize, FontSans))
	}
	// Head top at -40, label descent just below 60.
	top, bottom := -40.0, ActorLabelY+4.0
	return Glyph{
		NodeID: n.ID,
		Group:  GroupActor,
		Bounds: Rect{X: 0, Y: (top + bottom) / 2, W: w, H: bottom - top},
		Prims:  prims,
	}
}

func useCaseGlyph(n Node, p Palette, m Measurer) Glyph {
	prims := []Primitive{
		{Kind: PrimEllipse, RX: UseCaseRX, RY: UseCaseRY, Fill: p.UseCaseFill, Stroke: p.UseCaseStroke, StrokeWidth: UseCaseStrokeWidth},
	}

	lines := WrapLabel(n.Data.Name, UseCaseWrapWidth, LabelFontSize, FontSans, m)
	lineH := UseCaseLineHeight * LabelFontSize
	// 0.3em drops a single line's baseline onto the center; extra lines
	// spread evenly above and below.
	y0 := 0.3*LabelFontSize - float64(len(lines)-1)*lineH/2
	for i, line := range lines {
		prims = append(prims, Primitive{
			Kind:     PrimText,
			Y:        y0 + float64(i)*lineH,
			Text:     line,
			FontSize: LabelFontSize,
			Font:     FontSans,
			Anchor:   AnchorMiddle,
			Fill:     p.UseCaseText,
		})
	}

	return Glyph{
		NodeID: n.ID,
		Group:  GroupUseCase,
		Bounds: Rect{W: 2 * UseCaseRX, H: 2 * UseCaseRY},
		Prims:  prims,
	}
}

func classGlyph(n Node, p Palette, _ Measurer) Glyph {
	cm := MeasureClass(n.Data)
	left := -cm.Width / 2
	top := -cm.Height / 2

	prims := []Primitive{
		{Kind: PrimRect, X: left, Y: top, W: cm.Width, H: cm.Height, Fill: p.ClassFill, Stroke: p.ClassStroke, StrokeWidth: ClassStrokeWidth},
		// Name divider, always present.
		{Kind: PrimLine, X: left, Y: top + cm.NameHeight, X2: -left, Y2: top + cm.NameHeight, Stroke: p.ClassStroke, StrokeWidth: 1},
	}
	if cm.AttrHeight > 0 {
		y := top + cm.NameHeight + cm.AttrHeight
		prims = append(prims, Primitive{Kind: PrimLine, X: left, Y: y, X2: -left, Y2: y, Stroke: p.ClassStroke, StrokeWidth: 1})
	}

	prims = append(prims, Primitive{
		Kind:     PrimText,
		Y:        top + cm.NameHeight/2 + 5,
		Text:     NormalizeLabel(n.Data.Name),
		FontSize: LabelFontSize,
		Font:     FontSansBold,
		Anchor:   AnchorMiddle,
		Fill:     p.ClassText,
	})

	members := func(items []string, y0 float64) {
		for i, s := range items {
			prims = append(prims, Primitive{
				Kind:     PrimText,
				X:        left + ClassPadding,
				Y:        y0 + float64(i*ClassLineHeight),
				Text:     NormalizeLabel(s),
				FontSize: MemberFontSize,
				Font:     FontMono,
				Anchor:   AnchorStart,
				Fill:     p.ClassText,
			})
		}
	}
	members(n.Data.Attributes, top+cm.NameHeight+ClassPadding)
	members(n.Data.Methods, top+cm.NameHeight+cm.AttrHeight+ClassPadding)

	return Glyph{
		NodeID: n.ID,
		Group:  GroupClass,
		Bounds: Rect{W: cm.Width, H: cm.Height},
		Prims:  prims,
	}
}
