// SVG rendering via svgo.

package diagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	svg "github.com/ajstarks/svgo"
)

// SVGSurface writes a scene as a standalone SVG document.
type SVGSurface struct {
	canvas  *svg.SVG
	palette Palette

	// Background paints the view box with the palette background.
	Background bool
}

// NewSVGSurface returns a surface writing to w.
func NewSVGSurface(w io.Writer) *SVGSurface {
	return &SVGSurface{canvas: svg.New(w)}
}

// Begin implements Surface.
func (s *SVGSurface) Begin(v View) error {
	s.palette = v.Scene.Palette
	vb := v.Viewport.ViewBox
	s.canvas.Startraw(
		fmt.Sprintf(`width="%d" height="%d"`, v.Width, v.Height),
		fmt.Sprintf(`viewBox="%s"`, vb),
	)
	if v.Scene.Title != "" {
		s.canvas.Title(v.Scene.Title)
	}

	s.canvas.Def()
	s.canvas.Marker(MarkerID, MarkerRefX, 0, 10, 10,
		`viewBox="0 -5 10 10"`,
		`orient="auto-start-reverse"`,
	)
	s.canvas.Path("M0,-5L10,0L0,5", fmt.Sprintf("fill:none;stroke:%s", s.palette.ArrowStroke))
	s.canvas.MarkerEnd()
	s.canvas.DefEnd()

	if s.Background && s.palette.Background != "" {
		s.canvas.Path(rectPath(vb.MinX, vb.MinY, vb.Width, vb.Height), "fill:"+s.palette.Background)
	}

	s.canvas.Gtransform(v.Viewport.transform().String())
	return nil
}

// DrawEdge implements Surface.
func (s *SVGSurface) DrawEdge(e EdgeSegment) error {
	attrs := []string{
		fmt.Sprintf("fill:none;stroke:%s;stroke-opacity:%s;stroke-width:%s", s.palette.LinkColor, num(LinkOpacity), num(LinkWidth)),
		fmt.Sprintf(`class="link %s"`, e.Type),
	}
	if e.Arrow() {
		attrs = append(attrs, fmt.Sprintf(`marker-end="url(#%s)"`, MarkerID))
	}
	s.canvas.Path(fmt.Sprintf("M%s,%sL%s,%s", num(e.From.X), num(e.From.Y), num(e.To.X), num(e.To.Y)), attrs...)
	return nil
}

// DrawNode implements Surface.
func (s *SVGSurface) DrawNode(n SceneNode) error {
	s.canvas.Group(
		fmt.Sprintf(`class="node %s"`, n.Group),
		fmt.Sprintf(`data-id="%s"`, attrEscape(n.ID)),
		fmt.Sprintf(`transform="translate(%s,%s)"`, num(n.Pos.X), num(n.Pos.Y)),
	)
	for _, p := range n.Glyph.Prims {
		s.primitive(p)
	}
	s.canvas.Gend()
	return nil
}

// End implements Surface.
func (s *SVGSurface) End() error {
	s.canvas.Gend()
	s.canvas.End()
	return nil
}

func (s *SVGSurface) primitive(p Primitive) {
	switch p.Kind {
	case PrimCircle:
		s.canvas.Circle(int(p.X), int(p.Y), int(p.RX), shapeStyle(p))
	case PrimEllipse:
		s.canvas.Ellipse(int(p.X), int(p.Y), int(p.RX), int(p.RY), shapeStyle(p))
	case PrimRect:
		s.canvas.Path(rectPath(p.X, p.Y, p.W, p.H), shapeStyle(p))
	case PrimLine:
		s.canvas.Path(fmt.Sprintf("M%s,%sL%s,%s", num(p.X), num(p.Y), num(p.X2), num(p.Y2)), shapeStyle(p))
	case PrimText:
		// svgo positions text on integer coordinates, so fractional
		// baselines go through a translate.
		s.canvas.Gtransform(fmt.Sprintf("translate(%s,%s)", num(p.X), num(p.Y)))
		s.canvas.Text(0, 0, p.Text, textStyle(p))
		s.canvas.Gend()
	}
}

func rectPath(x, y, w, h float64) string {
	return fmt.Sprintf("M%s,%sh%sv%sh%sz", num(x), num(y), num(w), num(h), num(-w))
}

func shapeStyle(p Primitive) string {
	var b strings.Builder
	if p.Fill != "" {
		fmt.Fprintf(&b, "fill:%s;", p.Fill)
	} else {
		b.WriteString("fill:none;")
	}
	if p.Stroke != "" {
		fmt.Fprintf(&b, "stroke:%s;stroke-width:%s", p.Stroke, num(p.StrokeWidth))
	}
	return strings.TrimSuffix(b.String(), ";")
}

func textStyle(p Primitive) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fill:%s;font-size:%spx", p.Fill, num(p.FontSize))
	switch p.Font {
	case FontMono:
		b.WriteString(";font-family:monospace")
	case FontSansBold:
		b.WriteString(";font-family:sans-serif;font-weight:bold")
	default:
		b.WriteString(";font-family:sans-serif")
	}
	if p.Anchor == AnchorMiddle {
		b.WriteString(";text-anchor:middle")
	}
	return b.String()
}

var attrReplacer = strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;")

func attrEscape(s string) string { return attrReplacer.Replace(s) }

// RenderSVG writes the view as SVG to w.
func RenderSVG(ctx context.Context, w io.Writer, v View) error {
	return Render(ctx, NewSVGSurface(w), v)
}

// SVGBytes renders the view as an SVG document.
func SVGBytes(ctx context.Context, v View) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderSVG(ctx, &buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
