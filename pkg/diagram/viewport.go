// Pan/zoom transform and the mapping from diagram coordinates to an
// output surface.

package diagram

import (
	"fmt"
	"math"
)

// Zoom limits.
const (
	MinScale = 0.1
	MaxScale = 4

	// wheelFactor converts a wheel delta in pixels to a log2 zoom step.
	wheelFactor = 0.002
)

// ClampScale bounds k to [MinScale, MaxScale].
func ClampScale(k float64) float64 {
	if math.IsNaN(k) || k < MinScale {
		return MinScale
	}
	return math.Min(k, MaxScale)
}

// Transform is a translate-then-uniform-scale display transform. It never
// touches node coordinates.
type Transform struct {
	X, Y float64
	K    float64
}

// Identity is the transform that leaves points unchanged.
var Identity = Transform{K: 1}

// Apply maps a diagram point to view coordinates.
func (t Transform) Apply(p Point) Point {
	return Point{p.X*t.K + t.X, p.Y*t.K + t.Y}
}

// Invert maps a view point back to diagram coordinates.
func (t Transform) Invert(p Point) Point {
	return Point{(p.X - t.X) / t.K, (p.Y - t.Y) / t.K}
}

// Pan shifts the transform by a view-space delta.
func (t Transform) Pan(dx, dy float64) Transform {
	t.X += dx
	t.Y += dy
	return t
}

// ZoomAt changes the scale to k, clamped, keeping the view point p fixed.
func (t Transform) ZoomAt(p Point, k float64) Transform {
	k = ClampScale(k)
	w := t.Invert(p)
	return Transform{X: p.X - w.X*k, Y: p.Y - w.Y*k, K: k}
}

// Wheel zooms around p for a wheel event with vertical delta dy in
// pixels. Scrolling down zooms out.
func (t Transform) Wheel(p Point, dy float64) Transform {
	return t.ZoomAt(p, t.K*math.Pow(2, -dy*wheelFactor))
}

// String formats the transform as an SVG transform attribute value.
func (t Transform) String() string {
	return fmt.Sprintf("translate(%s,%s) scale(%s)", num(t.X), num(t.Y), trimFloat(t.K))
}

func trimFloat(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	if s[len(s)-1] == '.' {
		s = s[:len(s)-1]
	}
	return s
}

// FitTransform returns the transform that centers content inside a view
// box of the given size, scaled down (never up) to fit with padding.
func FitTransform(content Box, width, height, padding float64) Transform {
	if content.Width <= 0 && content.Height <= 0 {
		c := content.Center()
		return Transform{X: width/2 - c.X, Y: height/2 - c.Y, K: 1}
	}
	availW := math.Max(width-2*padding, 1)
	availH := math.Max(height-2*padding, 1)
	k := 1.0
	if content.Width > 0 {
		k = math.Min(k, availW/content.Width)
	}
	if content.Height > 0 {
		k = math.Min(k, availH/content.Height)
	}
	k = ClampScale(k)
	c := content.Center()
	return Transform{X: width/2 - c.X*k, Y: height/2 - c.Y*k, K: k}
}

// Viewport is the visible window onto a scene: a view box in diagram
// coordinates plus the user's pan/zoom transform applied inside it.
type Viewport struct {
	ViewBox   Box
	Transform Transform
}

// NewViewport returns a viewport showing vb with no pan or zoom.
func NewViewport(vb Box) Viewport {
	return Viewport{ViewBox: vb, Transform: Identity}
}

// Visible returns the diagram-space window currently on screen.
func (v Viewport) Visible() Box {
	t := v.transform()
	a := t.Invert(Point{v.ViewBox.MinX, v.ViewBox.MinY})
	b := t.Invert(Point{v.ViewBox.MinX + v.ViewBox.Width, v.ViewBox.MinY + v.ViewBox.Height})
	return Box{MinX: a.X, MinY: a.Y, Width: b.X - a.X, Height: b.Y - a.Y}
}

func (v Viewport) transform() Transform {
	if v.Transform.K == 0 {
		return Identity
	}
	return v.Transform
}

// surfaceFit returns the uniform scale and offset that place the view box
// centered in a w×h surface, like preserveAspectRatio="xMidYMid meet".
func (v Viewport) surfaceFit(w, h float64) (s, ox, oy float64) {
	vb := v.ViewBox
	if vb.Width <= 0 || vb.Height <= 0 {
		return 1, w/2 - vb.MinX, h/2 - vb.MinY
	}
	s = math.Min(w/vb.Width, h/vb.Height)
	ox = (w-vb.Width*s)/2 - vb.MinX*s
	oy = (h-vb.Height*s)/2 - vb.MinY*s
	return s, ox, oy
}

// Project maps a diagram point to pixel coordinates on a w×h surface.
func (v Viewport) Project(p Point, w, h float64) Point {
	s, ox, oy := v.surfaceFit(w, h)
	q := v.transform().Apply(p)
	return Point{q.X*s + ox, q.Y*s + oy}
}

// Unproject maps a surface pixel back to diagram coordinates.
func (v Viewport) Unproject(p Point, w, h float64) Point {
	s, ox, oy := v.surfaceFit(w, h)
	q := Point{(p.X - ox) / s, (p.Y - oy) / s}
	return v.transform().Invert(q)
}

// PixelScale is the number of surface pixels per diagram unit.
func (v Viewport) PixelScale(w, h float64) float64 {
	s, _, _ := v.surfaceFit(w, h)
	return s * v.transform().K
}

// PanPixels pans by a delta measured in surface pixels.
func (v Viewport) PanPixels(dx, dy, w, h float64) Viewport {
	s, _, _ := v.surfaceFit(w, h)
	v.Transform = v.transform().Pan(dx/s, dy/s)
	return v
}

// WheelAt zooms around a surface pixel.
func (v Viewport) WheelAt(p Point, dy, w, h float64) Viewport {
	s, ox, oy := v.surfaceFit(w, h)
	q := Point{(p.X - ox) / s, (p.Y - oy) / s}
	v.Transform = v.transform().Wheel(q, dy)
	return v
}

// Fit resets the view to show content with padding and no zoom.
func (v Viewport) Fit(content Box, padding float64) Viewport {
	return NewViewport(content.Pad(padding))
}
