// Geometric primitives shared by layout, rendering and the viewport.

package diagram

import (
	"fmt"
	"math"
)

// Point represents a 2D coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p+q.
func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }

// Sub returns p-q.
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }

// Scale returns p*k.
func (p Point) Scale(k float64) Point { return Point{p.X * k, p.Y * k} }

// Dot returns the dot product of p and q.
func (p Point) Dot(q Point) float64 { return p.X*q.X + p.Y*q.Y }

// Len returns the distance from the origin.
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }

// Rect represents an axis-aligned rectangle.
type Rect struct {
	X, Y float64 // Center
	W, H float64 // Full width and height
}

// Min returns the top-left corner.
func (r Rect) Min() Point { return Point{r.X - r.W/2, r.Y - r.H/2} }

// Max returns the bottom-right corner.
func (r Rect) Max() Point { return Point{r.X + r.W/2, r.Y + r.H/2} }

// Contains reports whether p lies inside the rectangle or on its border.
func (r Rect) Contains(p Point) bool {
	lo, hi := r.Min(), r.Max()
	return p.X >= lo.X && p.X <= hi.X && p.Y >= lo.Y && p.Y <= hi.Y
}

// Translate moves the rectangle's center by p.
func (r Rect) Translate(p Point) Rect {
	r.X += p.X
	r.Y += p.Y
	return r
}

// RectOverlap returns the overlap area between two rectangles.
// Returns 0 if they don't overlap.
func RectOverlap(a, b Rect) float64 {
	// Half dimensions
	aHalfW, aHalfH := a.W/2, a.H/2
	bHalfW, bHalfH := b.W/2, b.H/2

	dx := math.Abs(a.X - b.X)
	dy := math.Abs(a.Y - b.Y)

	overlapX := (aHalfW + bHalfW) - dx
	overlapY := (aHalfH + bHalfH) - dy

	if overlapX <= 0 || overlapY <= 0 {
		return 0
	}

	return overlapX * overlapY
}

// Box is a visible coordinate window in the form of an SVG viewBox.
type Box struct {
	MinX   float64 `json:"minX"`
	MinY   float64 `json:"minY"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// BoundingBox returns the smallest box containing every point.
// It returns the zero Box for no points.
func BoundingBox(points []Point) Box {
	if len(points) == 0 {
		return Box{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return Box{MinX: minX, MinY: minY, Width: maxX - minX, Height: maxY - minY}
}

// Pad grows the box by p on every side.
func (b Box) Pad(p float64) Box {
	return Box{MinX: b.MinX - p, MinY: b.MinY - p, Width: b.Width + 2*p, Height: b.Height + 2*p}
}

// Union returns the smallest box containing both boxes. A zero-size box
// with zero origin counts as empty.
func (b Box) Union(o Box) Box {
	if b.IsZero() {
		return o
	}
	if o.IsZero() {
		return b
	}
	minX := math.Min(b.MinX, o.MinX)
	minY := math.Min(b.MinY, o.MinY)
	maxX := math.Max(b.MinX+b.Width, o.MinX+o.Width)
	maxY := math.Max(b.MinY+b.Height, o.MinY+o.Height)
	return Box{MinX: minX, MinY: minY, Width: maxX - minX, Height: maxY - minY}
}

// IsZero reports whether the box is the zero value.
func (b Box) IsZero() bool { return b == Box{} }

// Center returns the box midpoint.
func (b Box) Center() Point {
	return Point{b.MinX + b.Width/2, b.MinY + b.Height/2}
}

// Contains reports whether p lies inside the box.
func (b Box) Contains(p Point) bool {
	return p.X >= b.MinX && p.X <= b.MinX+b.Width &&
		p.Y >= b.MinY && p.Y <= b.MinY+b.Height
}

// ContainsBox reports whether o lies entirely inside the box.
func (b Box) ContainsBox(o Box) bool {
	return b.Contains(Point{o.MinX, o.MinY}) && b.Contains(Point{o.MinX + o.Width, o.MinY + o.Height})
}

// String formats the box as an SVG viewBox attribute value.
func (b Box) String() string {
	return fmt.Sprintf("%s %s %s %s", num(b.MinX), num(b.MinY), num(b.Width), num(b.Height))
}

// num formats a coordinate with at most one decimal and no trailing zero.
func num(v float64) string {
	v = math.Round(v*10) / 10
	if v == math.Trunc(v) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
