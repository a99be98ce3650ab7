// Package geometry provides basic geometric types used throughout the application.
package geometry

import (
	"fmt"
	"image"
)

// PointInt represents a 2D point with integer coordinates.
type PointInt struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns the sum of two points.
func (p PointInt) Add(other PointInt) PointInt {
	return PointInt{X: p.X + other.X, Y: p.Y + other.Y}
}

// SizeInt represents a 2D size in pixels.
type SizeInt struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// String returns the size formatted as "WxH".
func (s SizeInt) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// RectInt represents a rectangle with integer coordinates.
type RectInt struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRectInt creates a rectangle from its top-left corner and size.
func NewRectInt(origin PointInt, size SizeInt) RectInt {
	return RectInt{X: origin.X, Y: origin.Y, Width: size.Width, Height: size.Height}
}

// Right returns the exclusive right edge.
func (r RectInt) Right() int {
	return r.X + r.Width
}

// Bottom returns the exclusive bottom edge.
func (r RectInt) Bottom() int {
	return r.Y + r.Height
}

// Empty reports whether the rectangle has no area.
func (r RectInt) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Clamp returns the part of the rectangle that lies inside a width x height image.
func (r RectInt) Clamp(width, height int) RectInt {
	x0 := max(r.X, 0)
	y0 := max(r.Y, 0)
	x1 := min(r.Right(), width)
	y1 := min(r.Bottom(), height)
	if x1 <= x0 || y1 <= y0 {
		return RectInt{X: x0, Y: y0}
	}
	return RectInt{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Image converts to an image.Rectangle.
func (r RectInt) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.Right(), r.Bottom())
}

// FromImageRect converts an image.Rectangle to a RectInt.
func FromImageRect(r image.Rectangle) RectInt {
	return RectInt{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// String returns a compact representation for logs.
func (r RectInt) String() string {
	return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.Width, r.Height)
}
