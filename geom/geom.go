// Package geom provides the integer and floating point rectangle types used
// to describe sub-block placement and regions of interest, and the transform
// between the raw sub-block coordinate system and the pixel coordinate system.
package geom

import "math"

// IntPoint is a point with integer coordinates.
type IntPoint struct {
	X, Y int
}

// IntSize is a width/height pair.
type IntSize struct {
	W, H int
}

// IntRect is an axis-aligned rectangle. A rectangle with a negative width or
// height is invalid; a valid rectangle with zero width or height is empty.
type IntRect struct {
	X, Y, W, H int
}

// DblRect is an axis-aligned rectangle with floating point coordinates.
type DblRect struct {
	X, Y, W, H float64
}

// InvalidRect returns the canonical invalid rectangle.
func InvalidRect() IntRect {
	return IntRect{W: -1, H: -1}
}

// IsValid reports whether the rectangle has a non-negative extent.
func (r IntRect) IsValid() bool {
	return r.W >= 0 && r.H >= 0
}

// IsNonEmpty reports whether the rectangle covers at least one pixel.
func (r IntRect) IsNonEmpty() bool {
	return r.W > 0 && r.H > 0
}

// Right returns the exclusive right edge.
func (r IntRect) Right() int { return r.X + r.W }

// Bottom returns the exclusive bottom edge.
func (r IntRect) Bottom() int { return r.Y + r.H }

// Area returns W*H, or 0 for an invalid rectangle.
func (r IntRect) Area() int64 {
	if !r.IsValid() {
		return 0
	}

	return int64(r.W) * int64(r.H)
}

// Size returns the extent of the rectangle.
func (r IntRect) Size() IntSize {
	return IntSize{W: r.W, H: r.H}
}

// Intersect returns the intersection of r and o. The result is invalid if the
// rectangles do not overlap.
func (r IntRect) Intersect(o IntRect) IntRect {
	if !r.IsValid() || !o.IsValid() {
		return InvalidRect()
	}

	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.Right(), o.Right())
	y2 := min(r.Bottom(), o.Bottom())
	if x2 <= x1 || y2 <= y1 {
		return InvalidRect()
	}

	return IntRect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// IntersectsWith reports whether r and o share at least one pixel.
func (r IntRect) IntersectsWith(o IntRect) bool {
	return r.Intersect(o).IsNonEmpty()
}

// Union returns the bounding box of r and o. An invalid operand is ignored.
func (r IntRect) Union(o IntRect) IntRect {
	if !r.IsValid() {
		return o
	}
	if !o.IsValid() {
		return r
	}

	x1 := min(r.X, o.X)
	y1 := min(r.Y, o.Y)
	x2 := max(r.Right(), o.Right())
	y2 := max(r.Bottom(), o.Bottom())

	return IntRect{X: x1, Y: y1, W: x2 - x1, H: y2 - y1}
}

// Contains reports whether o lies completely inside r.
func (r IntRect) Contains(o IntRect) bool {
	return o.X >= r.X && o.Y >= r.Y && o.Right() <= r.Right() && o.Bottom() <= r.Bottom()
}

// Translate returns r moved by (dx, dy).
func (r IntRect) Translate(dx, dy int) IntRect {
	return IntRect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// ToDbl converts r to a floating point rectangle.
func (r IntRect) ToDbl() DblRect {
	return DblRect{X: float64(r.X), Y: float64(r.Y), W: float64(r.W), H: float64(r.H)}
}

// IsValid reports whether the rectangle has a non-negative, finite extent.
func (r DblRect) IsValid() bool {
	return r.W >= 0 && r.H >= 0 && !math.IsNaN(r.W) && !math.IsNaN(r.H)
}
