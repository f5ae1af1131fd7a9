package accessor

import (
	"slices"

	"github.com/arloliu/czi/geom"
)

// coverage is a union of rectangles kept as a set of disjoint rectangles.
type coverage struct {
	rects []geom.IntRect
}

// add merges r into the union. Only the parts of r not yet covered are
// stored, split into at most four rectangles per existing rectangle.
func (c *coverage) add(r geom.IntRect) {
	if !r.IsNonEmpty() {
		return
	}

	pending := []geom.IntRect{r}
	for _, have := range c.rects {
		var next []geom.IntRect
		for _, p := range pending {
			next = append(next, subtract(p, have)...)
		}
		pending = next
		if len(pending) == 0 {
			return
		}
	}
	c.rects = append(c.rects, pending...)
}

// areaWithin returns the covered area inside roi.
func (c *coverage) areaWithin(roi geom.IntRect) int64 {
	var area int64
	for _, r := range c.rects {
		if is := r.Intersect(roi); is.IsNonEmpty() {
			area += is.Area()
		}
	}

	return area
}

// subtract returns the parts of a outside b as disjoint rectangles.
func subtract(a, b geom.IntRect) []geom.IntRect {
	is := a.Intersect(b)
	if !is.IsNonEmpty() {
		return []geom.IntRect{a}
	}

	out := make([]geom.IntRect, 0, 4)
	if is.Y > a.Y {
		out = append(out, geom.IntRect{X: a.X, Y: a.Y, W: a.W, H: is.Y - a.Y})
	}
	if is.Bottom() < a.Bottom() {
		out = append(out, geom.IntRect{X: a.X, Y: is.Bottom(), W: a.W, H: a.Bottom() - is.Bottom()})
	}
	if is.X > a.X {
		out = append(out, geom.IntRect{X: a.X, Y: is.Y, W: is.X - a.X, H: is.H})
	}
	if is.Right() < a.Right() {
		out = append(out, geom.IntRect{X: is.Right(), Y: is.Y, W: a.Right() - is.Right(), H: is.H})
	}

	return out
}

// visibleInPaintOrder returns the positions in rects, ascending, of the
// rectangles that contribute at least one pixel to roi when rects are painted
// in order and later rectangles overdraw earlier ones.
func visibleInPaintOrder(roi geom.IntRect, rects []geom.IntRect) []int {
	if len(rects) == 0 || !roi.IsNonEmpty() {
		return nil
	}

	total := roi.Area()
	var (
		cov     coverage
		covered int64
		visible []int
	)
	for i := len(rects) - 1; i >= 0; i-- {
		cov.add(rects[i].Intersect(roi))
		now := cov.areaWithin(roi)
		if now > covered {
			visible = append(visible, i)
			covered = now
			if covered == total {
				break
			}
		}
	}

	slices.Reverse(visible)

	return visible
}
