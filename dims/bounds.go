package dims

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// Interval is the half-open range [Start, Start+Size).
type Interval struct {
	Start int
	Size  int
}

// End returns the exclusive end of the interval.
func (i Interval) End() int { return i.Start + i.Size }

// Contains reports whether v lies inside the interval.
func (i Interval) Contains(v int) bool {
	return v >= i.Start && v < i.End()
}

// Bounds is a set of per-dimension intervals.
type Bounds struct {
	intervals [format.DimensionCount]Interval
	valid     uint16
}

// Set assigns the interval of dimension d.
func (b *Bounds) Set(d format.DimensionIndex, start, size int) {
	if !d.IsValid() {
		return
	}
	b.intervals[d-1] = Interval{Start: start, Size: size}
	b.valid |= bit(d)
}

// Clear removes dimension d.
func (b *Bounds) Clear(d format.DimensionIndex) {
	if !d.IsValid() {
		return
	}
	b.valid &^= bit(d)
}

// TryGet returns the interval of dimension d if present.
func (b Bounds) TryGet(d format.DimensionIndex) (Interval, bool) {
	if !b.IsValid(d) {
		return Interval{}, false
	}

	return b.intervals[d-1], true
}

// IsValid reports whether dimension d has an interval.
func (b Bounds) IsValid(d format.DimensionIndex) bool {
	return d.IsValid() && b.valid&bit(d) != 0
}

// Count returns the number of bounded dimensions.
func (b Bounds) Count() int {
	n := 0
	for v := b.valid; v != 0; v &= v - 1 {
		n++
	}

	return n
}

// IsEmpty reports whether no dimension is bounded.
func (b Bounds) IsEmpty() bool {
	return b.valid == 0
}

// Dimensions returns the bounded dimensions in canonical order.
func (b Bounds) Dimensions() []format.DimensionIndex {
	out := make([]format.DimensionIndex, 0, b.Count())
	for _, d := range format.AllDimensions {
		if b.IsValid(d) {
			out = append(out, d)
		}
	}

	return out
}

// Extend grows the interval of d so that it contains v, adding d if absent.
func (b *Bounds) Extend(d format.DimensionIndex, v int) {
	iv, ok := b.TryGet(d)
	if !ok {
		b.Set(d, v, 1)
		return
	}

	start := min(iv.Start, v)
	end := max(iv.End(), v+1)
	b.Set(d, start, end-start)
}

// String formats the bounds as e.g. "C0:2Z0:5" (start:size).
func (b Bounds) String() string {
	var sb strings.Builder
	for _, d := range format.AllDimensions {
		if iv, ok := b.TryGet(d); ok {
			sb.WriteByte(d.Char())
			sb.WriteString(strconv.Itoa(iv.Start))
			sb.WriteByte(':')
			sb.WriteString(strconv.Itoa(iv.Size))
		}
	}

	return sb.String()
}

// ParseBounds parses a string of the form "C0:2 Z0:5" where each item is
// dimension, start, colon, size.
func ParseBounds(s string) (Bounds, error) {
	var b Bounds
	i := 0
	for {
		i = skipSpaces(s, i)
		if i >= len(s) {
			return b, nil
		}

		d := format.DimensionFromChar(s[i])
		if d == format.DimensionInvalid {
			return Bounds{}, fmt.Errorf("%w: unexpected character %q at %d", errs.ErrCoordinateSyntax, s[i], i)
		}
		if b.IsValid(d) {
			return Bounds{}, fmt.Errorf("%w: %s", errs.ErrDuplicateDimension, d)
		}

		start, next, err := parseInt(s, skipSpaces(s, i+1))
		if err != nil {
			return Bounds{}, err
		}
		next = skipSpaces(s, next)
		if next >= len(s) || s[next] != ':' {
			return Bounds{}, fmt.Errorf("%w: ':' expected at %d", errs.ErrCoordinateSyntax, next)
		}

		size, next, err := parseInt(s, skipSpaces(s, next+1))
		if err != nil {
			return Bounds{}, err
		}
		if size < 0 {
			return Bounds{}, fmt.Errorf("%w: negative size for %s", errs.ErrCoordinateSyntax, d)
		}

		b.Set(d, start, size)
		i = next
	}
}
