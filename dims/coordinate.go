// Package dims implements the sparse dimension coordinate of a sub-block and
// the per-dimension interval set used as document bounds.
package dims

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// Coordinate maps a subset of the nine dimensions to integer positions.
// The zero value is an empty coordinate.
type Coordinate struct {
	values [format.DimensionCount]int
	valid  uint16
}

func bit(d format.DimensionIndex) uint16 {
	return 1 << (d - 1)
}

// NewCoordinate creates a coordinate from a dimension to value map.
func NewCoordinate(values map[format.DimensionIndex]int) Coordinate {
	var c Coordinate
	for d, v := range values {
		c.Set(d, v)
	}

	return c
}

// Set assigns v to dimension d. Invalid dimensions are ignored.
func (c *Coordinate) Set(d format.DimensionIndex, v int) {
	if !d.IsValid() {
		return
	}
	c.values[d-1] = v
	c.valid |= bit(d)
}

// Clear removes dimension d from the coordinate.
func (c *Coordinate) Clear(d format.DimensionIndex) {
	if !d.IsValid() {
		return
	}
	c.valid &^= bit(d)
	c.values[d-1] = 0
}

// TryGet returns the value of dimension d if present.
func (c Coordinate) TryGet(d format.DimensionIndex) (int, bool) {
	if !c.IsValid(d) {
		return 0, false
	}

	return c.values[d-1], true
}

// IsValid reports whether dimension d is present.
func (c Coordinate) IsValid(d format.DimensionIndex) bool {
	return d.IsValid() && c.valid&bit(d) != 0
}

// Count returns the number of dimensions present.
func (c Coordinate) Count() int {
	n := 0
	for v := c.valid; v != 0; v &= v - 1 {
		n++
	}

	return n
}

// IsEmpty reports whether no dimension is present.
func (c Coordinate) IsEmpty() bool {
	return c.valid == 0
}

// Dimensions returns the present dimensions in canonical order.
func (c Coordinate) Dimensions() []format.DimensionIndex {
	out := make([]format.DimensionIndex, 0, c.Count())
	for _, d := range format.AllDimensions {
		if c.IsValid(d) {
			out = append(out, d)
		}
	}

	return out
}

// Equal reports whether both coordinates contain the same dimensions with the same values.
func (c Coordinate) Equal(o Coordinate) bool {
	if c.valid != o.valid {
		return false
	}
	for _, d := range format.AllDimensions {
		if c.IsValid(d) && c.values[d-1] != o.values[d-1] {
			return false
		}
	}

	return true
}

// Matches reports whether every dimension present in query is present in c
// with the same value. Dimensions absent from query match anything.
func (c Coordinate) Matches(query Coordinate) bool {
	for _, d := range format.AllDimensions {
		qv, ok := query.TryGet(d)
		if !ok {
			continue
		}
		v, ok := c.TryGet(d)
		if !ok || v != qv {
			return false
		}
	}

	return true
}

// String formats the coordinate as e.g. "Z0C1T2" in canonical order.
func (c Coordinate) String() string {
	var sb strings.Builder
	for _, d := range format.AllDimensions {
		if v, ok := c.TryGet(d); ok {
			sb.WriteByte(d.Char())
			sb.WriteString(strconv.Itoa(v))
		}
	}

	return sb.String()
}

// Parse parses a coordinate string like "C0 Z1 T-2". Whitespace between
// tokens is ignored and dimension characters are case-insensitive.
//
// Returns:
//   - Coordinate: the parsed coordinate
//   - error: ErrCoordinateSyntax or ErrDuplicateDimension
func Parse(s string) (Coordinate, error) {
	var c Coordinate
	i := 0
	for {
		i = skipSpaces(s, i)
		if i >= len(s) {
			return c, nil
		}

		d := format.DimensionFromChar(s[i])
		if d == format.DimensionInvalid {
			return Coordinate{}, fmt.Errorf("%w: unexpected character %q at %d", errs.ErrCoordinateSyntax, s[i], i)
		}
		if c.IsValid(d) {
			return Coordinate{}, fmt.Errorf("%w: %s", errs.ErrDuplicateDimension, d)
		}
		i = skipSpaces(s, i+1)

		v, next, err := parseInt(s, i)
		if err != nil {
			return Coordinate{}, err
		}
		c.Set(d, v)
		i = next
	}
}

func skipSpaces(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}

	return i
}

func parseInt(s string, i int) (int, int, error) {
	start := i
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	digits := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == digits {
		return 0, 0, fmt.Errorf("%w: number expected at %d", errs.ErrCoordinateSyntax, start)
	}

	v, err := strconv.Atoi(s[start:i])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", errs.ErrCoordinateSyntax, err)
	}

	return v, i, nil
}
