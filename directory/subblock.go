package directory

import (
	"fmt"
	"math"
	"slices"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/internal/options"
)

// Option configures a SubBlockDirectory.
type Option = options.Option[*SubBlockDirectory]

// WithBounds restricts the coordinates accepted by Add. Every added
// coordinate must contain exactly the bounded dimensions, with values inside
// their intervals.
func WithBounds(bounds dims.Bounds) Option {
	return options.NoError(func(d *SubBlockDirectory) {
		d.bounds = bounds
		d.hasBounds = true
	})
}

// WithMIndexRange requires every added entry to carry an M-index in
// [minIndex, maxIndex].
func WithMIndexRange(minIndex, maxIndex int) Option {
	return options.New(func(d *SubBlockDirectory) error {
		if minIndex > maxIndex {
			return fmt.Errorf("%w: M-index range [%d, %d]", errs.ErrInvalidArgument, minIndex, maxIndex)
		}
		d.mRange = [2]int{minIndex, maxIndex}
		d.hasMRange = true

		return nil
	})
}

// WithAllowDuplicates disables the rejection of entries with a coordinate and
// M-index already present.
func WithAllowDuplicates(allow bool) Option {
	return options.NoError(func(d *SubBlockDirectory) {
		d.allowDuplicates = allow
	})
}

// duplicateKey identifies entries that may not coexist. Entries are told
// apart by pyramid layer, coordinate and M-index; without M-index the
// logical position takes its place.
type duplicateKey struct {
	zoom  int64
	coord dims.Coordinate
	m     int
	x, y  int
}

func keyOf(e *SubBlockEntry) duplicateKey {
	k := duplicateKey{
		zoom:  int64(math.Round(e.Zoom() * 10000)),
		coord: e.Coordinate,
		m:     e.MIndex,
	}
	if !e.IsMIndexValid() {
		k.x, k.y = e.LogicalRect.X, e.LogicalRect.Y
	}

	return k
}

// SubBlockDirectory is an index-addressed, insertion-ordered set of sub-block
// entries. Indices are assigned on insertion and stay stable when other
// entries are removed.
//
// SubBlockDirectory is not safe for concurrent mutation. Concurrent readers
// are safe as long as no goroutine mutates the directory.
type SubBlockDirectory struct {
	entries map[int]SubBlockEntry
	order   []int
	next    int
	keys    map[duplicateKey]int

	bounds          dims.Bounds
	hasBounds       bool
	mRange          [2]int
	hasMRange       bool
	allowDuplicates bool

	stats        *Statistics
	pyramidStats *PyramidStatistics
}

// NewSubBlockDirectory creates an empty directory.
func NewSubBlockDirectory(opts ...Option) (*SubBlockDirectory, error) {
	d := &SubBlockDirectory{
		entries: make(map[int]SubBlockEntry),
		keys:    make(map[duplicateKey]int),
	}
	if err := options.Apply(d, opts...); err != nil {
		return nil, err
	}

	return d, nil
}

// CheckCoordinate validates an entry against the configured bounds without
// adding it.
//
// Returns:
//   - error: ErrSubBlockCoordinateInsufficient, ErrSubBlockCoordinateOutOfBounds or
//     ErrAddCoordinateContainsUnexpectedDimension; nil if the entry is acceptable
func (d *SubBlockDirectory) CheckCoordinate(e *SubBlockEntry) error {
	if d.hasBounds {
		for _, dim := range d.bounds.Dimensions() {
			iv, _ := d.bounds.TryGet(dim)
			v, ok := e.Coordinate.TryGet(dim)
			if !ok {
				return fmt.Errorf("%w: dimension %s missing from %s", errs.ErrSubBlockCoordinateInsufficient, dim, e.Coordinate)
			}
			if !iv.Contains(v) {
				return fmt.Errorf("%w: %s=%d not in [%d, %d)", errs.ErrSubBlockCoordinateOutOfBounds, dim, v, iv.Start, iv.End())
			}
		}
		if e.Coordinate.Count() != d.bounds.Count() {
			return fmt.Errorf("%w: %s with bounds %s", errs.ErrAddCoordinateContainsUnexpectedDimension, e.Coordinate, d.bounds)
		}
	}

	if d.hasMRange {
		if !e.IsMIndexValid() {
			return fmt.Errorf("%w: M-index required", errs.ErrSubBlockCoordinateInsufficient)
		}
		if e.MIndex < d.mRange[0] || e.MIndex > d.mRange[1] {
			return fmt.Errorf("%w: M-index %d not in [%d, %d]", errs.ErrSubBlockCoordinateOutOfBounds, e.MIndex, d.mRange[0], d.mRange[1])
		}
	}

	return nil
}

func (d *SubBlockDirectory) checkDuplicate(e *SubBlockEntry, except int) error {
	if d.allowDuplicates {
		return nil
	}
	if idx, ok := d.keys[keyOf(e)]; ok && idx != except {
		return fmt.Errorf("%w: %s M=%d (index %d)", errs.ErrAddCoordinateAlreadyExisting, e.Coordinate, e.MIndex, idx)
	}

	return nil
}

// Add validates e and appends it. On error the directory is unchanged.
//
// Returns:
//   - int: Index of the new entry
//   - error: A coordinate validation error or ErrAddCoordinateAlreadyExisting
func (d *SubBlockDirectory) Add(e SubBlockEntry) (int, error) {
	if err := d.CheckCoordinate(&e); err != nil {
		return -1, err
	}
	if err := d.checkDuplicate(&e, -1); err != nil {
		return -1, err
	}

	return d.Append(e), nil
}

// Append adds e without validation. It is used when loading an existing
// directory, which is taken as is.
func (d *SubBlockDirectory) Append(e SubBlockEntry) int {
	idx := d.next
	d.next++
	d.entries[idx] = e
	d.order = append(d.order, idx)
	if _, ok := d.keys[keyOf(&e)]; !ok {
		d.keys[keyOf(&e)] = idx
	}
	d.invalidate()

	return idx
}

// Replace overwrites the entry at index with e. The new entry is validated
// like Add, ignoring a clash with the entry being replaced.
func (d *SubBlockDirectory) Replace(index int, e SubBlockEntry) error {
	old, ok := d.entries[index]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidSubBlockID, index)
	}
	if err := d.CheckCoordinate(&e); err != nil {
		return err
	}
	if err := d.checkDuplicate(&e, index); err != nil {
		return err
	}

	d.dropKey(&old, index)
	d.entries[index] = e
	if _, ok := d.keys[keyOf(&e)]; !ok {
		d.keys[keyOf(&e)] = index
	}
	d.invalidate()

	return nil
}

// Update changes the location fields of the entry at index without touching
// its identity. It is used after the backing segment moved.
func (d *SubBlockDirectory) Update(index int, fn func(e *SubBlockEntry)) error {
	e, ok := d.entries[index]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidSubBlockID, index)
	}
	fn(&e)
	d.entries[index] = e
	d.invalidate()

	return nil
}

// Remove deletes the entry at index.
func (d *SubBlockDirectory) Remove(index int) error {
	e, ok := d.entries[index]
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidSubBlockID, index)
	}

	d.dropKey(&e, index)
	delete(d.entries, index)
	d.order = slices.DeleteFunc(d.order, func(i int) bool { return i == index })
	d.invalidate()

	return nil
}

func (d *SubBlockDirectory) dropKey(e *SubBlockEntry, index int) {
	k := keyOf(e)
	if d.keys[k] == index {
		delete(d.keys, k)
	}
}

func (d *SubBlockDirectory) invalidate() {
	d.stats = nil
	d.pyramidStats = nil
}

// Get returns the entry at index.
func (d *SubBlockDirectory) Get(index int) (SubBlockEntry, bool) {
	e, ok := d.entries[index]
	return e, ok
}

// Count returns the number of entries.
func (d *SubBlockDirectory) Count() int {
	return len(d.order)
}

// Indices returns the entry indices in addition order.
func (d *SubBlockDirectory) Indices() []int {
	return slices.Clone(d.order)
}

// EnumerateAll calls fn for every entry in addition order until fn returns false.
func (d *SubBlockDirectory) EnumerateAll(fn func(index int, e *SubBlockEntry) bool) {
	for _, idx := range d.order {
		e := d.entries[idx]
		if !fn(idx, &e) {
			return
		}
	}
}

// EnumerateSubset calls fn for the entries matching plane and roi, in
// addition order, until fn returns false.
//
// Parameters:
//   - plane: Dimensions to match; dimensions absent from plane match any value
//   - roi: Logical rectangle the entry must intersect; nil disables the test
//   - onlyLayer0: Skip minified pyramid tiles
//   - fn: Callback receiving the index and entry
func (d *SubBlockDirectory) EnumerateSubset(plane dims.Coordinate, roi *geom.IntRect, onlyLayer0 bool, fn func(index int, e *SubBlockEntry) bool) {
	d.EnumerateAll(func(index int, e *SubBlockEntry) bool {
		if !e.Coordinate.Matches(plane) {
			return true
		}
		if roi != nil && !e.LogicalRect.IntersectsWith(*roi) {
			return true
		}
		if onlyLayer0 && !e.IsLayer0() {
			return true
		}

		return fn(index, e)
	})
}
