package directory

import (
	"testing"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/section"
	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func mustCoord(t *testing.T, s string) dims.Coordinate {
	t.Helper()
	c, err := dims.Parse(s)
	require.NoError(t, err)

	return c
}

func tile(t *testing.T, coord string, m, x, y, w, h int) SubBlockEntry {
	t.Helper()

	return SubBlockEntry{
		Coordinate:   mustCoord(t, coord),
		MIndex:       m,
		LogicalRect:  geom.IntRect{X: x, Y: y, W: w, H: h},
		PhysicalSize: geom.IntSize{W: w, H: h},
		PixelType:    format.PixelTypeGray8,
		Compression:  format.CompressionUnCompressed,
	}
}

func newDir(t *testing.T, opts ...Option) *SubBlockDirectory {
	t.Helper()
	d, err := NewSubBlockDirectory(opts...)
	require.NoError(t, err)

	return d
}

func TestEntryDVConversion(t *testing.T) {
	e := tile(t, "Z3C1S2", 7, -5, 10, 64, 32)
	e.PhysicalSize = geom.IntSize{W: 32, H: 16}
	e.PyramidType = format.PyramidTypeSingleSubBlock
	e.FilePosition = 4096

	dv := e.ToDV()
	require.Equal(t, byte(section.DimCharX), dv.Dimensions[0].Dimension)
	require.Equal(t, int32(32), dv.Dimensions[0].StoredSize)

	parsed, err := section.ParseSubBlockEntryDV(dv.Bytes())
	require.NoError(t, err)

	back, err := EntryFromDV(&parsed)
	require.NoError(t, err)
	require.True(t, back.Coordinate.Equal(e.Coordinate))
	require.Equal(t, e, back)

	t.Run("Without M-index", func(t *testing.T) {
		e := tile(t, "C0", InvalidMIndex, 0, 0, 4, 4)
		dv := e.ToDV()
		back, err := EntryFromDV(&dv)
		require.NoError(t, err)
		require.False(t, back.IsMIndexValid())
	})

	t.Run("Missing Y dimension", func(t *testing.T) {
		dv := section.SubBlockEntryDV{Dimensions: []section.DimensionEntry{{Dimension: 'X', Size: 1, StoredSize: 1}}}
		_, err := EntryFromDV(&dv)
		require.ErrorIs(t, err, errs.ErrCorruptedData)
	})
}

func TestAdd_Bounds(t *testing.T) {
	var bounds dims.Bounds
	bounds.Set(format.DimensionC, 0, 2)
	bounds.Set(format.DimensionZ, 0, 3)

	tests := []struct {
		name  string
		coord string
		m     int
		err   error
	}{
		{"Inside", "C1Z2", 0, nil},
		{"Out of bounds", "C2Z0", 0, errs.ErrSubBlockCoordinateOutOfBounds},
		{"Negative", "C0Z-1", 0, errs.ErrSubBlockCoordinateOutOfBounds},
		{"Missing dimension", "C0", 0, errs.ErrSubBlockCoordinateInsufficient},
		{"Unexpected dimension", "C0Z0T0", 0, errs.ErrAddCoordinateContainsUnexpectedDimension},
		{"M out of range", "C0Z0", 5, errs.ErrSubBlockCoordinateOutOfBounds},
		{"M missing", "C0Z0", InvalidMIndex, errs.ErrSubBlockCoordinateInsufficient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDir(t, WithBounds(bounds), WithMIndexRange(0, 3))
			_, err := d.Add(tile(t, tt.coord, tt.m, 0, 0, 1, 1))
			if tt.err == nil {
				require.NoError(t, err)
				require.Equal(t, 1, d.Count())
			} else {
				require.ErrorIs(t, err, tt.err)
				require.Equal(t, 0, d.Count())
			}
		})
	}

	_, err := NewSubBlockDirectory(WithMIndexRange(3, 1))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestAdd_BoundsProperty(t *testing.T) {
	var bounds dims.Bounds
	bounds.Set(format.DimensionC, 0, 4)

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("out-of-bounds add fails and leaves the count unchanged", prop.ForAll(
		func(c int) bool {
			d, _ := NewSubBlockDirectory(WithBounds(bounds))
			_, _ = d.Add(SubBlockEntry{Coordinate: dims.NewCoordinate(map[format.DimensionIndex]int{format.DimensionC: 0}), MIndex: InvalidMIndex})
			before := d.Count()

			var coord dims.Coordinate
			coord.Set(format.DimensionC, c)
			_, err := d.Add(SubBlockEntry{Coordinate: coord, MIndex: InvalidMIndex, LogicalRect: geom.IntRect{X: 1, W: 1, H: 1}})

			if c >= 0 && c < 4 {
				return err == nil && d.Count() == before+1
			}

			return err != nil && d.Count() == before
		},
		gen.IntRange(-10, 10),
	))

	properties.TestingRun(t)
}

func TestAdd_Duplicates(t *testing.T) {
	d := newDir(t)
	_, err := d.Add(tile(t, "C0", 1, 0, 0, 10, 10))
	require.NoError(t, err)

	_, err = d.Add(tile(t, "C0", 1, 50, 50, 10, 10))
	require.ErrorIs(t, err, errs.ErrAddCoordinateAlreadyExisting)
	require.Equal(t, 1, d.Count())

	// other M-index, other plane, pyramid tile: all distinct
	_, err = d.Add(tile(t, "C0", 2, 0, 0, 10, 10))
	require.NoError(t, err)
	_, err = d.Add(tile(t, "C1", 1, 0, 0, 10, 10))
	require.NoError(t, err)
	pyr := tile(t, "C0", 1, 0, 0, 20, 20)
	pyr.PhysicalSize = geom.IntSize{W: 10, H: 10}
	_, err = d.Add(pyr)
	require.NoError(t, err)

	t.Run("Without M-index the position decides", func(t *testing.T) {
		d := newDir(t)
		_, err := d.Add(tile(t, "C0", InvalidMIndex, 0, 0, 10, 10))
		require.NoError(t, err)
		_, err = d.Add(tile(t, "C0", InvalidMIndex, 10, 0, 10, 10))
		require.NoError(t, err)
		_, err = d.Add(tile(t, "C0", InvalidMIndex, 0, 0, 10, 10))
		require.ErrorIs(t, err, errs.ErrAddCoordinateAlreadyExisting)
	})

	t.Run("Allowed", func(t *testing.T) {
		d := newDir(t, WithAllowDuplicates(true))
		_, err := d.Add(tile(t, "C0", 1, 0, 0, 10, 10))
		require.NoError(t, err)
		_, err = d.Add(tile(t, "C0", 1, 0, 0, 10, 10))
		require.NoError(t, err)
		require.Equal(t, 2, d.Count())
	})
}

func TestReplaceRemove(t *testing.T) {
	d := newDir(t)
	i0, _ := d.Add(tile(t, "C0", 0, 0, 0, 10, 10))
	i1, _ := d.Add(tile(t, "C0", 1, 10, 0, 10, 10))
	i2, _ := d.Add(tile(t, "C0", 2, 20, 0, 10, 10))

	require.NoError(t, d.Remove(i1))
	require.ErrorIs(t, d.Remove(i1), errs.ErrInvalidSubBlockID)
	require.Equal(t, []int{i0, i2}, d.Indices())

	// freed key can be reused
	i3, err := d.Add(tile(t, "C0", 1, 10, 0, 10, 10))
	require.NoError(t, err)
	require.Equal(t, 3, i3)

	// replace keeps the index and may keep its own key
	require.NoError(t, d.Replace(i0, tile(t, "C0", 0, 0, 0, 5, 5)))
	e, ok := d.Get(i0)
	require.True(t, ok)
	require.Equal(t, 5, e.LogicalRect.W)
	require.ErrorIs(t, d.Replace(i0, tile(t, "C0", 2, 0, 0, 5, 5)), errs.ErrAddCoordinateAlreadyExisting)
	require.ErrorIs(t, d.Replace(42, tile(t, "C0", 9, 0, 0, 5, 5)), errs.ErrInvalidSubBlockID)

	require.NoError(t, d.Update(i2, func(e *SubBlockEntry) { e.FilePosition = 1234 }))
	e, _ = d.Get(i2)
	require.Equal(t, int64(1234), e.FilePosition)
}

func TestEnumerate(t *testing.T) {
	d := newDir(t)
	_, _ = d.Add(tile(t, "C0Z0", 0, 0, 0, 10, 10))
	_, _ = d.Add(tile(t, "C1Z0", 0, 0, 0, 10, 10))
	_, _ = d.Add(tile(t, "C0Z1", 0, 100, 100, 10, 10))
	pyr := tile(t, "C0Z0", 1, 0, 0, 40, 40)
	pyr.PhysicalSize = geom.IntSize{W: 10, H: 10}
	_, _ = d.Add(pyr)

	collect := func(plane string, roi *geom.IntRect, layer0 bool) []int {
		var out []int
		d.EnumerateSubset(mustCoord(t, plane), roi, layer0, func(i int, _ *SubBlockEntry) bool {
			out = append(out, i)
			return true
		})

		return out
	}

	require.Equal(t, []int{0, 2, 3}, collect("C0", nil, false))
	require.Equal(t, []int{0, 2}, collect("C0", nil, true))
	require.Equal(t, []int{0, 1, 3}, collect("", &geom.IntRect{X: 5, Y: 5, W: 10, H: 10}, false))
	require.Equal(t, []int{0}, collect("C0Z0", &geom.IntRect{X: 5, Y: 5, W: 10, H: 10}, true))
	require.Empty(t, collect("C0", &geom.IntRect{X: 10, Y: 0, W: 5, H: 5}, true))

	var seen int
	d.EnumerateAll(func(int, *SubBlockEntry) bool {
		seen++
		return seen < 2
	})
	require.Equal(t, 2, seen)
}

func TestAttachmentDirectory(t *testing.T) {
	d := NewAttachmentDirectory(true)
	thumb := AttachmentEntry{ContentGUID: uuid.New(), ContentFileType: "JPG", Name: "Thumbnail"}

	i0, err := d.Add(thumb)
	require.NoError(t, err)
	_, err = d.Add(thumb)
	require.ErrorIs(t, err, errs.ErrAddAttachmentAlreadyExisting)

	i1, err := d.Add(AttachmentEntry{ContentFileType: "CZTIMS", Name: "TimeStamps"})
	require.NoError(t, err)

	// truncated to the on-disk sizes
	i2, err := d.Add(AttachmentEntry{ContentFileType: "TOOLONGTYPE", Name: "x"})
	require.NoError(t, err)
	e, _ := d.Get(i2)
	require.Equal(t, "TOOLONGT", e.ContentFileType)

	require.ErrorIs(t, d.Replace(i1, thumb), errs.ErrAddAttachmentAlreadyExisting)
	require.NoError(t, d.Replace(i0, AttachmentEntry{ContentFileType: "JPG", Name: "Label"}))
	_, err = d.Add(thumb)
	require.NoError(t, err)

	require.NoError(t, d.Remove(i1))
	require.ErrorIs(t, d.Remove(i1), errs.ErrInvalidAttachmentID)
	require.Equal(t, 3, d.Count())

	var names []string
	d.EnumerateSubset("JPG", "", func(_ int, e *AttachmentEntry) bool {
		names = append(names, e.Name)
		return true
	})
	require.Equal(t, []string{"Label", "Thumbnail"}, names)

	a1 := e.ToA1()
	require.Equal(t, e, AttachmentEntryFromA1(&a1))

	nonUnique := NewAttachmentDirectory(false)
	_, err = nonUnique.Add(thumb)
	require.NoError(t, err)
	_, err = nonUnique.Add(thumb)
	require.NoError(t, err)
}
