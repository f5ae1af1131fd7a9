// Package directory holds the in-memory index of a CZI document: one entry
// per sub-block and per attachment, in addition order, with subset queries
// and aggregated statistics.
//
// The same SubBlockDirectory type serves writers, readers and reader-writers.
// Writers configure bounds and duplicate rejection through options; readers
// load entries from the on-disk directory with Append, which does not
// validate.
package directory

import (
	"math"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/section"
)

// InvalidMIndex marks an entry without M-index.
const InvalidMIndex = math.MinInt32

// SubBlockEntry describes one sub-block.
type SubBlockEntry struct {
	Coordinate   dims.Coordinate
	MIndex       int
	LogicalRect  geom.IntRect
	PhysicalSize geom.IntSize
	PixelType    format.PixelType
	Compression  format.CompressionMode
	PyramidType  format.PyramidType
	FilePosition int64
	FilePart     int32
}

// IsMIndexValid reports whether the entry carries an M-index.
func (e *SubBlockEntry) IsMIndexValid() bool {
	return e.MIndex != InvalidMIndex
}

// IsLayer0 reports whether the stored size equals the logical size, i.e. the
// sub-block is not a minified pyramid tile.
func (e *SubBlockEntry) IsLayer0() bool {
	return e.LogicalRect.W == e.PhysicalSize.W && e.LogicalRect.H == e.PhysicalSize.H
}

// Zoom returns the ratio between stored and logical size, taken on the
// larger stored axis. Layer-0 entries have zoom 1.
func (e *SubBlockEntry) Zoom() float64 {
	if e.PhysicalSize.W >= e.PhysicalSize.H {
		if e.LogicalRect.W == 0 {
			return 1
		}

		return float64(e.PhysicalSize.W) / float64(e.LogicalRect.W)
	}
	if e.LogicalRect.H == 0 {
		return 1
	}

	return float64(e.PhysicalSize.H) / float64(e.LogicalRect.H)
}

// ToDV converts the entry into its on-disk DV form.
func (e *SubBlockEntry) ToDV() section.SubBlockEntryDV {
	dv := section.SubBlockEntryDV{
		PixelType:    e.PixelType,
		FilePosition: e.FilePosition,
		FilePart:     e.FilePart,
		Compression:  e.Compression,
		PyramidType:  e.PyramidType,
	}

	dv.Dimensions = append(dv.Dimensions,
		section.DimensionEntry{
			Dimension:  section.DimCharX,
			Start:      int32(e.LogicalRect.X), //nolint:gosec
			Size:       int32(e.LogicalRect.W), //nolint:gosec
			StoredSize: int32(e.PhysicalSize.W), //nolint:gosec
		},
		section.DimensionEntry{
			Dimension:  section.DimCharY,
			Start:      int32(e.LogicalRect.Y), //nolint:gosec
			Size:       int32(e.LogicalRect.H), //nolint:gosec
			StoredSize: int32(e.PhysicalSize.H), //nolint:gosec
		},
	)

	if e.IsMIndexValid() {
		dv.Dimensions = append(dv.Dimensions, section.DimensionEntry{
			Dimension:  section.DimCharM,
			Start:      int32(e.MIndex), //nolint:gosec
			Size:       1,
			StoredSize: 1,
		})
	}

	for _, d := range e.Coordinate.Dimensions() {
		v, _ := e.Coordinate.TryGet(d)
		dv.Dimensions = append(dv.Dimensions, section.DimensionEntry{
			Dimension:       d.Char(),
			Start:           int32(v), //nolint:gosec
			Size:            1,
			StartCoordinate: float32(v),
			StoredSize:      1,
		})
	}

	return dv
}

// EntryFromDV converts an on-disk DV entry. Unknown dimension characters are
// skipped. An entry without X or Y dimension is rejected.
func EntryFromDV(dv *section.SubBlockEntryDV) (SubBlockEntry, error) {
	e := SubBlockEntry{
		MIndex:       InvalidMIndex,
		PixelType:    dv.PixelType,
		Compression:  dv.Compression,
		PyramidType:  dv.PyramidType,
		FilePosition: dv.FilePosition,
		FilePart:     dv.FilePart,
	}

	var hasX, hasY bool
	for i := range dv.Dimensions {
		de := &dv.Dimensions[i]
		switch de.Dimension {
		case section.DimCharX:
			e.LogicalRect.X, e.LogicalRect.W = int(de.Start), int(de.Size)
			e.PhysicalSize.W = int(de.StoredSize)
			hasX = true
		case section.DimCharY:
			e.LogicalRect.Y, e.LogicalRect.H = int(de.Start), int(de.Size)
			e.PhysicalSize.H = int(de.StoredSize)
			hasY = true
		case section.DimCharM:
			e.MIndex = int(de.Start)
		default:
			if d := format.DimensionFromChar(de.Dimension); d.IsValid() {
				e.Coordinate.Set(d, int(de.Start))
			}
		}
	}

	if !hasX || !hasY {
		return SubBlockEntry{}, errs.NewParseError(errs.ParseCorruptedData,
			"DV entry at %d lacks X or Y dimension", dv.FilePosition)
	}

	return e, nil
}
