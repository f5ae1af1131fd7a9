package accessor

import (
	"fmt"

	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

// Source is the read side of a document. document.Reader and
// document.ReaderWriter implement it.
type Source interface {
	Statistics() directory.Statistics
	EnumerateSubBlockSubset(plane dims.Coordinate, roi *geom.IntRect, onlyLayer0 bool, fn func(index int, e *directory.SubBlockEntry) bool) error
	ReadSubBlock(index int) (*document.SubBlock, error)
}

var (
	_ Source = (*document.Reader)(nil)
	_ Source = (*document.ReaderWriter)(nil)
)

// planeDimensions are the dimensions a plane coordinate may carry.
var planeDimensions = []format.DimensionIndex{
	format.DimensionZ, format.DimensionC, format.DimensionT, format.DimensionR,
	format.DimensionI, format.DimensionH, format.DimensionV, format.DimensionB,
}

// CheckPlaneCoordinate validates plane against the dimension bounds of a
// document. A plane must not carry S. Every bounded dimension must be given
// unless its size is 1, every given value must lie in the bounds, and no
// unbounded dimension may be given.
//
// Returns:
//   - error: ErrInvalidPlaneCoordinate wrapping ErrInvalidDimension,
//     ErrMissingDimension, ErrCoordinateOutOfRange or ErrSurplusDimension
func CheckPlaneCoordinate(bounds dims.Bounds, plane dims.Coordinate) error {
	if plane.IsValid(format.DimensionS) {
		return planeError(errs.ErrInvalidDimension, "S is not allowed in a plane coordinate")
	}

	for _, d := range planeDimensions {
		iv, bounded := bounds.TryGet(d)
		v, given := plane.TryGet(d)

		switch {
		case bounded && !given:
			if iv.Size > 1 {
				return planeError(errs.ErrMissingDimension, "coordinate for %s not given", d)
			}
		case bounded && given:
			if !iv.Contains(v) {
				return planeError(errs.ErrCoordinateOutOfRange, "%s%d outside [%d, %d)", d, v, iv.Start, iv.End())
			}
		case given:
			return planeError(errs.ErrSurplusDimension, "%s is not present in the document", d)
		}
	}

	return nil
}

func planeError(kind error, msg string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", errs.ErrInvalidPlaneCoordinate, kind, fmt.Sprintf(msg, args...))
}

// pixelTypeOf returns the pixel type of the first sub-block in the channel of
// plane, or of any sub-block if the plane has no C index. The plane is
// checked against the document bounds first.
func pixelTypeOf(src Source, plane dims.Coordinate) (format.PixelType, error) {
	if err := CheckPlaneCoordinate(src.Statistics().DimBounds, plane); err != nil {
		return format.PixelTypeInvalid, err
	}

	var query dims.Coordinate
	if c, ok := plane.TryGet(format.DimensionC); ok {
		query.Set(format.DimensionC, c)
	}

	pt := format.PixelTypeInvalid
	err := src.EnumerateSubBlockSubset(query, nil, false, func(_ int, e *directory.SubBlockEntry) bool {
		pt = e.PixelType
		return false
	})
	if err != nil {
		return format.PixelTypeInvalid, err
	}
	if pt == format.PixelTypeInvalid {
		return format.PixelTypeInvalid, fmt.Errorf("%w: cannot determine pixel type for plane %s", errs.ErrInvalidArgument, plane)
	}

	return pt, nil
}
