package accessor

import (
	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

// TileAccessor composes the layer-0 sub-blocks of a plane at full resolution.
type TileAccessor struct {
	base
}

// NewTileAccessor creates a tile accessor over src.
func NewTileAccessor(src Source, opts ...Option) (*TileAccessor, error) {
	b, err := newBase(src, opts)
	if err != nil {
		return nil, err
	}

	return &TileAccessor{base: b}, nil
}

// Get composes roi of plane into a new bitmap. The pixel type is that of the
// sub-blocks in the plane's channel.
//
// Returns:
//   - *bitmap.Bitmap: Bitmap of size roi.W x roi.H
//   - error: ErrInvalidPlaneCoordinate, ErrInvalidArgument if the pixel type
//     cannot be determined, I/O, parse or codec errors of a sub-block
func (a *TileAccessor) Get(roi geom.IntRect, plane dims.Coordinate, opts Options) (*bitmap.Bitmap, error) {
	pt, err := pixelTypeOf(a.src, plane)
	if err != nil {
		return nil, err
	}

	return a.GetWithPixelType(pt, roi, plane, opts)
}

// GetWithPixelType is like Get with an explicit destination pixel type.
// Sub-block pixels are converted as needed.
func (a *TileAccessor) GetWithPixelType(pt format.PixelType, roi geom.IntRect, plane dims.Coordinate, opts Options) (*bitmap.Bitmap, error) {
	dst, err := bitmap.New(pt, roi.W, roi.H)
	if err != nil {
		return nil, err
	}
	if err := a.GetInto(dst, roi.X, roi.Y, plane, opts); err != nil {
		return nil, err
	}

	return dst, nil
}

// GetInto composes the region of dst's size with top-left corner (x, y) into
// dst.
func (a *TileAccessor) GetInto(dst *bitmap.Bitmap, x, y int, plane dims.Coordinate, opts Options) error {
	roi, done, err := a.begin(geom.IntRect{X: x, Y: y, W: dst.Width(), H: dst.Height()}, plane, &opts)
	if err != nil {
		return err
	}
	defer done()

	if err := clearBackground(dst, &opts); err != nil {
		return err
	}

	cands, err := a.collect(plane, roi, true, &opts, nil)
	if err != nil {
		return err
	}
	if opts.SortByM {
		sortByM(cands)
	}
	cands = a.cull(roi, cands, &opts)

	return a.paint(cands, &opts, func(c *candidate, d decoded) error {
		lr := c.entry.LogicalRect
		return bitmap.CopyAtWithMask(d.bm, dst, d.mask, lr.X-roi.X, lr.Y-roi.Y)
	})
}
