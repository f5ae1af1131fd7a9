package accessor

import (
	"fmt"
	"math"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

// PyramidLayerAccessor composes one pyramid layer at the resolution of that
// layer.
type PyramidLayerAccessor struct {
	base
}

// NewPyramidLayerAccessor creates a pyramid-layer accessor over src.
func NewPyramidLayerAccessor(src Source, opts ...Option) (*PyramidLayerAccessor, error) {
	b, err := newBase(src, opts)
	if err != nil {
		return nil, err
	}

	return &PyramidLayerAccessor{base: b}, nil
}

// CalcPyramidLayerSize returns the size of roi at the resolution of layer.
func CalcPyramidLayerSize(roi geom.IntRect, layer directory.PyramidLayerInfo) geom.IntSize {
	p := layer.TotalMinification()
	return geom.IntSize{W: roi.W / p, H: roi.H / p}
}

// Get composes roi of plane from the sub-blocks of layer.
//
// Returns:
//   - *bitmap.Bitmap: Bitmap of CalcPyramidLayerSize(roi, layer)
//   - error: ErrInvalidArgument if the result would be empty,
//     ErrInvalidPlaneCoordinate, sub-block I/O or codec errors
func (a *PyramidLayerAccessor) Get(roi geom.IntRect, plane dims.Coordinate, layer directory.PyramidLayerInfo, opts Options) (*bitmap.Bitmap, error) {
	pt, err := pixelTypeOf(a.src, plane)
	if err != nil {
		return nil, err
	}

	return a.GetWithPixelType(pt, roi, plane, layer, opts)
}

// GetWithPixelType is like Get with an explicit destination pixel type.
func (a *PyramidLayerAccessor) GetWithPixelType(pt format.PixelType, roi geom.IntRect, plane dims.Coordinate, layer directory.PyramidLayerInfo, opts Options) (*bitmap.Bitmap, error) {
	size := CalcPyramidLayerSize(roi, layer)
	if size.W <= 0 || size.H <= 0 {
		return nil, fmt.Errorf("%w: %dx%d at minification %d is empty",
			errs.ErrInvalidArgument, roi.W, roi.H, layer.TotalMinification())
	}

	dst, err := bitmap.New(pt, size.W, size.H)
	if err != nil {
		return nil, err
	}
	if err := a.compose(dst, roi, plane, layer, &opts); err != nil {
		return nil, err
	}

	return dst, nil
}

// GetInto composes into dst, whose size must be CalcPyramidLayerSize(roi, layer).
func (a *PyramidLayerAccessor) GetInto(dst *bitmap.Bitmap, roi geom.IntRect, plane dims.Coordinate, layer directory.PyramidLayerInfo, opts Options) error {
	if size := CalcPyramidLayerSize(roi, layer); size != dst.Size() {
		return fmt.Errorf("%w: destination is %dx%d, expected %dx%d",
			errs.ErrInvalidArgument, dst.Width(), dst.Height(), size.W, size.H)
	}

	return a.compose(dst, roi, plane, layer, &opts)
}

func (a *PyramidLayerAccessor) compose(dst *bitmap.Bitmap, roi geom.IntRect, plane dims.Coordinate, layer directory.PyramidLayerInfo, opts *Options) error {
	roi, done, err := a.begin(roi, plane, opts)
	if err != nil {
		return err
	}
	defer done()

	if err := clearBackground(dst, opts); err != nil {
		return err
	}

	want := 0
	if !layer.IsLayer0() {
		want = int(layer.PyramidLayerNo)
	}
	cands, err := a.collect(plane, roi, false, opts, func(e *directory.SubBlockEntry) bool {
		return layerNumber(e, int(layer.MinificationFactor)) == want
	})
	if err != nil {
		return err
	}
	if opts.SortByM {
		sortByM(cands)
	}

	// Sub-block positions are divided by the minification, so overdraw in the
	// logical plane does not imply overdraw after rounding. No culling here.
	p := layer.TotalMinification()

	return a.paint(cands, opts, func(c *candidate, d decoded) error {
		lr := c.entry.LogicalRect
		x, y := floorDiv(lr.X-roi.X, p), floorDiv(lr.Y-roi.Y, p)
		w, h := lr.W/p, lr.H/p
		if d.bm.Width() == w && d.bm.Height() == h {
			return bitmap.CopyAtWithMask(d.bm, dst, d.mask, x, y)
		}
		if w == 0 || h == 0 {
			return nil
		}

		return bitmap.NNResize(d.bm, dst,
			geom.DblRect{W: float64(d.bm.Width()), H: float64(d.bm.Height())},
			geom.DblRect{X: float64(x), Y: float64(y), W: float64(w), H: float64(h)},
			d.mask)
	})
}

// layerNumber returns the pyramid layer of e for the given minification
// factor, or -1 if the minification of e is not a power of factor.
func layerNumber(e *directory.SubBlockEntry, factor int) int {
	if e.IsLayer0() {
		return 0
	}
	if factor < 2 {
		return -1
	}

	var logical, physical int
	if e.PhysicalSize.W >= e.PhysicalSize.H {
		logical, physical = e.LogicalRect.W, e.PhysicalSize.W
	} else {
		logical, physical = e.LogicalRect.H, e.PhysicalSize.H
	}
	if physical <= 0 {
		return -1
	}

	ratio := int(math.Round(float64(logical) / float64(physical)))
	n := 0
	for v := 1; v < ratio; v *= factor {
		n++
		if v*factor == ratio {
			return n
		}
	}
	if ratio == 1 {
		return 0
	}

	return -1
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}

	return q
}
