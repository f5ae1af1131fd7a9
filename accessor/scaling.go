package accessor

import (
	"fmt"
	"slices"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

const (
	zoomEpsilon = 1e-6
	// layerSpan bounds the zoom range painted together: starting at the
	// selected layer, sub-blocks with at least layerSpan times its zoom are
	// left out.
	layerSpan = 1.9
)

// ScalingAccessor composes a region at an arbitrary zoom from the best
// fitting pyramid layer.
type ScalingAccessor struct {
	base
}

// NewScalingAccessor creates a scaling accessor over src.
func NewScalingAccessor(src Source, opts ...Option) (*ScalingAccessor, error) {
	b, err := newBase(src, opts)
	if err != nil {
		return nil, err
	}

	return &ScalingAccessor{base: b}, nil
}

// CalcSize returns the size of the bitmap composed for roi at zoom.
func CalcSize(roi geom.IntRect, zoom float64) geom.IntSize {
	return geom.IntSize{W: int(float64(roi.W) * zoom), H: int(float64(roi.H) * zoom)}
}

// Get composes roi of plane at zoom into a new bitmap of CalcSize(roi, zoom).
//
// Returns:
//   - *bitmap.Bitmap: The composed bitmap
//   - error: ErrInvalidArgument for a zoom <= 0, ErrInvalidPlaneCoordinate,
//     sub-block I/O or codec errors
func (a *ScalingAccessor) Get(roi geom.IntRect, plane dims.Coordinate, zoom float64, opts Options) (*bitmap.Bitmap, error) {
	pt, err := pixelTypeOf(a.src, plane)
	if err != nil {
		return nil, err
	}

	return a.GetWithPixelType(pt, roi, plane, zoom, opts)
}

// GetWithPixelType is like Get with an explicit destination pixel type.
func (a *ScalingAccessor) GetWithPixelType(pt format.PixelType, roi geom.IntRect, plane dims.Coordinate, zoom float64, opts Options) (*bitmap.Bitmap, error) {
	if zoom <= 0 {
		return nil, fmt.Errorf("%w: zoom %g", errs.ErrInvalidArgument, zoom)
	}

	size := CalcSize(roi, zoom)
	dst, err := bitmap.New(pt, size.W, size.H)
	if err != nil {
		return nil, err
	}
	if err := a.compose(dst, roi, plane, zoom, &opts); err != nil {
		return nil, err
	}

	return dst, nil
}

// GetInto composes roi at zoom into dst, whose size must be CalcSize(roi, zoom).
func (a *ScalingAccessor) GetInto(dst *bitmap.Bitmap, roi geom.IntRect, plane dims.Coordinate, zoom float64, opts Options) error {
	if zoom <= 0 {
		return fmt.Errorf("%w: zoom %g", errs.ErrInvalidArgument, zoom)
	}
	if size := CalcSize(roi, zoom); size != dst.Size() {
		return fmt.Errorf("%w: destination is %dx%d, expected %dx%d",
			errs.ErrInvalidArgument, dst.Width(), dst.Height(), size.W, size.H)
	}

	return a.compose(dst, roi, plane, zoom, &opts)
}

func (a *ScalingAccessor) compose(dst *bitmap.Bitmap, roi geom.IntRect, plane dims.Coordinate, zoom float64, opts *Options) error {
	roi, done, err := a.begin(roi, plane, opts)
	if err != nil {
		return err
	}
	defer done()

	if err := clearBackground(dst, opts); err != nil {
		return err
	}

	scenes := a.involvedScenes(roi, opts)
	if len(scenes) <= 1 {
		cands, err := a.collect(plane, roi, false, opts, nil)
		if err != nil {
			return err
		}

		return a.paintBestLayer(dst, roi, zoom, cands, opts)
	}

	for _, scene := range scenes {
		cands, err := a.collect(plane, roi, false, opts, func(e *directory.SubBlockEntry) bool {
			s, ok := e.Coordinate.TryGet(format.DimensionS)
			return ok && s == scene
		})
		if err != nil {
			return err
		}
		if err := a.paintBestLayer(dst, roi, zoom, cands, opts); err != nil {
			return err
		}
	}

	return nil
}

// involvedScenes returns, ascending, the scenes whose bounding box
// intersects roi and that pass the scene filter.
func (a *ScalingAccessor) involvedScenes(roi geom.IntRect, opts *Options) []int {
	var scenes []int
	for s, boxes := range a.src.Statistics().SceneBoundingBoxes {
		if s == directory.NoSceneIndex || !opts.sceneAllowed(s, true) {
			continue
		}
		if boxes.BoundingBox.IntersectsWith(roi) {
			scenes = append(scenes, s)
		}
	}
	slices.Sort(scenes)

	return scenes
}

// sortByZoom orders candidates by ascending zoom, coarsest first. With byM,
// layer-0 candidates are additionally ordered by M-index.
func sortByZoom(cands []candidate, byM bool) {
	slices.SortStableFunc(cands, func(a, b candidate) int {
		za, zb := a.entry.Zoom(), b.entry.Zoom()
		switch {
		case za < zb:
			return -1
		case za > zb:
			return 1
		}
		if !byM || !a.entry.IsLayer0() || !b.entry.IsLayer0() {
			return 0
		}

		ma, mb := mOrder(&a.entry), mOrder(&b.entry)
		switch {
		case ma < mb:
			return -1
		case ma > mb:
			return 1
		default:
			return 0
		}
	})
}

// selectLayer returns the range of cands, sorted by zoom, to paint for zoom:
// starting at the first candidate whose zoom is at least the requested one,
// or at the finest layer if there is none.
func selectLayer(cands []candidate, zoom float64) (int, int) {
	if len(cands) == 0 {
		return 0, 0
	}

	start := slices.IndexFunc(cands, func(c candidate) bool { return c.entry.Zoom() >= zoom-zoomEpsilon })
	if start < 0 {
		finest := cands[len(cands)-1].entry.Zoom()
		start = slices.IndexFunc(cands, func(c candidate) bool { return c.entry.Zoom() >= finest-zoomEpsilon })
	}

	startZoom := cands[start].entry.Zoom()
	end := start
	for end < len(cands) && cands[end].entry.Zoom() < startZoom*layerSpan {
		end++
	}

	return start, end
}

func (a *ScalingAccessor) paintBestLayer(dst *bitmap.Bitmap, roi geom.IntRect, zoom float64, cands []candidate, opts *Options) error {
	sortByZoom(cands, opts.SortByM)
	start, end := selectLayer(cands, zoom)
	cands = a.cull(roi, cands[start:end], opts)

	return a.paint(cands, opts, func(c *candidate, d decoded) error {
		return scaleBlt(dst, roi, zoom, &c.entry, d)
	})
}

// scaleBlt paints the part of a sub-block inside roi into dst, which shows
// roi scaled by zoom.
func scaleBlt(dst *bitmap.Bitmap, roi geom.IntRect, zoom float64, e *directory.SubBlockEntry, d decoded) error {
	lr := e.LogicalRect
	if zoom == 1 && d.bm.Width() == lr.W && d.bm.Height() == lr.H {
		return bitmap.CopyAtWithMask(d.bm, dst, d.mask, lr.X-roi.X, lr.Y-roi.Y)
	}

	is := lr.Intersect(roi)
	if !is.IsNonEmpty() {
		return nil
	}

	sw, sh := float64(d.bm.Width()), float64(d.bm.Height())
	srcRoi := geom.DblRect{
		X: float64(is.X-lr.X) / float64(lr.W) * sw,
		Y: float64(is.Y-lr.Y) / float64(lr.H) * sh,
		W: float64(is.W) / float64(lr.W) * sw,
		H: float64(is.H) / float64(lr.H) * sh,
	}
	dw, dh := float64(dst.Width()), float64(dst.Height())
	if dw == 0 || dh == 0 {
		return nil
	}
	dstRoi := geom.DblRect{
		X: float64(is.X-roi.X) / float64(roi.W) * dw,
		Y: float64(is.Y-roi.Y) / float64(roi.H) * dh,
		W: float64(is.W) / float64(roi.W) * dw,
		H: float64(is.H) / float64(roi.H) * dh,
	}

	return bitmap.NNResize(d.bm, dst, srcRoi, dstRoi, d.mask)
}
