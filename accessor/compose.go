package accessor

import (
	"math"
	"slices"
	"time"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// candidate is a sub-block selected for painting.
type candidate struct {
	index int
	entry directory.SubBlockEntry
}

// decoded is the bitmap of a candidate and its optional valid-pixel mask.
type decoded struct {
	bm   *bitmap.Bitmap
	mask *bitmap.Bitonal
}

// base holds what all accessors share.
type base struct {
	src Source
	cfg *config
}

func newBase(src Source, opts []Option) (base, error) {
	cfg, err := newConfig(opts)
	if err != nil {
		return base{}, err
	}

	return base{src: src, cfg: cfg}, nil
}

// begin validates the plane and returns the raw region of interest. The
// returned func records the compose duration.
func (b *base) begin(roi geom.IntRect, plane dims.Coordinate, opts *Options) (geom.IntRect, func(), error) {
	stats := b.src.Statistics()
	if err := CheckPlaneCoordinate(stats.DimBounds, plane); err != nil {
		return geom.IntRect{}, nil, err
	}

	frame := opts.Frame
	if frame == format.FrameOfReferenceInvalid {
		frame = format.FrameOfReferenceDefault
	}
	bbox := stats.BoundingBox
	if !bbox.IsValid() {
		bbox = geom.IntRect{}
	}
	raw, err := geom.TransformRect(geom.RectAndFrame{Frame: frame, Rect: roi},
		format.FrameOfReferenceRawSubBlockCoordinate, b.cfg.defaultFrame, bbox)
	if err != nil {
		return geom.IntRect{}, nil, err
	}

	start := time.Now()
	done := func() { b.cfg.metrics.ComposeDuration.Observe(time.Since(start).Seconds()) }

	return raw.Rect, done, nil
}

func clearBackground(dst *bitmap.Bitmap, opts *Options) error {
	if opts.BackgroundColor.IsNaN() {
		return nil
	}

	return bitmap.Fill(dst, opts.BackgroundColor)
}

// collect returns the sub-blocks of plane intersecting roi that pass the
// scene filter and keep, in directory order.
func (b *base) collect(plane dims.Coordinate, roi geom.IntRect, onlyLayer0 bool, opts *Options, keep func(e *directory.SubBlockEntry) bool) ([]candidate, error) {
	var out []candidate
	err := b.src.EnumerateSubBlockSubset(plane, &roi, onlyLayer0, func(index int, e *directory.SubBlockEntry) bool {
		s, hasScene := e.Coordinate.TryGet(format.DimensionS)
		if !opts.sceneAllowed(s, hasScene) {
			return true
		}
		if keep != nil && !keep(e) {
			return true
		}
		out = append(out, candidate{index: index, entry: *e})

		return true
	})

	return out, err
}

// mOrder maps a missing M-index below every valid one.
func mOrder(e *directory.SubBlockEntry) int {
	if !e.IsMIndexValid() {
		return math.MinInt
	}

	return e.MIndex
}

func sortByM(cands []candidate) {
	slices.SortStableFunc(cands, func(a, b candidate) int {
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

// cull drops the candidates that later candidates cover within roi. A masked
// sub-block does not cover what lies below it, so nothing is culled when
// compositing mask-aware.
func (b *base) cull(roi geom.IntRect, cands []candidate, opts *Options) []candidate {
	if !opts.VisibilityOptimization || opts.MaskAware || len(cands) == 0 {
		return cands
	}

	rects := make([]geom.IntRect, len(cands))
	for i := range cands {
		rects[i] = cands[i].entry.LogicalRect
	}
	visible := visibleInPaintOrder(roi, rects)

	out := make([]candidate, 0, len(visible))
	for _, i := range visible {
		out = append(out, cands[i])
	}

	if culled := len(cands) - len(out); culled > 0 {
		b.cfg.metrics.SubBlocksCulled.Add(float64(culled))
		b.cfg.logger.Debug("sub-blocks skipped by visibility check",
			zap.Int("culled", culled), zap.Int("painted", len(out)))
	}

	return out
}

// load reads and decodes one sub-block, going through the cache if set.
func (b *base) load(c candidate, opts *Options) (decoded, error) {
	if opts.Cache != nil {
		bm, mask, err := opts.Cache.GetWithMask(c.index)
		if err != nil {
			return decoded{}, err
		}
		if bm != nil {
			return decoded{bm: bm, mask: mask}, nil
		}
	}

	sb, err := b.src.ReadSubBlock(c.index)
	if err != nil {
		return decoded{}, err
	}
	bm, err := sb.Bitmap(b.cfg.registry)
	if err != nil {
		return decoded{}, err
	}

	d := decoded{bm: bm}
	if opts.MaskAware {
		mask, err := sb.ValidPixelMask()
		if err != nil {
			b.cfg.logger.Warn("invalid valid-pixel mask, painting without mask",
				zap.Int("subBlock", c.index), zap.Error(err))
		} else {
			d.mask = mask
		}
	}

	if opts.Cache != nil && (!opts.OnlyCacheCompressed || sb.Entry.Compression != format.CompressionUnCompressed) {
		if err := opts.Cache.AddWithMask(c.index, d.bm, d.mask); err != nil {
			return decoded{}, err
		}
	}

	return d, nil
}

// paint loads the candidates concurrently and calls draw for each of them
// sequentially in the given order.
func (b *base) paint(cands []candidate, opts *Options, draw func(c *candidate, d decoded) error) error {
	results := make([]decoded, len(cands))

	var g errgroup.Group
	g.SetLimit(b.cfg.concurrency)
	for i := range cands {
		g.Go(func() error {
			d, err := b.load(cands[i], opts)
			if err != nil {
				return err
			}
			results[i] = d

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range cands {
		if err := draw(&cands[i], results[i]); err != nil {
			return err
		}
	}

	return nil
}
