package accessor

import (
	"bytes"
	"testing"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/cache"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/arloliu/czi/metadata"
	"github.com/arloliu/czi/stream"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func coord(t *testing.T, s string) dims.Coordinate {
	t.Helper()

	c, err := dims.Parse(s)
	require.NoError(t, err)

	return c
}

// gray8 describes a Gray8 sub-block filled with a constant value. A physical
// size smaller than the logical rectangle makes it a pyramid tile.
func gray8(t *testing.T, plane string, m int, lr geom.IntRect, physical geom.IntSize, fill byte) document.AddSubBlockInfo {
	t.Helper()

	return document.AddSubBlockInfo{
		Coordinate:   coord(t, plane),
		MIndex:       m,
		MIndexValid:  m >= 0,
		LogicalRect:  lr,
		PhysicalSize: physical,
		PixelType:    format.PixelTypeGray8,
		Compression:  format.CompressionUnCompressed,
		Data:         document.BytesPayload(bytes.Repeat([]byte{fill}, physical.W*physical.H)),
	}
}

func layer0(t *testing.T, plane string, m, x, y, w, h int, fill byte) document.AddSubBlockInfo {
	t.Helper()

	return gray8(t, plane, m, geom.IntRect{X: x, Y: y, W: w, H: h}, geom.IntSize{W: w, H: h}, fill)
}

// openDoc writes the sub-blocks into an in-memory document and opens it for
// reading. The returned metrics count the sub-block reads.
func openDoc(t *testing.T, infos ...document.AddSubBlockInfo) (*document.Reader, *metrics.Metrics) {
	t.Helper()

	mem := stream.NewMemory()
	w, err := document.NewWriter(mem, document.WithAllowDuplicateSubBlocks(true))
	require.NoError(t, err)
	for _, info := range infos {
		_, err := w.AddSubBlock(info)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	m := metrics.New(prometheus.NewRegistry())
	r, err := document.Open(mem, document.WithMetrics(m))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	return r, m
}

// pixels returns the rows of bm without padding.
func pixels(t *testing.T, bm *bitmap.Bitmap) []byte {
	t.Helper()

	lck := bm.Lock()
	defer func() { require.NoError(t, lck.Unlock()) }()

	line := bm.Width() * bm.PixelType().BytesPerPixel()
	out := make([]byte, 0, line*bm.Height())
	for y := range bm.Height() {
		out = append(out, lck.Row(y)[:line]...)
	}

	return out
}

func black() bitmap.RGBFloat { return bitmap.RGBFloat{} }

func TestTileAccessor_ZOrder(t *testing.T) {
	tests := []struct {
		name   string
		mIndex []int
		want   byte
	}{
		{"ascending", []int{42, 45, 47, 47}, 4},
		{"ascending with leading tie", []int{42, 42, 45, 47}, 4},
		{"unordered", []int{47, 42, 45, 42}, 1},
		{"missing M-index paints first", []int{3, -1, 2, -1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			infos := make([]document.AddSubBlockInfo, len(tt.mIndex))
			for i, m := range tt.mIndex {
				infos[i] = layer0(t, "C0", m, 0, 0, 4, 4, byte(i+1))
			}
			r, m := openDoc(t, infos...)

			acc, err := NewTileAccessor(r, WithLogger(zaptest.NewLogger(t)), WithMetrics(m))
			require.NoError(t, err)

			for _, visibility := range []bool{false, true} {
				opts := DefaultOptions()
				opts.VisibilityOptimization = visibility

				before := testutil.ToFloat64(m.SubBlocksRead)
				bm, err := acc.Get(geom.IntRect{W: 4, H: 4}, coord(t, "C0"), opts)
				require.NoError(t, err)
				require.Equal(t, format.PixelTypeGray8, bm.PixelType())
				require.Equal(t, bytes.Repeat([]byte{tt.want}, 16), pixels(t, bm))

				reads := testutil.ToFloat64(m.SubBlocksRead) - before
				if visibility {
					require.Equal(t, 1.0, reads, "only the topmost sub-block is visible")
				} else {
					require.Equal(t, 4.0, reads)
				}
			}
			require.Equal(t, 3.0, testutil.ToFloat64(m.SubBlocksCulled))
		})
	}
}

func TestTileAccessor_Background(t *testing.T) {
	r, _ := openDoc(t, layer0(t, "C0", 0, 2, 2, 2, 2, 9))
	acc, err := NewTileAccessor(r)
	require.NoError(t, err)

	t.Run("fill", func(t *testing.T) {
		opts := DefaultOptions()
		opts.BackgroundColor = bitmap.RGBFloat{R: 1, G: 1, B: 1}

		bm, err := acc.Get(geom.IntRect{W: 4, H: 4}, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, []byte{
			255, 255, 255, 255,
			255, 255, 255, 255,
			255, 255, 9, 9,
			255, 255, 9, 9,
		}, pixels(t, bm))
	})

	t.Run("NaN keeps destination", func(t *testing.T) {
		dst := bitmap.MustNew(format.PixelTypeGray8, 4, 4)
		require.NoError(t, bitmap.Fill(dst, bitmap.RGBFloat{R: 0.2, G: 0.2, B: 0.2}))

		require.NoError(t, acc.GetInto(dst, 1, 1, coord(t, "C0"), DefaultOptions()))
		require.Equal(t, []byte{
			51, 51, 51, 51,
			51, 9, 9, 51,
			51, 9, 9, 51,
			51, 51, 51, 51,
		}, pixels(t, dst))
	})

	t.Run("pixel type conversion", func(t *testing.T) {
		opts := DefaultOptions()
		opts.BackgroundColor = black()

		bm, err := acc.GetWithPixelType(format.PixelTypeBgr24, geom.IntRect{X: 2, Y: 2, W: 1, H: 1}, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, []byte{9, 9, 9}, pixels(t, bm))
	})
}

func TestTileAccessor_FrameOfReference(t *testing.T) {
	r, _ := openDoc(t,
		layer0(t, "C0", 0, -2, -2, 2, 2, 5),
		layer0(t, "C0", 1, 0, 0, 2, 2, 6),
	)
	roi := geom.IntRect{W: 2, H: 2}

	t.Run("raw by default", func(t *testing.T) {
		acc, err := NewTileAccessor(r)
		require.NoError(t, err)

		bm, err := acc.Get(roi, coord(t, "C0"), DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, []byte{6, 6, 6, 6}, pixels(t, bm))
	})

	t.Run("pixel frame per call", func(t *testing.T) {
		acc, err := NewTileAccessor(r)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.Frame = format.FrameOfReferencePixelCoordinate
		bm, err := acc.Get(roi, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, []byte{5, 5, 5, 5}, pixels(t, bm))
	})

	t.Run("pixel frame as accessor default", func(t *testing.T) {
		acc, err := NewTileAccessor(r, WithDefaultFrameOfReference(format.FrameOfReferencePixelCoordinate))
		require.NoError(t, err)

		bm, err := acc.Get(roi, coord(t, "C0"), DefaultOptions())
		require.NoError(t, err)
		require.Equal(t, []byte{5, 5, 5, 5}, pixels(t, bm))
	})

	t.Run("invalid default frame", func(t *testing.T) {
		_, err := NewTileAccessor(r, WithDefaultFrameOfReference(format.FrameOfReferenceInvalid))
		require.ErrorIs(t, err, errs.ErrInvalidFrameOfReference)
	})
}

func TestCheckPlaneCoordinate(t *testing.T) {
	var bounds dims.Bounds
	bounds.Set(format.DimensionC, 0, 3)
	bounds.Set(format.DimensionZ, 0, 1)
	bounds.Set(format.DimensionS, 0, 2)

	tests := []struct {
		plane string
		want  error
	}{
		{"C1", nil},
		{"C2Z0", nil},
		{"", errs.ErrMissingDimension},
		{"Z0", errs.ErrMissingDimension},
		{"C3", errs.ErrCoordinateOutOfRange},
		{"C-1", errs.ErrCoordinateOutOfRange},
		{"C0T0", errs.ErrSurplusDimension},
		{"C0S0", errs.ErrInvalidDimension},
	}

	for _, tt := range tests {
		t.Run(tt.plane, func(t *testing.T) {
			err := CheckPlaneCoordinate(bounds, coord(t, tt.plane))
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, errs.ErrInvalidPlaneCoordinate)
			require.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("accessor rejects the plane", func(t *testing.T) {
		r, _ := openDoc(t, layer0(t, "C0", 0, 0, 0, 2, 2, 1), layer0(t, "C1", 0, 0, 0, 2, 2, 2))
		acc, err := NewTileAccessor(r)
		require.NoError(t, err)

		_, err = acc.GetWithPixelType(format.PixelTypeGray8, geom.IntRect{W: 2, H: 2}, coord(t, "Z0"), DefaultOptions())
		require.ErrorIs(t, err, errs.ErrSurplusDimension)

		_, err = acc.GetWithPixelType(format.PixelTypeGray8, geom.IntRect{W: 2, H: 2}, coord(t, ""), DefaultOptions())
		require.ErrorIs(t, err, errs.ErrMissingDimension)

		_, err = acc.Get(geom.IntRect{W: 2, H: 2}, coord(t, "C1"), DefaultOptions())
		require.NoError(t, err)
	})

	t.Run("channel outside the document", func(t *testing.T) {
		r, _ := openDoc(t, layer0(t, "C0", 0, 0, 0, 2, 2, 1))
		tiles, err := NewTileAccessor(r)
		require.NoError(t, err)
		scaling, err := NewScalingAccessor(r)
		require.NoError(t, err)

		_, err = tiles.Get(geom.IntRect{W: 2, H: 2}, coord(t, "C1"), DefaultOptions())
		require.ErrorIs(t, err, errs.ErrInvalidPlaneCoordinate)
		require.ErrorIs(t, err, errs.ErrCoordinateOutOfRange)

		_, err = scaling.Get(geom.IntRect{W: 2, H: 2}, coord(t, "C1"), 0.5, DefaultOptions())
		require.ErrorIs(t, err, errs.ErrInvalidPlaneCoordinate)
		require.ErrorIs(t, err, errs.ErrCoordinateOutOfRange)
	})
}

func TestTileAccessor_SceneFilter(t *testing.T) {
	r, _ := openDoc(t,
		layer0(t, "C0S0", 0, 0, 0, 2, 2, 1),
		layer0(t, "C0S1", 0, 2, 0, 2, 2, 2),
	)
	acc, err := NewTileAccessor(r)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.BackgroundColor = black()
	opts.SceneFilter = []int{1}

	bm, err := acc.Get(geom.IntRect{W: 4, H: 1}, coord(t, "C0"), opts)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 2, 2}, pixels(t, bm))
}

func maskedDoc(t *testing.T, attachment []byte) *document.Reader {
	t.Helper()

	md := metadata.NewSubBlockBuilder()
	require.NoError(t, metadata.SetChunkContainer(md))

	top := layer0(t, "C0", 1, 2, 2, 4, 4, 255)
	top.Metadata = document.BytesPayload([]byte(md.XML(false)))
	top.Attachment = document.BytesPayload(attachment)

	r, _ := openDoc(t, layer0(t, "C0", 0, 0, 0, 4, 4, 0), top)

	return r
}

func checkerboard(w, h int) *bitmap.Bitonal {
	mask := bitmap.NewBitonal(w, h)
	for y := range h {
		for x := range w {
			mask.Set(x, y, (x+y)%2 == 0)
		}
	}

	return mask
}

func TestTileAccessor_MaskAware(t *testing.T) {
	gray := bitmap.RGBFloat{R: 0.5, G: 0.5, B: 0.5}
	roi := geom.IntRect{W: 6, H: 6}

	t.Run("checkerboard mask", func(t *testing.T) {
		r := maskedDoc(t, metadata.AppendChunk(nil, metadata.MaskChunkGUID, metadata.EncodeMask(checkerboard(4, 4))))
		acc, err := NewTileAccessor(r)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.BackgroundColor = gray
		opts.MaskAware = true

		bm, err := acc.Get(roi, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, []byte{
			0x00, 0x00, 0x00, 0x00, 0x80, 0x80,
			0x00, 0x00, 0x00, 0x00, 0x80, 0x80,
			0x00, 0x00, 0xff, 0x00, 0xff, 0x80,
			0x00, 0x00, 0x00, 0xff, 0x80, 0xff,
			0x80, 0x80, 0xff, 0x80, 0xff, 0x80,
			0x80, 0x80, 0x80, 0xff, 0x80, 0xff,
		}, pixels(t, bm))
	})

	t.Run("mask smaller than the sub-block", func(t *testing.T) {
		r := maskedDoc(t, metadata.AppendChunk(nil, metadata.MaskChunkGUID, metadata.EncodeMask(checkerboard(2, 2))))
		acc, err := NewTileAccessor(r)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.BackgroundColor = gray
		opts.MaskAware = true

		bm, err := acc.Get(roi, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, []byte{
			0x00, 0x00, 0x00, 0x00, 0x80, 0x80,
			0x00, 0x00, 0x00, 0x00, 0x80, 0x80,
			0x00, 0x00, 0xff, 0x00, 0x80, 0x80,
			0x00, 0x00, 0x00, 0xff, 0x80, 0x80,
			0x80, 0x80, 0x80, 0x80, 0x80, 0x80,
			0x80, 0x80, 0x80, 0x80, 0x80, 0x80,
		}, pixels(t, bm))
	})

	t.Run("mask ignored when not mask-aware", func(t *testing.T) {
		r := maskedDoc(t, metadata.AppendChunk(nil, metadata.MaskChunkGUID, metadata.EncodeMask(checkerboard(4, 4))))
		acc, err := NewTileAccessor(r)
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.BackgroundColor = gray

		bm, err := acc.Get(roi, coord(t, "C0"), opts)
		require.NoError(t, err)
		got := pixels(t, bm)
		for y := 2; y < 6; y++ {
			require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, got[y*6+2:y*6+6])
		}
	})

	t.Run("malformed container paints without mask", func(t *testing.T) {
		r := maskedDoc(t, []byte{1, 2, 3})
		acc, err := NewTileAccessor(r, WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.BackgroundColor = gray
		opts.MaskAware = true

		bm, err := acc.Get(roi, coord(t, "C0"), opts)
		require.NoError(t, err)
		got := pixels(t, bm)
		for y := 2; y < 6; y++ {
			require.Equal(t, []byte{0xff, 0xff, 0xff, 0xff}, got[y*6+2:y*6+6])
		}
	})
}

func TestTileAccessor_Cache(t *testing.T) {
	r, m := openDoc(t,
		layer0(t, "C0", 0, 0, 0, 2, 2, 1),
		layer0(t, "C0", 1, 2, 0, 2, 2, 2),
	)
	c, err := cache.New(cache.WithCompression(format.CompressionLZ4), cache.WithMetrics(m))
	require.NoError(t, err)

	acc, err := NewTileAccessor(r, WithMetrics(m), WithConcurrency(1))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Cache = c

	for range 2 {
		bm, err := acc.Get(geom.IntRect{W: 4, H: 2}, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, []byte{1, 1, 2, 2, 1, 1, 2, 2}, pixels(t, bm))
	}

	require.Equal(t, 2.0, testutil.ToFloat64(m.SubBlocksRead), "second composition is served from the cache")
	require.Equal(t, 2, c.Statistics().ElementsCount)
	require.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits))

	t.Run("only compressed", func(t *testing.T) {
		c2, err := cache.New()
		require.NoError(t, err)

		opts := DefaultOptions()
		opts.Cache = c2
		opts.OnlyCacheCompressed = true

		_, err = acc.Get(geom.IntRect{W: 4, H: 2}, coord(t, "C0"), opts)
		require.NoError(t, err)
		require.Equal(t, 0, c2.Statistics().ElementsCount)
	})
}

func TestWithConcurrency(t *testing.T) {
	r, _ := openDoc(t, layer0(t, "C0", 0, 0, 0, 2, 2, 1))

	_, err := NewTileAccessor(r, WithConcurrency(0))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

// tileFromSeed derives a sub-block within a 32x32 area from a random value.
func tileFromSeed(t *testing.T, i, v int) document.AddSubBlockInfo {
	x, y := v%24, (v/24)%24
	w, h := 1+(v/576)%16, 1+(v/9216)%16
	m := (v / 147456) % 4

	return layer0(t, "C0", m, x, y, w, h, byte(i+1))
}

func TestTileAccessor_VisibilityEquivalence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 60
	properties := gopter.NewProperties(parameters)

	properties.Property("visibility optimization never changes the result", prop.ForAll(
		func(seeds []int, sortByM bool) bool {
			infos := make([]document.AddSubBlockInfo, len(seeds))
			for i, v := range seeds {
				infos[i] = tileFromSeed(t, i, v)
			}
			r, m := openDoc(t, infos...)
			acc, err := NewTileAccessor(r, WithMetrics(m))
			if err != nil {
				return false
			}

			compose := func(visibility bool) ([]byte, float64) {
				opts := DefaultOptions()
				opts.BackgroundColor = black()
				opts.SortByM = sortByM
				opts.VisibilityOptimization = visibility

				before := testutil.ToFloat64(m.SubBlocksRead)
				bm, err := acc.Get(geom.IntRect{X: 4, Y: 4, W: 20, H: 20}, coord(t, "C0"), opts)
				if err != nil {
					return nil, 0
				}

				return pixels(t, bm), testutil.ToFloat64(m.SubBlocksRead) - before
			}

			plain, plainReads := compose(false)
			culled, culledReads := compose(true)

			return plain != nil && bytes.Equal(plain, culled) && culledReads <= plainReads
		},
		gen.SliceOfN(8, gen.IntRange(0, 1<<20)),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
