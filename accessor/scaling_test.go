package accessor

import (
	"bytes"
	"testing"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/stretchr/testify/require"
)

// pyramidTile is a layer-1 tile (minification 2) of value 99 covering 16x16
// pixels.
func pyramidTile(t *testing.T) document.AddSubBlockInfo {
	t.Helper()

	return gray8(t, "C0", -1, geom.IntRect{W: 16, H: 16}, geom.IntSize{W: 8, H: 8}, 99)
}

// openPyramidDoc has four 8x8 layer-0 tiles with the values 10, 20, 30 and
// 40 below pyramidTile.
func openPyramidDoc(t *testing.T) *document.Reader {
	t.Helper()

	r, _ := openDoc(t,
		layer0(t, "C0", 0, 0, 0, 8, 8, 10),
		layer0(t, "C0", 1, 8, 0, 8, 8, 20),
		layer0(t, "C0", 2, 0, 8, 8, 8, 30),
		layer0(t, "C0", 3, 8, 8, 8, 8, 40),
		pyramidTile(t),
	)

	return r
}

func pixelAt(t *testing.T, bm *bitmap.Bitmap, x, y int) byte {
	t.Helper()

	return pixels(t, bm)[y*bm.Width()+x]
}

func TestCalcSize(t *testing.T) {
	require.Equal(t, geom.IntSize{W: 3, H: 3}, CalcSize(geom.IntRect{W: 10, H: 10}, 0.33))
	require.Equal(t, geom.IntSize{W: 10, H: 5}, CalcSize(geom.IntRect{X: 7, W: 20, H: 10}, 0.5))
	require.Equal(t, geom.IntSize{W: 20, H: 10}, CalcSize(geom.IntRect{W: 20, H: 10}, 1))
}

func TestScalingAccessor_LayerSelection(t *testing.T) {
	r := openPyramidDoc(t)
	acc, err := NewScalingAccessor(r)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.BackgroundColor = black()
	roi := geom.IntRect{W: 16, H: 16}

	t.Run("zoom 1 uses layer 0", func(t *testing.T) {
		bm, err := acc.Get(roi, coord(t, "C0"), 1, opts)
		require.NoError(t, err)
		require.Equal(t, geom.IntSize{W: 16, H: 16}, bm.Size())
		require.Equal(t, byte(10), pixelAt(t, bm, 0, 0))
		require.Equal(t, byte(20), pixelAt(t, bm, 15, 0))
		require.Equal(t, byte(30), pixelAt(t, bm, 0, 15))
		require.Equal(t, byte(40), pixelAt(t, bm, 15, 15))
	})

	t.Run("zoom 0.75 downsamples layer 0", func(t *testing.T) {
		bm, err := acc.Get(roi, coord(t, "C0"), 0.75, opts)
		require.NoError(t, err)
		require.Equal(t, geom.IntSize{W: 12, H: 12}, bm.Size())
		require.Equal(t, byte(10), pixelAt(t, bm, 5, 5))
		require.Equal(t, byte(20), pixelAt(t, bm, 6, 0))
		require.Equal(t, byte(40), pixelAt(t, bm, 11, 11))
	})

	t.Run("zoom 0.5 uses layer 1", func(t *testing.T) {
		bm, err := acc.Get(roi, coord(t, "C0"), 0.5, opts)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{99}, 64), pixels(t, bm))
	})

	t.Run("zoom 0.25 uses the coarsest layer", func(t *testing.T) {
		bm, err := acc.Get(roi, coord(t, "C0"), 0.25, opts)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{99}, 16), pixels(t, bm))
	})

	t.Run("zoom above 1 uses layer 0", func(t *testing.T) {
		bm, err := acc.Get(geom.IntRect{X: 7, Y: 0, W: 2, H: 1}, coord(t, "C0"), 2, opts)
		require.NoError(t, err)
		require.Equal(t, []byte{10, 10, 20, 20, 10, 10, 20, 20}, pixels(t, bm))
	})
}

func TestScalingAccessor_Errors(t *testing.T) {
	r := openPyramidDoc(t)
	acc, err := NewScalingAccessor(r)
	require.NoError(t, err)

	_, err = acc.Get(geom.IntRect{W: 16, H: 16}, coord(t, "C0"), 0, DefaultOptions())
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	dst := bitmap.MustNew(format.PixelTypeGray8, 4, 4)
	err = acc.GetInto(dst, geom.IntRect{W: 16, H: 16}, coord(t, "C0"), 0.5, DefaultOptions())
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	require.NoError(t, acc.GetInto(dst, geom.IntRect{W: 16, H: 16}, coord(t, "C0"), 0.25, DefaultOptions()))

	_, err = acc.Get(geom.IntRect{W: 16, H: 16}, coord(t, "C1"), 1, DefaultOptions())
	require.ErrorIs(t, err, errs.ErrInvalidPlaneCoordinate)
}

func TestScalingAccessor_PerScene(t *testing.T) {
	r, _ := openDoc(t,
		layer0(t, "C0S0", 0, 0, 0, 8, 8, 1),
		gray8(t, "C0S0", -1, geom.IntRect{W: 8, H: 8}, geom.IntSize{W: 4, H: 4}, 2),
		layer0(t, "C0S1", 0, 8, 0, 8, 8, 3),
	)
	acc, err := NewScalingAccessor(r)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.BackgroundColor = black()

	bm, err := acc.Get(geom.IntRect{W: 16, H: 8}, coord(t, "C0"), 0.5, opts)
	require.NoError(t, err)
	require.Equal(t, geom.IntSize{W: 8, H: 4}, bm.Size())

	row := []byte{2, 2, 2, 2, 3, 3, 3, 3}
	require.Equal(t, bytes.Repeat(row, 4), pixels(t, bm), "each scene picks its own best layer")

	t.Run("scene filter", func(t *testing.T) {
		opts := opts
		opts.SceneFilter = []int{1}

		bm, err := acc.Get(geom.IntRect{W: 16, H: 8}, coord(t, "C0"), 0.5, opts)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{0, 0, 0, 0, 3, 3, 3, 3}, 4), pixels(t, bm))
	})
}

func TestSelectLayer(t *testing.T) {
	cand := func(logical, physical int) candidate {
		return candidate{entry: directory.SubBlockEntry{
			LogicalRect:  geom.IntRect{W: logical, H: logical},
			PhysicalSize: geom.IntSize{W: physical, H: physical},
		}}
	}
	// zooms: 0.25, 0.5, 0.5, 1, 1
	cands := []candidate{cand(16, 4), cand(16, 8), cand(8, 4), cand(8, 8), cand(4, 4)}

	tests := []struct {
		zoom       float64
		start, end int
	}{
		{1, 3, 5},
		{0.9, 3, 5},
		{0.5, 1, 3},
		{0.3, 1, 3},
		{0.25, 0, 1},
		{0.1, 0, 1},
		{2, 3, 5},
	}
	for _, tt := range tests {
		start, end := selectLayer(cands, tt.zoom)
		require.Equal(t, tt.start, start, "zoom %g", tt.zoom)
		require.Equal(t, tt.end, end, "zoom %g", tt.zoom)
	}

	start, end := selectLayer(nil, 1)
	require.Zero(t, start)
	require.Zero(t, end)
}

func TestPyramidLayerAccessor(t *testing.T) {
	r := openPyramidDoc(t)
	acc, err := NewPyramidLayerAccessor(r)
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.BackgroundColor = black()
	roi := geom.IntRect{W: 16, H: 16}

	t.Run("layer 1", func(t *testing.T) {
		layer := directory.PyramidLayerInfo{MinificationFactor: 2, PyramidLayerNo: 1}
		require.Equal(t, geom.IntSize{W: 8, H: 8}, CalcPyramidLayerSize(roi, layer))

		bm, err := acc.Get(roi, coord(t, "C0"), layer, opts)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{99}, 64), pixels(t, bm))
	})

	t.Run("layer 0", func(t *testing.T) {
		bm, err := acc.Get(roi, coord(t, "C0"), directory.PyramidLayerInfo{}, opts)
		require.NoError(t, err)
		require.Equal(t, geom.IntSize{W: 16, H: 16}, bm.Size())
		require.Equal(t, byte(10), pixelAt(t, bm, 0, 0))
		require.Equal(t, byte(40), pixelAt(t, bm, 15, 15))
	})

	t.Run("layer without sub-blocks", func(t *testing.T) {
		layer := directory.PyramidLayerInfo{MinificationFactor: 2, PyramidLayerNo: 2}
		bm, err := acc.Get(roi, coord(t, "C0"), layer, opts)
		require.NoError(t, err)
		require.Equal(t, make([]byte, 16), pixels(t, bm))
	})

	t.Run("offset region", func(t *testing.T) {
		layer := directory.PyramidLayerInfo{MinificationFactor: 2, PyramidLayerNo: 1}
		bm, err := acc.Get(geom.IntRect{X: 8, Y: 8, W: 16, H: 16}, coord(t, "C0"), layer, opts)
		require.NoError(t, err)

		got := pixels(t, bm)
		require.Equal(t, byte(99), got[0])
		require.Equal(t, byte(0), got[4*8+4])
	})

	t.Run("empty result", func(t *testing.T) {
		layer := directory.PyramidLayerInfo{MinificationFactor: 2, PyramidLayerNo: 1}
		_, err := acc.Get(geom.IntRect{W: 1, H: 1}, coord(t, "C0"), layer, opts)
		require.ErrorIs(t, err, errs.ErrInvalidArgument)

		dst := bitmap.MustNew(format.PixelTypeGray8, 2, 2)
		err = acc.GetInto(dst, roi, coord(t, "C0"), layer, opts)
		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})
}

func TestLayerNumber(t *testing.T) {
	entry := func(logical, pw, ph int) *directory.SubBlockEntry {
		return &directory.SubBlockEntry{
			LogicalRect:  geom.IntRect{W: logical, H: logical},
			PhysicalSize: geom.IntSize{W: pw, H: ph},
		}
	}

	require.Equal(t, 0, layerNumber(entry(8, 8, 8), 2))
	require.Equal(t, 0, layerNumber(entry(8, 8, 8), 0))
	require.Equal(t, 1, layerNumber(entry(16, 8, 8), 2))
	require.Equal(t, 2, layerNumber(entry(16, 4, 4), 2))
	require.Equal(t, 2, layerNumber(entry(18, 2, 2), 3))
	require.Equal(t, -1, layerNumber(entry(16, 4, 4), 3))
	require.Equal(t, -1, layerNumber(entry(24, 8, 8), 2))
	require.Equal(t, -1, layerNumber(entry(16, 8, 8), 1))
}
