package bitmap

import (
	"testing"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/stretchr/testify/require"
)

func gray8(t *testing.T, w, h int, pixels ...byte) *Bitmap {
	t.Helper()
	bm, err := FromData(format.PixelTypeGray8, w, h, w, pixels)
	require.NoError(t, err)

	return bm
}

func pixels(t *testing.T, bm *Bitmap) []byte {
	t.Helper()
	lck := bm.Lock()
	defer func() { require.NoError(t, lck.Unlock()) }()

	out := []byte{}
	for y := range bm.Height() {
		out = append(out, lck.Row(y)...)
	}

	return out
}

func TestNew(t *testing.T) {
	bm, err := New(format.PixelTypeBgr48, 3, 2)
	require.NoError(t, err)
	require.Equal(t, 18, bm.Stride())
	require.Equal(t, int64(36), bm.SizeInBytes())
	require.Equal(t, geom.IntSize{W: 3, H: 2}, bm.Size())

	_, err = New(format.PixelTypeInvalid, 1, 1)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = FromData(format.PixelTypeGray16, 4, 2, 6, make([]byte, 12))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = FromData(format.PixelTypeGray16, 4, 2, 8, make([]byte, 15))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestLockBalance(t *testing.T) {
	bm := MustNew(format.PixelTypeGray8, 2, 2)

	l1 := bm.Lock()
	l2 := bm.Lock()
	require.Equal(t, 2, bm.LockCount())
	require.ErrorIs(t, bm.Release(), errs.ErrLockImbalance)

	require.NoError(t, l1.Unlock())
	require.ErrorIs(t, l1.Unlock(), errs.ErrLockImbalance)
	require.Equal(t, 1, bm.LockCount())

	require.NoError(t, l2.Unlock())
	require.Equal(t, 0, bm.LockCount())
	require.NoError(t, bm.Release())
}

func TestFill(t *testing.T) {
	tests := []struct {
		pt   format.PixelType
		c    RGBFloat
		want []byte
	}{
		{format.PixelTypeGray8, RGBFloat{1, 1, 1}, []byte{255}},
		{format.PixelTypeGray8, RGBFloat{0.5, 0.5, 0.5}, []byte{128}},
		{format.PixelTypeGray16, RGBFloat{1, 0, 0.5}, []byte{0x00, 0x80}},
		{format.PixelTypeBgr24, RGBFloat{1, 0.5, 0}, []byte{0, 128, 255}},
		{format.PixelTypeBgra32, RGBFloat{0, 0, 1}, []byte{255, 0, 0, 255}},
		{format.PixelTypeBgr48, RGBFloat{0, 1, 0}, []byte{0, 0, 0xff, 0xff, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.pt.String(), func(t *testing.T) {
			bm := MustNew(tt.pt, 2, 1)
			require.NoError(t, Fill(bm, tt.c))
			got := pixels(t, bm)
			require.Equal(t, tt.want, got[:len(tt.want)])
			require.Equal(t, tt.want, got[len(tt.want):])
		})
	}

	require.ErrorIs(t, Fill(MustNew(format.PixelTypeGray64ComplexFloat, 1, 1), RGBFloat{}), errs.ErrInvalidArgument)
	require.True(t, NaNColor().IsNaN())
	require.False(t, RGBFloat{}.IsNaN())
}

func TestCopyAt(t *testing.T) {
	src := gray8(t, 2, 2, 1, 2, 3, 4)

	t.Run("Clipped at negative offset", func(t *testing.T) {
		dst := MustNew(format.PixelTypeGray8, 3, 3)
		require.NoError(t, CopyAt(src, dst, -1, -1))
		require.Equal(t, []byte{4, 0, 0, 0, 0, 0, 0, 0, 0}, pixels(t, dst))
	})

	t.Run("Inside", func(t *testing.T) {
		dst := MustNew(format.PixelTypeGray8, 3, 3)
		require.NoError(t, CopyAt(src, dst, 1, 1))
		require.Equal(t, []byte{0, 0, 0, 0, 1, 2, 0, 3, 4}, pixels(t, dst))
	})

	t.Run("Outside", func(t *testing.T) {
		dst := MustNew(format.PixelTypeGray8, 3, 3)
		require.NoError(t, CopyAt(src, dst, 5, 0))
		require.Equal(t, make([]byte, 9), pixels(t, dst))
	})

	t.Run("Gray8 to Bgr24", func(t *testing.T) {
		dst := MustNew(format.PixelTypeBgr24, 2, 1)
		require.NoError(t, CopyAt(src, dst, 0, 0))
		require.Equal(t, []byte{1, 1, 1, 2, 2, 2}, pixels(t, dst))
	})

	t.Run("Gray8 to Gray16", func(t *testing.T) {
		dst := MustNew(format.PixelTypeGray16, 1, 1)
		require.NoError(t, CopyAt(gray8(t, 1, 1, 0xff), dst, 0, 0))
		require.Equal(t, []byte{0xff, 0xff}, pixels(t, dst))
	})

	t.Run("Float to integer is rejected", func(t *testing.T) {
		f := MustNew(format.PixelTypeGray32Float, 1, 1)
		require.ErrorIs(t, CopyAt(f, MustNew(format.PixelTypeGray8, 1, 1), 0, 0), errs.ErrInvalidArgument)
	})

	require.Equal(t, 0, src.LockCount())
}

func TestCopyAtWithMask(t *testing.T) {
	src := gray8(t, 3, 2, 1, 2, 3, 4, 5, 6)
	mask := NewBitonal(2, 2) // narrower than src: column 2 is outside the mask
	mask.Set(0, 0, true)
	mask.Set(1, 1, true)

	dst := MustNew(format.PixelTypeGray8, 3, 2)
	require.NoError(t, Fill(dst, RGBFloat{}))
	require.NoError(t, CopyAtWithMask(src, dst, mask, 0, 0))
	require.Equal(t, []byte{1, 0, 0, 0, 5, 0}, pixels(t, dst))
}

func TestBitonal(t *testing.T) {
	b := NewBitonal(10, 2)
	require.Equal(t, 2, b.Stride)

	b.Set(9, 1, true)
	require.True(t, b.Get(9, 1))
	require.Equal(t, byte(0x40), b.Data[3])
	require.False(t, b.Get(10, 1))

	b.Set(9, 1, false)
	require.False(t, b.Get(9, 1))

	b.Fill(true)
	require.True(t, b.Get(0, 0))

	_, err := BitonalFromData(16, 2, 1, make([]byte, 4))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
	_, err = BitonalFromData(8, 2, 1, make([]byte, 1))
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestNNResize(t *testing.T) {
	t.Run("Downscale by two", func(t *testing.T) {
		src := gray8(t, 4, 2, 1, 2, 3, 4, 5, 6, 7, 8)
		dst := MustNew(format.PixelTypeGray8, 2, 1)
		require.NoError(t, NNResize(src, dst, geom.DblRect{W: 4, H: 2}, geom.DblRect{W: 2, H: 1}, nil))
		require.Equal(t, []byte{6, 8}, pixels(t, dst))
	})

	t.Run("Upscale by two", func(t *testing.T) {
		src := gray8(t, 2, 1, 1, 2)
		dst := MustNew(format.PixelTypeGray8, 4, 2)
		require.NoError(t, NNResize(src, dst, geom.DblRect{W: 2, H: 1}, geom.DblRect{W: 4, H: 2}, nil))
		require.Equal(t, []byte{1, 1, 2, 2, 1, 1, 2, 2}, pixels(t, dst))
	})

	t.Run("Partial destination", func(t *testing.T) {
		src := gray8(t, 1, 1, 9)
		dst := MustNew(format.PixelTypeGray8, 3, 1)
		require.NoError(t, NNResize(src, dst, geom.DblRect{W: 1, H: 1}, geom.DblRect{X: 1, W: 1, H: 1}, nil))
		require.Equal(t, []byte{0, 9, 0}, pixels(t, dst))
	})

	t.Run("Masked", func(t *testing.T) {
		src := gray8(t, 2, 1, 1, 2)
		mask := NewBitonal(2, 1)
		mask.Set(1, 0, true)
		dst := MustNew(format.PixelTypeGray8, 4, 1)
		require.NoError(t, NNResize(src, dst, geom.DblRect{W: 2, H: 1}, geom.DblRect{W: 4, H: 1}, mask))
		require.Equal(t, []byte{0, 0, 2, 2}, pixels(t, dst))
	})

	t.Run("Empty destination roi", func(t *testing.T) {
		src := gray8(t, 1, 1, 1)
		err := NNResize(src, MustNew(format.PixelTypeGray8, 1, 1), geom.DblRect{W: 1, H: 1}, geom.DblRect{}, nil)
		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})
}

func TestConvertAndClone(t *testing.T) {
	src, err := FromData(format.PixelTypeBgr24, 1, 1, 3, []byte{30, 60, 90})
	require.NoError(t, err)

	g, err := Convert(src, format.PixelTypeGray8)
	require.NoError(t, err)
	require.Equal(t, []byte{60}, pixels(t, g))

	a, err := Convert(src, format.PixelTypeBgra32)
	require.NoError(t, err)
	require.Equal(t, []byte{30, 60, 90, 255}, pixels(t, a))

	c := src.Clone()
	require.Equal(t, pixels(t, src), pixels(t, c))
}
