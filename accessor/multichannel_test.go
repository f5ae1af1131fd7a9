package accessor

import (
	"bytes"
	"testing"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/stretchr/testify/require"
)

func filled(t *testing.T, pt format.PixelType, w, h int, pixel []byte) *bitmap.Bitmap {
	t.Helper()

	bm, err := bitmap.FromData(pt, w, h, w*len(pixel), bytes.Repeat(pixel, w*h))
	require.NoError(t, err)

	return bm
}

func TestComposeMultiChannel_LookUpTable(t *testing.T) {
	t.Run("gray8", func(t *testing.T) {
		lut := make([]byte, 256)
		lut[59] = 88

		out, err := ComposeMultiChannelBgr24(
			[]*bitmap.Bitmap{filled(t, format.PixelTypeGray8, 4, 2, []byte{59})},
			[]ChannelInfo{{Weight: 1, LookUpTable: lut}},
		)
		require.NoError(t, err)
		require.Equal(t, format.PixelTypeBgr24, out.PixelType())
		require.Equal(t, bytes.Repeat([]byte{88}, 4*2*3), pixels(t, out))
	})

	t.Run("inverted gray8", func(t *testing.T) {
		lut := make([]byte, 256)
		for i := range lut {
			lut[i] = byte(255 - i)
		}

		src, err := bitmap.FromData(format.PixelTypeGray8, 4, 1, 4, []byte{0, 1, 128, 255})
		require.NoError(t, err)

		out, err := ComposeMultiChannelBgr24([]*bitmap.Bitmap{src}, []ChannelInfo{{Weight: 1, LookUpTable: lut}})
		require.NoError(t, err)
		require.Equal(t, []byte{255, 255, 255, 254, 254, 254, 127, 127, 127, 0, 0, 0}, pixels(t, out))
	})

	t.Run("gray16", func(t *testing.T) {
		lut := make([]byte, 65536)
		for i := range lut {
			lut[i] = byte(i & 0xff)
		}
		px := make([]byte, 2)
		endian.GetLittleEndianEngine().PutUint16(px, 0x1234)

		out, err := ComposeMultiChannelBgr24(
			[]*bitmap.Bitmap{filled(t, format.PixelTypeGray16, 3, 3, px)},
			[]ChannelInfo{{Weight: 1, LookUpTable: lut}},
		)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{0x34}, 3*3*3), pixels(t, out))
	})

	t.Run("wrong size", func(t *testing.T) {
		_, err := ComposeMultiChannelBgr24(
			[]*bitmap.Bitmap{filled(t, format.PixelTypeGray16, 1, 1, []byte{0, 0})},
			[]ChannelInfo{{Weight: 1, LookUpTable: make([]byte, 256)}},
		)
		require.ErrorIs(t, err, errs.ErrInvalidArgument)
	})
}

func TestComposeMultiChannel_BlackWhitePoint(t *testing.T) {
	src, err := bitmap.FromData(format.PixelTypeGray8, 4, 1, 4, []byte{0, 51, 153, 255})
	require.NoError(t, err)

	t.Run("full range", func(t *testing.T) {
		out, err := ComposeMultiChannelBgr24([]*bitmap.Bitmap{src}, []ChannelInfo{{Weight: 1, WhitePoint: 1}})
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0, 51, 51, 51, 153, 153, 153, 255, 255, 255}, pixels(t, out))
	})

	t.Run("narrowed range", func(t *testing.T) {
		out, err := ComposeMultiChannelBgr24([]*bitmap.Bitmap{src}, []ChannelInfo{{Weight: 1, BlackPoint: 0.2, WhitePoint: 0.6}})
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 0, 0, 0, 0, 255, 255, 255, 255, 255, 255}, pixels(t, out))
	})

	t.Run("tint and weight", func(t *testing.T) {
		src, err := bitmap.FromData(format.PixelTypeGray8, 4, 1, 4, []byte{0, 52, 154, 255})
		require.NoError(t, err)

		out, err := ComposeMultiChannelBgr24([]*bitmap.Bitmap{src}, []ChannelInfo{{
			Weight:     0.5,
			WhitePoint: 1,
			Tinting:    true,
			Tint:       Tint{R: 255, G: 0, B: 0},
		}})
		require.NoError(t, err)
		// BGR order
		require.Equal(t, []byte{0, 0, 0, 0, 0, 26, 0, 0, 77, 0, 0, 128}, pixels(t, out))
	})
}

func TestComposeMultiChannel_Accumulate(t *testing.T) {
	red := ChannelInfo{Weight: 1, WhitePoint: 1, Tinting: true, Tint: Tint{R: 255}}
	green := ChannelInfo{Weight: 1, WhitePoint: 1, Tinting: true, Tint: Tint{G: 255}}

	t.Run("two tinted channels", func(t *testing.T) {
		out, err := ComposeMultiChannelBgr24(
			[]*bitmap.Bitmap{
				filled(t, format.PixelTypeGray8, 2, 2, []byte{100}),
				filled(t, format.PixelTypeGray8, 2, 2, []byte{200}),
			},
			[]ChannelInfo{red, green},
		)
		require.NoError(t, err)
		require.Equal(t, bytes.Repeat([]byte{0, 200, 100}, 4), pixels(t, out))
	})

	t.Run("sum is clamped", func(t *testing.T) {
		gray := ChannelInfo{Weight: 1, WhitePoint: 1}
		out, err := ComposeMultiChannelBgr24(
			[]*bitmap.Bitmap{
				filled(t, format.PixelTypeGray8, 1, 1, []byte{200}),
				filled(t, format.PixelTypeGray8, 1, 1, []byte{200}),
			},
			[]ChannelInfo{gray, gray},
		)
		require.NoError(t, err)
		require.Equal(t, []byte{255, 255, 255}, pixels(t, out))
	})

	t.Run("bgr24 source", func(t *testing.T) {
		out, err := ComposeMultiChannelBgr24(
			[]*bitmap.Bitmap{filled(t, format.PixelTypeBgr24, 1, 1, []byte{10, 20, 30})},
			[]ChannelInfo{{Weight: 1, WhitePoint: 1}},
		)
		require.NoError(t, err)
		require.Equal(t, []byte{10, 20, 30}, pixels(t, out))
	})

	t.Run("bgra32 output", func(t *testing.T) {
		dst := bitmap.MustNew(format.PixelTypeBgra32, 2, 1)
		err := ComposeMultiChannel(dst,
			[]*bitmap.Bitmap{filled(t, format.PixelTypeGray8, 2, 1, []byte{100})},
			[]ChannelInfo{red}, 77)
		require.NoError(t, err)
		require.Equal(t, []byte{0, 0, 100, 77, 0, 0, 100, 77}, pixels(t, dst))
	})
}

func TestComposeMultiChannel_Errors(t *testing.T) {
	gray := ChannelInfo{Weight: 1, WhitePoint: 1}
	small := filled(t, format.PixelTypeGray8, 1, 1, []byte{1})
	big := filled(t, format.PixelTypeGray8, 2, 2, []byte{1})

	_, err := ComposeMultiChannelBgr24([]*bitmap.Bitmap{small, big}, []ChannelInfo{gray, gray})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = ComposeMultiChannelBgr24([]*bitmap.Bitmap{small}, nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	_, err = ComposeMultiChannelBgr24(nil, nil)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	err = ComposeMultiChannel(bitmap.MustNew(format.PixelTypeGray8, 1, 1), []*bitmap.Bitmap{small}, []ChannelInfo{gray}, 0)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)

	float := bitmap.MustNew(format.PixelTypeGray32Float, 1, 1)
	_, err = ComposeMultiChannelBgr24([]*bitmap.Bitmap{float}, []ChannelInfo{gray})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}
