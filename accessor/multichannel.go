package accessor

import (
	"fmt"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/internal/pool"
)

// Tint is an 8-bit RGB color.
type Tint struct {
	R, G, B uint8
}

// ChannelInfo describes how one channel contributes to a multi-channel
// composition.
type ChannelInfo struct {
	// Weight scales the mapped channel value.
	Weight float32
	// Tinting multiplies the mapped value by Tint. Without tinting a gray
	// channel contributes equally to blue, green and red.
	Tinting bool
	Tint    Tint
	// BlackPoint and WhitePoint, in [0, 1], map the normalized sample
	// linearly onto [0, 255]. They are ignored when LookUpTable is set.
	BlackPoint float32
	WhitePoint float32
	// LookUpTable maps a sample directly to [0, 255]. It has 256 entries for
	// 8-bit sources and 65536 entries for 16-bit sources.
	LookUpTable []byte
}

// ComposeMultiChannel blends sources into dst according to infos. dst must
// be Bgr24 or Bgra32; for Bgra32 every pixel gets the given alpha. Sources
// are Gray8, Gray16, Bgr24 or Bgr48 bitmaps of dst's size. Values are summed
// over the channels and clamped to [0, 255].
//
// Returns:
//   - error: ErrInvalidArgument for mismatched sizes, unsupported pixel
//     types or a lookup table of the wrong size
func ComposeMultiChannel(dst *bitmap.Bitmap, sources []*bitmap.Bitmap, infos []ChannelInfo, alpha uint8) error {
	if len(sources) != len(infos) {
		return fmt.Errorf("%w: %d sources but %d channel infos", errs.ErrInvalidArgument, len(sources), len(infos))
	}

	var dbpp int
	switch dst.PixelType() {
	case format.PixelTypeBgr24:
		dbpp = 3
	case format.PixelTypeBgra32:
		dbpp = 4
	default:
		return fmt.Errorf("%w: multi-channel output must be Bgr24 or Bgra32, not %s", errs.ErrInvalidArgument, dst.PixelType())
	}

	w, h := dst.Width(), dst.Height()
	maps := make([][]float32, len(sources))
	for i, src := range sources {
		if src.Width() != w || src.Height() != h {
			return fmt.Errorf("%w: channel %d is %dx%d, expected %dx%d",
				errs.ErrInvalidArgument, i, src.Width(), src.Height(), w, h)
		}
		m, release, err := channelMap(src.PixelType(), &infos[i])
		if err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		defer release()
		maps[i] = m
	}

	acc, release := pool.GetFloat32Slice(w * h * 3)
	defer release()
	for i, src := range sources {
		accumulate(acc, src, maps[i], &infos[i])
	}

	lck := dst.Lock()
	defer lck.Unlock() //nolint:errcheck

	for y := range h {
		row := lck.Row(y)
		a := acc[y*w*3:]
		for x := range w {
			p := row[x*dbpp:]
			p[0] = clamp255(a[x*3])
			p[1] = clamp255(a[x*3+1])
			p[2] = clamp255(a[x*3+2])
			if dbpp == 4 {
				p[3] = alpha
			}
		}
	}

	return nil
}

// ComposeMultiChannelBgr24 is ComposeMultiChannel into a new Bgr24 bitmap.
func ComposeMultiChannelBgr24(sources []*bitmap.Bitmap, infos []ChannelInfo) (*bitmap.Bitmap, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("%w: no channels", errs.ErrInvalidArgument)
	}

	dst, err := bitmap.New(format.PixelTypeBgr24, sources[0].Width(), sources[0].Height())
	if err != nil {
		return nil, err
	}
	if err := ComposeMultiChannel(dst, sources, infos, 0); err != nil {
		return nil, err
	}

	return dst, nil
}

// channelMap precomputes the mapping from a sample to [0, 255] for every
// possible sample value. The table must be released by calling the returned
// function.
func channelMap(pt format.PixelType, info *ChannelInfo) ([]float32, func(), error) {
	var levels int
	switch pt {
	case format.PixelTypeGray8, format.PixelTypeBgr24:
		levels = 1 << 8
	case format.PixelTypeGray16, format.PixelTypeBgr48:
		levels = 1 << 16
	default:
		return nil, nil, fmt.Errorf("%w: pixel type %s cannot be composed", errs.ErrInvalidArgument, pt)
	}
	if info.LookUpTable != nil && len(info.LookUpTable) != levels {
		return nil, nil, fmt.Errorf("%w: lookup table has %d entries, expected %d",
			errs.ErrInvalidArgument, len(info.LookUpTable), levels)
	}

	m, release := pool.GetFloat32Slice(levels)
	if info.LookUpTable != nil {
		for i, v := range info.LookUpTable {
			m[i] = float32(v)
		}

		return m, release, nil
	}

	black, white := info.BlackPoint, info.WhitePoint
	maxV := float32(levels - 1)
	for i := range m {
		v := float32(i) / maxV
		switch {
		case v <= black:
			m[i] = 0
		case v >= white:
			m[i] = 255
		default:
			m[i] = (v - black) / (white - black) * 255
		}
	}

	return m, release, nil
}

func accumulate(acc []float32, src *bitmap.Bitmap, m []float32, info *ChannelInfo) {
	fb, fg, fr := info.Weight, info.Weight, info.Weight
	if info.Tinting {
		fb *= float32(info.Tint.B) / 255
		fg *= float32(info.Tint.G) / 255
		fr *= float32(info.Tint.R) / 255
	}

	lck := src.Lock()
	defer lck.Unlock() //nolint:errcheck

	w := src.Width()
	for y := range src.Height() {
		row := lck.Row(y)
		a := acc[y*w*3:]
		for x := range w {
			var b, g, r float32
			switch src.PixelType() {
			case format.PixelTypeGray8:
				b = m[row[x]]
				g, r = b, b
			case format.PixelTypeGray16:
				b = m[le.Uint16(row[x*2:])]
				g, r = b, b
			case format.PixelTypeBgr24:
				b, g, r = m[row[x*3]], m[row[x*3+1]], m[row[x*3+2]]
			case format.PixelTypeBgr48:
				b, g, r = m[le.Uint16(row[x*6:])], m[le.Uint16(row[x*6+2:])], m[le.Uint16(row[x*6+4:])]
			}
			a[x*3] += b * fb
			a[x*3+1] += g * fg
			a[x*3+2] += r * fr
		}
	}
}

func clamp255(v float32) byte {
	switch {
	case v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return byte(v + 0.5)
	}
}

var le = endian.GetLittleEndianEngine()
