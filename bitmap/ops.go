package bitmap

import (
	"fmt"
	"math"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
)

// RGBFloat is a color with channels in [0, 1].
type RGBFloat struct {
	R, G, B float32
}

// IsNaN reports whether any channel is NaN. A NaN background means "do not clear".
func (c RGBFloat) IsNaN() bool {
	return math.IsNaN(float64(c.R)) || math.IsNaN(float64(c.G)) || math.IsNaN(float64(c.B))
}

// NaNColor returns a color whose channels are all NaN.
func NaNColor() RGBFloat {
	nan := float32(math.NaN())
	return RGBFloat{R: nan, G: nan, B: nan}
}

func clampByte(v float32) byte {
	return byte(min(max(math.Round(float64(v)), 0), 255))
}

func clampUint16(v float32) uint16 {
	return uint16(min(max(math.Round(float64(v)), 0), 65535))
}

// encodeColor converts c into one pixel of the given type. Gray types use the
// channel average.
func encodeColor(pt format.PixelType, c RGBFloat) ([]byte, error) {
	p := make([]byte, pt.BytesPerPixel())
	gray := (c.R + c.G + c.B) / 3

	switch pt {
	case format.PixelTypeGray8:
		p[0] = clampByte(255 * gray)
	case format.PixelTypeGray16:
		le.PutUint16(p, clampUint16(65535*gray))
	case format.PixelTypeGray32Float:
		le.PutUint32(p, math.Float32bits(gray))
	case format.PixelTypeBgr24:
		p[0], p[1], p[2] = clampByte(255*c.B), clampByte(255*c.G), clampByte(255*c.R)
	case format.PixelTypeBgra32:
		p[0], p[1], p[2], p[3] = clampByte(255*c.B), clampByte(255*c.G), clampByte(255*c.R), 0xff
	case format.PixelTypeBgr48:
		le.PutUint16(p[0:], clampUint16(65535*c.B))
		le.PutUint16(p[2:], clampUint16(65535*c.G))
		le.PutUint16(p[4:], clampUint16(65535*c.R))
	default:
		return nil, fmt.Errorf("%w: fill is not supported for %s", errs.ErrInvalidArgument, pt)
	}

	return p, nil
}

// Fill sets every pixel of dst to c.
func Fill(dst *Bitmap, c RGBFloat) error {
	pixel, err := encodeColor(dst.PixelType(), c)
	if err != nil {
		return err
	}

	lck := dst.Lock()
	defer lck.Unlock() //nolint:errcheck

	for y := range dst.Height() {
		row := lck.Row(y)
		for x := 0; x < len(row); x += len(pixel) {
			copy(row[x:], pixel)
		}
	}

	return nil
}

// CopyAt draws src into dst with the top-left corner of src at (xOffset,
// yOffset) in dst coordinates. Parts outside dst are clipped. The pixel type
// is converted if src and dst differ.
func CopyAt(src, dst *Bitmap, xOffset, yOffset int) error {
	return copyAt(src, dst, nil, xOffset, yOffset)
}

// CopyAtWithMask is like CopyAt but only copies source pixels whose mask bit
// is set. The mask is in source coordinates; pixels outside its extent are
// not copied.
func CopyAtWithMask(src, dst *Bitmap, mask *Bitonal, xOffset, yOffset int) error {
	if mask == nil {
		return CopyAt(src, dst, xOffset, yOffset)
	}

	return copyAt(src, dst, mask, xOffset, yOffset)
}

func copyAt(src, dst *Bitmap, mask *Bitonal, xOffset, yOffset int) error {
	conv, err := converterFor(src.PixelType(), dst.PixelType())
	if err != nil {
		return err
	}

	area := geom.IntRect{X: xOffset, Y: yOffset, W: src.Width(), H: src.Height()}.
		Intersect(geom.IntRect{W: dst.Width(), H: dst.Height()})
	if !area.IsNonEmpty() {
		return nil
	}

	srcLck := src.Lock()
	defer srcLck.Unlock() //nolint:errcheck
	dstLck := dst.Lock()
	defer dstLck.Unlock() //nolint:errcheck

	sbpp := src.PixelType().BytesPerPixel()
	dbpp := dst.PixelType().BytesPerPixel()
	sx0 := area.X - xOffset

	for y := area.Y; y < area.Bottom(); y++ {
		sy := y - yOffset
		srcRow := srcLck.Row(sy)[sx0*sbpp : (sx0+area.W)*sbpp]
		dstRow := dstLck.Row(y)[area.X*dbpp : area.Right()*dbpp]

		if mask == nil && conv == nil {
			copy(dstRow, srcRow)
			continue
		}

		for x := range area.W {
			if mask != nil && !mask.Get(sx0+x, sy) {
				continue
			}
			d := dstRow[x*dbpp : (x+1)*dbpp]
			s := srcRow[x*sbpp : (x+1)*sbpp]
			if conv == nil {
				copy(d, s)
			} else {
				conv(d, s)
			}
		}
	}

	return nil
}

// NNResize draws the srcRoi part of src into the dstRoi part of dst with
// nearest-neighbor sampling. A destination pixel is painted when its center
// lies inside dstRoi; the sample is the source pixel whose area contains the
// mapped center. If mask is not nil, source pixels with a cleared (or
// out-of-extent) mask bit are skipped.
func NNResize(src, dst *Bitmap, srcRoi, dstRoi geom.DblRect, mask *Bitonal) error {
	if !srcRoi.IsValid() || !dstRoi.IsValid() || dstRoi.W == 0 || dstRoi.H == 0 {
		return fmt.Errorf("%w: resize rectangles", errs.ErrInvalidArgument)
	}

	conv, err := converterFor(src.PixelType(), dst.PixelType())
	if err != nil {
		return err
	}

	x0 := max(0, int(math.Floor(dstRoi.X)))
	y0 := max(0, int(math.Floor(dstRoi.Y)))
	x1 := min(dst.Width(), int(math.Ceil(dstRoi.X+dstRoi.W)))
	y1 := min(dst.Height(), int(math.Ceil(dstRoi.Y+dstRoi.H)))
	if x1 <= x0 || y1 <= y0 {
		return nil
	}

	srcLck := src.Lock()
	defer srcLck.Unlock() //nolint:errcheck
	dstLck := dst.Lock()
	defer dstLck.Unlock() //nolint:errcheck

	sbpp := src.PixelType().BytesPerPixel()
	dbpp := dst.PixelType().BytesPerPixel()
	scaleX := srcRoi.W / dstRoi.W
	scaleY := srcRoi.H / dstRoi.H

	for y := y0; y < y1; y++ {
		cy := float64(y) + 0.5
		if cy < dstRoi.Y || cy >= dstRoi.Y+dstRoi.H {
			continue
		}
		sy := int(math.Floor(srcRoi.Y + (cy-dstRoi.Y)*scaleY))
		if sy < 0 || sy >= src.Height() {
			continue
		}
		srcRow := srcLck.Row(sy)
		dstRow := dstLck.Row(y)

		for x := x0; x < x1; x++ {
			cx := float64(x) + 0.5
			if cx < dstRoi.X || cx >= dstRoi.X+dstRoi.W {
				continue
			}
			sx := int(math.Floor(srcRoi.X + (cx-dstRoi.X)*scaleX))
			if sx < 0 || sx >= src.Width() {
				continue
			}
			if mask != nil && !mask.Get(sx, sy) {
				continue
			}

			d := dstRow[x*dbpp : (x+1)*dbpp]
			s := srcRow[sx*sbpp : (sx+1)*sbpp]
			if conv == nil {
				copy(d, s)
			} else {
				conv(d, s)
			}
		}
	}

	return nil
}
