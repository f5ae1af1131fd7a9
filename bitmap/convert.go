package bitmap

import (
	"fmt"

	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// pixelConverter converts one pixel from src to dst.
type pixelConverter func(dst, src []byte)

// bgr16 is a pixel expanded to 16 bits per channel.
type bgr16 struct {
	b, g, r uint16
}

func readBgr16(pt format.PixelType, p []byte) bgr16 {
	switch pt {
	case format.PixelTypeGray8:
		v := uint16(p[0]) * 257
		return bgr16{v, v, v}
	case format.PixelTypeGray16:
		v := le.Uint16(p)
		return bgr16{v, v, v}
	case format.PixelTypeBgr24, format.PixelTypeBgra32:
		return bgr16{uint16(p[0]) * 257, uint16(p[1]) * 257, uint16(p[2]) * 257}
	case format.PixelTypeBgr48:
		return bgr16{
			le.Uint16(p[0:]),
			le.Uint16(p[2:]),
			le.Uint16(p[4:]),
		}
	}

	return bgr16{}
}

func writeBgr16(pt format.PixelType, p []byte, v bgr16) {
	switch pt {
	case format.PixelTypeGray8:
		p[0] = byte(((uint32(v.b) + uint32(v.g) + uint32(v.r)) / 3) >> 8)
	case format.PixelTypeGray16:
		le.PutUint16(p, uint16((uint32(v.b)+uint32(v.g)+uint32(v.r))/3))
	case format.PixelTypeBgr24:
		p[0], p[1], p[2] = byte(v.b>>8), byte(v.g>>8), byte(v.r>>8)
	case format.PixelTypeBgra32:
		p[0], p[1], p[2], p[3] = byte(v.b>>8), byte(v.g>>8), byte(v.r>>8), 0xff
	case format.PixelTypeBgr48:
		le.PutUint16(p[0:], v.b)
		le.PutUint16(p[2:], v.g)
		le.PutUint16(p[4:], v.r)
	}
}

func isIntegerColorType(pt format.PixelType) bool {
	switch pt {
	case format.PixelTypeGray8, format.PixelTypeGray16, format.PixelTypeBgr24,
		format.PixelTypeBgr48, format.PixelTypeBgra32:
		return true
	}

	return false
}

// converterFor returns the per-pixel converter from src to dst. A nil
// converter with nil error means the pixel types are equal and rows can be
// copied directly.
func converterFor(src, dst format.PixelType) (pixelConverter, error) {
	if src == dst {
		return nil, nil
	}
	if !isIntegerColorType(src) || !isIntegerColorType(dst) {
		return nil, fmt.Errorf("%w: conversion from %s to %s is not supported", errs.ErrInvalidArgument, src, dst)
	}

	if src == format.PixelTypeBgra32 && dst == format.PixelTypeBgr24 {
		return func(d, s []byte) { d[0], d[1], d[2] = s[0], s[1], s[2] }, nil
	}
	if src == format.PixelTypeBgr24 && dst == format.PixelTypeBgra32 {
		return func(d, s []byte) { d[0], d[1], d[2], d[3] = s[0], s[1], s[2], 0xff }, nil
	}

	return func(d, s []byte) { writeBgr16(dst, d, readBgr16(src, s)) }, nil
}

// Convert returns a copy of src converted to pixelType. Gray values are
// replicated into all color channels; colors are averaged into gray; 8-bit
// samples are scaled to 16 bits by 257 and 16-bit samples to 8 bits by
// dropping the low byte. Floating point and complex types only convert to
// themselves.
func Convert(src *Bitmap, pixelType format.PixelType) (*Bitmap, error) {
	dst, err := New(pixelType, src.Width(), src.Height())
	if err != nil {
		return nil, err
	}
	if err := CopyAt(src, dst, 0, 0); err != nil {
		return nil, err
	}

	return dst, nil
}

var le = endian.GetLittleEndianEngine()
