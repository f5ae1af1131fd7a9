package compress

import "github.com/arloliu/czi/format"

// supportsHiLo reports whether hi-lo byte packing applies to pixelType.
func supportsHiLo(pixelType format.PixelType) bool {
	return pixelType == format.PixelTypeGray16 || pixelType == format.PixelTypeBgr48
}

// packHiLo splits the little-endian 16-bit words of src into all low bytes
// followed by all high bytes. len(src) must be even.
func packHiLo(src []byte) []byte {
	half := len(src) / 2
	dst := make([]byte, len(src))
	for i := range half {
		dst[i] = src[2*i]
		dst[half+i] = src[2*i+1]
	}

	return dst
}

// unpackHiLo reverses packHiLo.
func unpackHiLo(src []byte) []byte {
	half := len(src) / 2
	dst := make([]byte, len(src))
	for i := range half {
		dst[2*i] = src[i]
		dst[2*i+1] = src[half+i]
	}

	return dst
}
