package compress

import (
	"fmt"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// rawCodec handles CompressionUnCompressed: the payload is the pixel rows with
// the minimal stride.
type rawCodec struct {
	cfg decodeConfig
}

var _ PixelCodec = (*rawCodec)(nil)

func (c *rawCodec) Mode() format.CompressionMode {
	return format.CompressionUnCompressed
}

func (c *rawCodec) Decode(data []byte, pixelType format.PixelType, width, height int) (*bitmap.Bitmap, error) {
	bpp := pixelType.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: cannot decode pixel type %s", errs.ErrCodec, pixelType)
	}

	stride := width * bpp
	if len(data) >= stride*height {
		return bitmap.FromData(pixelType, width, height, stride, data)
	}

	payload, err := fitPayload(c.cfg, data, stride*height)
	if err != nil {
		return nil, err
	}

	return bitmap.FromData(pixelType, width, height, stride, payload)
}

// Compress returns a copy of the pixel rows. Uncompressed storage is never
// smaller than the raw data, so the size rule of the compressing codecs does
// not apply here.
func (c *rawCodec) Compress(pixelType format.PixelType, width, height, stride int, pixels []byte, _ Parameters) ([]byte, error) {
	packed, err := packRows(pixelType, width, height, stride, pixels)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(packed))
	copy(out, packed)

	return out, nil
}
