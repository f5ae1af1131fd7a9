package compress

import (
	"fmt"
	"sync"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/klauspost/compress/zstd"
)

// maxZstdFrameSize bounds the content size a frame header may declare.
// When size mismatches are tolerated, a frame may hold at most
// maxOversizeFactor times the expected bytes.
const (
	maxZstdFrameSize  = 1 << 31
	maxOversizeFactor = 2
)

const (
	zstd1HeaderMinimal  = 1
	zstd1HeaderWithHiLo = 3
	zstd1ChunkHiLo      = 1
)

var pixelDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(maxZstdFrameSize),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create zstd decoder for pool: %v", err))
		}

		return decoder
	},
}

// pixelEncoderPools holds one encoder pool per compression level. Encoders
// write single segment frames, which always record the content size.
var pixelEncoderPools sync.Map // int -> *sync.Pool

func encoderPool(level int) *sync.Pool {
	if p, ok := pixelEncoderPools.Load(level); ok {
		return p.(*sync.Pool)
	}

	p, _ := pixelEncoderPools.LoadOrStore(level, &sync.Pool{
		New: func() any {
			encoder, err := zstd.NewWriter(nil,
				zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
				zstd.WithEncoderCRC(false),
				zstd.WithSingleSegment(true),
			)
			if err != nil {
				panic(fmt.Sprintf("failed to create zstd encoder for pool: %v", err))
			}

			return encoder
		},
	})

	return p.(*sync.Pool)
}

// zstdCodec handles Zstd0 and Zstd1.
//
// Zstd0 payload: one zstd frame holding the pixel rows with minimal stride.
// Zstd1 payload: a header followed by a zstd frame. The first header byte is
// the header size. Size 1 means no options; size 3 carries chunk type 1
// (hi-lo packing) with bit 0 of the third byte set when the frame content is
// hi-lo packed.
type zstdCodec struct {
	cfg  decodeConfig
	mode format.CompressionMode
}

var _ PixelCodec = (*zstdCodec)(nil)

func (c *zstdCodec) Mode() format.CompressionMode {
	return c.mode
}

func (c *zstdCodec) Decode(data []byte, pixelType format.PixelType, width, height int) (*bitmap.Bitmap, error) {
	bpp := pixelType.BytesPerPixel()
	if bpp == 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: cannot decode %s %dx%d", errs.ErrCodec, pixelType, width, height)
	}

	hiLo := false
	if c.mode == format.CompressionZstd1 {
		var err error
		hiLo, data, err = parseZstd1Header(data)
		if err != nil {
			return nil, err
		}
		if hiLo && !supportsHiLo(pixelType) {
			return nil, fmt.Errorf("%w: hi-lo packing is not valid for %s", errs.ErrCodec, pixelType)
		}
	}

	want := width * height * bpp
	raw, err := decodeFrame(c.cfg, data, want)
	if err != nil {
		return nil, err
	}
	if hiLo {
		raw = unpackHiLo(raw)
	}

	return bitmap.FromData(pixelType, width, height, width*bpp, raw)
}

func (c *zstdCodec) Compress(pixelType format.PixelType, width, height, stride int, pixels []byte, params Parameters) ([]byte, error) {
	packed, err := packRows(pixelType, width, height, stride, pixels)
	if err != nil {
		return nil, err
	}

	var header []byte
	if c.mode == format.CompressionZstd1 {
		hiLo := params.HiLoPacking && supportsHiLo(pixelType)
		if hiLo {
			packed = packHiLo(packed)
			header = []byte{zstd1HeaderWithHiLo, zstd1ChunkHiLo, 1}
		} else {
			header = []byte{zstd1HeaderMinimal}
		}
	}

	pool := encoderPool(params.level())
	encoder, _ := pool.Get().(*zstd.Encoder)
	out := encoder.EncodeAll(packed, header)
	pool.Put(encoder)

	if len(out) >= len(packed) {
		return nil, fmt.Errorf("%w: %s output of %d bytes is not smaller than %d raw bytes",
			errs.ErrCodec, c.mode, len(out), len(packed))
	}

	return out, nil
}

func parseZstd1Header(data []byte) (bool, []byte, error) {
	if len(data) == 0 {
		return false, nil, fmt.Errorf("%w: empty zstd1 payload", errs.ErrCodec)
	}

	switch data[0] {
	case zstd1HeaderMinimal:
		return false, data[1:], nil
	case zstd1HeaderWithHiLo:
		if len(data) < zstd1HeaderWithHiLo || data[1] != zstd1ChunkHiLo {
			return false, nil, fmt.Errorf("%w: malformed zstd1 header", errs.ErrCodec)
		}

		return data[2]&1 == 1, data[3:], nil
	default:
		return false, nil, fmt.Errorf("%w: unsupported zstd1 header size %d", errs.ErrCodec, data[0])
	}
}

// decodeFrame decompresses a single zstd frame whose content size must be
// recorded in the frame header and match want, or stay within
// maxOversizeFactor times want when mismatches are tolerated.
func decodeFrame(cfg decodeConfig, data []byte, want int) ([]byte, error) {
	var hdr zstd.Header
	if err := hdr.Decode(data); err != nil {
		return nil, fmt.Errorf("%w: zstd frame header: %w", errs.ErrCodec, err)
	}
	if !hdr.HasFCS {
		return nil, fmt.Errorf("%w: zstd frame does not record its content size", errs.ErrCodec)
	}

	size := hdr.FrameContentSize
	limit := uint64(want) //nolint:gosec
	if cfg.handleSizeMismatch {
		limit *= maxOversizeFactor
	}
	if size > maxZstdFrameSize || (size != uint64(want) && !cfg.handleSizeMismatch) || size > limit { //nolint:gosec
		return nil, fmt.Errorf("%w: zstd frame holds %d bytes, expected %d", errs.ErrCodec, size, want)
	}

	decoder, _ := pixelDecoderPool.Get().(*zstd.Decoder)
	defer pixelDecoderPool.Put(decoder)

	raw, err := decoder.DecodeAll(data, make([]byte, 0, int(size)))
	if err != nil {
		return nil, fmt.Errorf("%w: zstd decompression failed: %w", errs.ErrCodec, err)
	}

	return fitPayload(cfg, raw, want)
}
