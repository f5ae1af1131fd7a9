//go:build !czi_gozstd || !cgo

package compress

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// cacheZstdLevel is the zstd level of cache entries, which are written on
// every miss.
const cacheZstdLevel = 1

// Compress packs data with an encoder shared with the Zstd pixel codecs.
func (ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	p := encoderPool(cacheZstdLevel)
	encoder, _ := p.Get().(*zstd.Encoder)
	defer p.Put(encoder)

	return encoder.EncodeAll(data, nil), nil
}

// Decompress restores data with a pooled decoder.
func (ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	decoder, _ := pixelDecoderPool.Get().(*zstd.Decoder)
	defer pixelDecoderPool.Put(decoder)

	out, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return out, nil
}
