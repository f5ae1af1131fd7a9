//go:build czi_gozstd && cgo

package compress

import (
	"fmt"

	"github.com/valyala/gozstd"
)

const cacheZstdLevel = 1

// Compress packs data with libzstd.
func (ZstdCompressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return gozstd.CompressLevel(nil, data, cacheZstdLevel), nil
}

// Decompress restores data with libzstd.
func (ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	out, err := gozstd.Decompress(nil, data)
	if err != nil {
		return nil, fmt.Errorf("zstd decompression failed: %w", err)
	}

	return out, nil
}
