package compress

import (
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/s2"
	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
)

// maxCachedPayload bounds the decoded size a byte codec accepts from a
// payload header. It covers an 8192x8192 Bgr48 sub-block.
const maxCachedPayload = 8192 * 8192 * 6

// Compressor packs an opaque payload. The result is owned by the caller and
// the input is not modified.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
}

// Decompressor restores a payload produced by the matching Compressor. It
// fails on corrupted input or input produced by another codec.
type Decompressor interface {
	Decompress(data []byte) ([]byte, error)
}

// Codec is a byte codec usable by the sub-block cache. Implementations are
// safe for concurrent use.
type Codec interface {
	Compressor
	Decompressor
}

var byteCodecs = map[format.CompressionType]Codec{
	format.CompressionNone: NewNoOpCompressor(),
	format.CompressionZstd: NewZstdCompressor(),
	format.CompressionS2:   NewS2Compressor(),
	format.CompressionLZ4:  NewLZ4Compressor(),
}

// GetCodec returns the shared byte codec for t.
func GetCodec(t format.CompressionType) (Codec, error) {
	codec, ok := byteCodecs[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCompression, t)
	}

	return codec, nil
}

// CreateCodec is GetCodec with the consumer named in the error, e.g. "cache".
func CreateCodec(t format.CompressionType, target string) (Codec, error) {
	codec, ok := byteCodecs[t]
	if !ok {
		return nil, fmt.Errorf("%w: invalid %s compression: %s", errs.ErrUnsupportedCompression, target, t)
	}

	return codec, nil
}

// NoOpCompressor keeps cached bitmaps as they are. Its results share memory
// with the input.
type NoOpCompressor struct{}

// NewNoOpCompressor returns the pass-through codec.
func NewNoOpCompressor() NoOpCompressor { return NoOpCompressor{} }

// Compress returns data unchanged.
func (NoOpCompressor) Compress(data []byte) ([]byte, error) { return data, nil }

// Decompress returns data unchanged.
func (NoOpCompressor) Decompress(data []byte) ([]byte, error) { return data, nil }

// S2Compressor trades ratio for speed. It suits caches that are hit far more
// often than they are filled.
type S2Compressor struct{}

// NewS2Compressor returns the S2 codec.
func NewS2Compressor() S2Compressor { return S2Compressor{} }

func (S2Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	return s2.Encode(nil, data), nil
}

func (S2Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	n, err := s2.DecodedLen(data)
	if err != nil {
		return nil, fmt.Errorf("s2 decompression failed: %w", err)
	}
	if n > maxCachedPayload {
		return nil, fmt.Errorf("s2 decompression failed: decoded size %d too large", n)
	}

	out, err := s2.Decode(make([]byte, n), data)
	if err != nil {
		return nil, fmt.Errorf("s2 decompression failed: %w", err)
	}

	return out, nil
}

// LZ4Compressor stores an LZ4 block behind a uvarint holding the decoded
// size, so Decompress allocates exactly once.
type LZ4Compressor struct{}

// NewLZ4Compressor returns the LZ4 codec.
func NewLZ4Compressor() LZ4Compressor { return LZ4Compressor{} }

func (LZ4Compressor) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	dst := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
	hdr := binary.PutUvarint(dst, uint64(len(data)))

	n, err := lz4.CompressBlock(data, dst[hdr:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}

	return dst[:hdr+n], nil
}

func (LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}

	size, hdr := binary.Uvarint(data)
	if hdr <= 0 || size > maxCachedPayload {
		return nil, fmt.Errorf("lz4 decompression failed: invalid size header")
	}

	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[hdr:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompression failed: %w", err)
	}
	if uint64(n) != size {
		return nil, fmt.Errorf("lz4 decompression failed: got %d bytes, want %d", n, size)
	}

	return out, nil
}

// ZstdCompressor is the best-ratio byte codec. The implementation is picked at
// build time, see zstd_pure.go and zstd_cgo.go.
type ZstdCompressor struct{}

// NewZstdCompressor returns the Zstd codec.
func NewZstdCompressor() ZstdCompressor { return ZstdCompressor{} }

var (
	_ Codec = NoOpCompressor{}
	_ Codec = S2Compressor{}
	_ Codec = LZ4Compressor{}
	_ Codec = ZstdCompressor{}
)
