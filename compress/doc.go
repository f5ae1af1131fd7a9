// Package compress provides the codecs used by the CZI library.
//
// There are two families of codecs in this package:
//
//   - Pixel codecs (PixelCodec) turn the stored payload of a sub-block into a
//     bitmap and back. They implement the compression modes recorded in the
//     sub-block directory entry: UnCompressed, Zstd0 and Zstd1.
//   - Byte codecs (Codec) compress opaque payloads. They are used by the
//     sub-block cache to keep decoded bitmaps small while cached.
//
// # Pixel Codecs
//
// Pixel codecs are looked up through a Registry. A registry is an explicit
// value, so a caller can hold several registries with different settings:
//
//	reg := compress.NewRegistry(compress.WithHandleSizeMismatch(true))
//	codec, err := reg.Get(format.CompressionZstd1)
//	if err != nil {
//		return err
//	}
//	bm, err := codec.Decode(payload, format.PixelTypeGray16, 1024, 1024)
//
// Zstd0 stores a single zstd frame holding the raw pixel rows. Zstd1 prefixes
// the frame with a small header. The header can flag "hi-lo byte packing",
// where the low bytes of all 16-bit samples are stored first, followed by all
// high bytes. Hi-lo packing only applies to Gray16 and Bgr48.
//
// The encoder refuses to produce a compressed payload that is not strictly
// smaller than the raw pixel data; the caller is expected to fall back to
// storing the sub-block uncompressed.
//
// # Byte Codecs
//
//   - None: returns the input unchanged
//   - Zstd: best compression ratio, moderate CPU cost
//   - S2: fast, moderate ratio
//   - LZ4: fastest decompression, the payload leads with its decoded size
//
// The Zstd byte codec is backed by klauspost/compress by default. Building with
// the czi_gozstd tag (and cgo enabled) switches it to valyala/gozstd.
//
// Example:
//
//	codec, err := compress.GetCodec(format.CompressionS2)
//	if err != nil {
//		return err
//	}
//	packed, err := codec.Compress(buf)
//
// # Thread Safety
//
// All codecs in this package are stateless or use pooled internal state and
// are safe for concurrent use. A Registry is safe for concurrent lookups;
// registering codecs while other goroutines look them up is also safe.
package compress
