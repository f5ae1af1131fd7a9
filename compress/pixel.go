package compress

import (
	"fmt"
	"sync"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/internal/options"
)

// PixelCodec converts between the stored payload of a sub-block and a bitmap.
//
// Decode must fail with an error wrapping errs.ErrCodec on empty, truncated
// or garbage input. Compress must fail with an error wrapping errs.ErrCodec
// if the result would not be strictly smaller than the raw pixel data.
type PixelCodec interface {
	// Mode returns the compression mode tag this codec handles.
	Mode() format.CompressionMode

	// Decode decodes data into a bitmap of the given pixel type and size.
	Decode(data []byte, pixelType format.PixelType, width, height int) (*bitmap.Bitmap, error)

	// Compress encodes the pixel rows described by stride and pixels.
	Compress(pixelType format.PixelType, width, height, stride int, pixels []byte, params Parameters) ([]byte, error)
}

// Parameters tune the pixel encoders. The zero value selects defaults.
type Parameters struct {
	// ZstdLevel is the zstd compression level, clamped to [MinZstdLevel, MaxZstdLevel].
	// Zero means DefaultZstdLevel.
	ZstdLevel int
	// HiLoPacking enables hi-lo byte packing for Zstd1. Ignored for pixel types
	// other than Gray16 and Bgr48.
	HiLoPacking bool
}

const (
	MinZstdLevel     = -7
	MaxZstdLevel     = 22
	DefaultZstdLevel = 1
)

func (p Parameters) level() int {
	if p.ZstdLevel == 0 {
		return DefaultZstdLevel
	}

	return min(max(p.ZstdLevel, MinZstdLevel), MaxZstdLevel)
}

type decodeConfig struct {
	handleSizeMismatch bool
}

// RegistryOption configures a Registry.
type RegistryOption = options.Option[*Registry]

// WithHandleSizeMismatch controls what decoders do when the payload size does
// not match the expected bitmap size. When enabled (the default) missing
// pixels are zero-filled and surplus bytes are ignored; when disabled the
// decoder fails.
func WithHandleSizeMismatch(enabled bool) RegistryOption {
	return options.NoError(func(r *Registry) {
		r.cfg.handleSizeMismatch = enabled
	})
}

// Registry maps compression mode tags to pixel codecs.
type Registry struct {
	mu     sync.RWMutex
	cfg    decodeConfig
	codecs map[format.CompressionMode]PixelCodec
}

// NewRegistry creates a registry holding the built-in codecs for
// UnCompressed, Zstd0 and Zstd1.
func NewRegistry(opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		cfg:    decodeConfig{handleSizeMismatch: true},
		codecs: make(map[format.CompressionMode]PixelCodec),
	}
	if err := options.Apply(r, opts...); err != nil {
		return nil, err
	}

	r.codecs[format.CompressionUnCompressed] = &rawCodec{cfg: r.cfg}
	r.codecs[format.CompressionZstd0] = &zstdCodec{cfg: r.cfg, mode: format.CompressionZstd0}
	r.codecs[format.CompressionZstd1] = &zstdCodec{cfg: r.cfg, mode: format.CompressionZstd1}

	return r, nil
}

// Register adds or replaces the codec for codec.Mode().
func (r *Registry) Register(codec PixelCodec) error {
	if codec == nil {
		return fmt.Errorf("%w: nil codec", errs.ErrInvalidArgument)
	}

	r.mu.Lock()
	r.codecs[codec.Mode()] = codec
	r.mu.Unlock()

	return nil
}

// Get returns the codec registered for mode.
func (r *Registry) Get(mode format.CompressionMode) (PixelCodec, error) {
	r.mu.RLock()
	codec, ok := r.codecs[mode]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnsupportedCompression, mode)
	}

	return codec, nil
}

// Decode looks up the codec for mode and decodes data with it.
func (r *Registry) Decode(mode format.CompressionMode, data []byte, pixelType format.PixelType, width, height int) (*bitmap.Bitmap, error) {
	codec, err := r.Get(mode)
	if err != nil {
		return nil, err
	}

	return codec.Decode(data, pixelType, width, height)
}

// Compress looks up the codec for mode and compresses the pixels with it.
func (r *Registry) Compress(mode format.CompressionMode, pixelType format.PixelType, width, height, stride int, pixels []byte, params Parameters) ([]byte, error) {
	codec, err := r.Get(mode)
	if err != nil {
		return nil, err
	}

	return codec.Compress(pixelType, width, height, stride, pixels, params)
}

// packRows copies the pixel rows into a contiguous buffer without row padding.
func packRows(pixelType format.PixelType, width, height, stride int, pixels []byte) ([]byte, error) {
	bpp := pixelType.BytesPerPixel()
	if bpp == 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %s %dx%d", errs.ErrInvalidArgument, pixelType, width, height)
	}

	line := width * bpp
	if stride < line || len(pixels) < stride*(height-1)+line {
		return nil, fmt.Errorf("%w: stride %d with %d bytes for %dx%d %s",
			errs.ErrInvalidArgument, stride, len(pixels), width, height, pixelType)
	}

	if stride == line {
		return pixels[:line*height], nil
	}

	out := make([]byte, line*height)
	for y := range height {
		copy(out[y*line:], pixels[y*stride:y*stride+line])
	}

	return out, nil
}

// fitPayload returns a buffer of exactly want bytes built from data.
// A short payload is zero-padded and a long one truncated when mismatches are
// tolerated.
func fitPayload(cfg decodeConfig, data []byte, want int) ([]byte, error) {
	switch {
	case len(data) == want:
		return data, nil
	case !cfg.handleSizeMismatch:
		return nil, fmt.Errorf("%w: payload has %d bytes, expected %d", errs.ErrCodec, len(data), want)
	case len(data) > want:
		return data[:want], nil
	default:
		out := make([]byte, want)
		copy(out, data)

		return out, nil
	}
}
