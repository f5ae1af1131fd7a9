// Package config loads the YAML configuration of the czicmd tool. Command line
// flags override the loaded values.
package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/format"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Writer  WriterConfig  `yaml:"writer"`
	Compose ComposeConfig `yaml:"compose"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
}

// WriterConfig holds the settings used when creating documents. A
// reservation of -1 reserves nothing, 0 reserves the default size.
type WriterConfig struct {
	ReserveSubBlockDirectory   int      `yaml:"reserve_subblock_directory"`
	ReserveAttachmentDirectory int      `yaml:"reserve_attachment_directory"`
	ReserveMetadata            ByteSize `yaml:"reserve_metadata"`
	Compression                string   `yaml:"compression"`
	ZstdLevel                  int      `yaml:"zstd_level"`
	HiLoPacking                bool     `yaml:"hilo_packing"`
	AllowDuplicateSubBlocks    bool     `yaml:"allow_duplicate_subblocks"`
}

type ComposeConfig struct {
	// Background is the RGB background in [0, 1]. Empty leaves the
	// destination uncleared.
	Background             []float32 `yaml:"background"`
	SortByM                bool      `yaml:"sort_by_m"`
	VisibilityOptimization bool      `yaml:"visibility_optimization"`
	MaskAware              bool      `yaml:"mask_aware"`
	Concurrency            int       `yaml:"concurrency"`
	Frame                  string    `yaml:"frame"`
}

type CacheConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Compression  string   `yaml:"compression"`
	MaxMemory    ByteSize `yaml:"max_memory"`
	MaxSubBlocks int      `yaml:"max_subblocks"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads the YAML file at path on top of DefaultConfig and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Writer.ReserveSubBlockDirectory < -1 {
		return fmt.Errorf("writer.reserve_subblock_directory must be >= -1, got %d", c.Writer.ReserveSubBlockDirectory)
	}
	if c.Writer.ReserveAttachmentDirectory < -1 {
		return fmt.Errorf("writer.reserve_attachment_directory must be >= -1, got %d", c.Writer.ReserveAttachmentDirectory)
	}
	if c.Writer.ReserveMetadata < -1 {
		return fmt.Errorf("writer.reserve_metadata must be >= -1, got %d", c.Writer.ReserveMetadata)
	}
	if _, err := c.Writer.CompressionMode(); err != nil {
		return err
	}

	if n := len(c.Compose.Background); n != 0 && n != 3 {
		return fmt.Errorf("compose.background needs 3 values, got %d", n)
	}
	if c.Compose.Concurrency < 0 {
		return fmt.Errorf("compose.concurrency must be >= 0, got %d", c.Compose.Concurrency)
	}
	if _, err := c.Compose.FrameOfReference(); err != nil {
		return err
	}

	if _, err := c.Cache.CompressionType(); err != nil {
		return err
	}

	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}

	return nil
}

// CompressionMode maps writer.compression to a sub-block compression mode.
func (w WriterConfig) CompressionMode() (format.CompressionMode, error) {
	switch strings.ToLower(w.Compression) {
	case "", "uncompressed", "none":
		return format.CompressionUnCompressed, nil
	case "zstd0":
		return format.CompressionZstd0, nil
	case "zstd1":
		return format.CompressionZstd1, nil
	default:
		return format.CompressionInvalid, fmt.Errorf("writer.compression: unknown mode %q", w.Compression)
	}
}

// BackgroundColor returns the configured background, or a NaN color if none
// is set.
func (c ComposeConfig) BackgroundColor() bitmap.RGBFloat {
	if len(c.Background) != 3 {
		return bitmap.NaNColor()
	}

	return bitmap.RGBFloat{R: c.Background[0], G: c.Background[1], B: c.Background[2]}
}

// FrameOfReference maps compose.frame to a frame of reference.
func (c ComposeConfig) FrameOfReference() (format.FrameOfReference, error) {
	switch strings.ToLower(c.Frame) {
	case "", "raw":
		return format.FrameOfReferenceRawSubBlockCoordinate, nil
	case "pixel":
		return format.FrameOfReferencePixelCoordinate, nil
	default:
		return format.FrameOfReferenceInvalid, fmt.Errorf("compose.frame must be raw or pixel, got %q", c.Frame)
	}
}

// CompressionType maps cache.compression to a payload codec.
func (c CacheConfig) CompressionType() (format.CompressionType, error) {
	switch strings.ToLower(c.Compression) {
	case "", "none":
		return format.CompressionNone, nil
	case "zstd":
		return format.CompressionZstd, nil
	case "s2":
		return format.CompressionS2, nil
	case "lz4":
		return format.CompressionLZ4, nil
	default:
		return format.CompressionNone, fmt.Errorf("cache.compression: unknown codec %q", c.Compression)
	}
}

// NewLogger builds a zap logger writing to stderr.
func (l LoggingConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}

	var zc zap.Config
	if l.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}

// ByteSize wraps int64 for YAML values like "10KB" or "256MB".
type ByteSize int64

func (b *ByteSize) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*b = ByteSize(n)
		return nil
	}

	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseByteSize(s)
	if err != nil {
		return err
	}
	*b = ByteSize(parsed)

	return nil
}

func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	var multiplier int64 = 1
	num := s
	switch {
	case strings.HasSuffix(s, "KB"):
		multiplier, num = 1<<10, s[:len(s)-2]
	case strings.HasSuffix(s, "MB"):
		multiplier, num = 1<<20, s[:len(s)-2]
	case strings.HasSuffix(s, "GB"):
		multiplier, num = 1<<30, s[:len(s)-2]
	case strings.HasSuffix(s, "B"):
		num = s[:len(s)-1]
	}

	var n int64
	if _, err := fmt.Sscanf(num, "%d", &n); err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	if n > math.MaxInt64/multiplier {
		return 0, fmt.Errorf("byte size %q overflows", s)
	}

	return n * multiplier, nil
}
