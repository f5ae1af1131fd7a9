package accessor

import (
	"fmt"
	"runtime"
	"slices"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/cache"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/internal/metrics"
	"github.com/arloliu/czi/internal/options"
	"go.uber.org/zap"
)

// Options control one composition call.
type Options struct {
	// BackgroundColor fills the destination before painting. A NaN color
	// leaves the destination untouched.
	BackgroundColor bitmap.RGBFloat
	// SortByM paints by ascending M-index. Sub-blocks without M-index come
	// first; ties keep directory order.
	SortByM bool
	// VisibilityOptimization skips sub-blocks that later sub-blocks cover
	// within the region of interest. It has no effect with MaskAware.
	VisibilityOptimization bool
	// MaskAware paints only the valid pixels of sub-blocks that carry a
	// valid-pixel mask.
	MaskAware bool
	// Cache, if set, is consulted before reading a sub-block and filled after
	// decoding one.
	Cache *cache.Cache
	// OnlyCacheCompressed adds only sub-blocks with compressed payload to Cache.
	OnlyCacheCompressed bool
	// SceneFilter restricts painting to the listed scenes. Sub-blocks without
	// S index always pass. Empty means all scenes.
	SceneFilter []int
	// Frame is the frame of reference of the region of interest.
	// FrameOfReferenceInvalid selects the accessor's default frame.
	Frame format.FrameOfReference
}

// DefaultOptions returns options with a NaN background, M-index sorting and
// visibility optimization enabled.
func DefaultOptions() Options {
	return Options{
		BackgroundColor:        bitmap.NaNColor(),
		SortByM:                true,
		VisibilityOptimization: true,
	}
}

func (o *Options) sceneAllowed(scene int, hasScene bool) bool {
	if !hasScene || len(o.SceneFilter) == 0 {
		return true
	}

	return slices.Contains(o.SceneFilter, scene)
}

type config struct {
	logger       *zap.Logger
	metrics      *metrics.Metrics
	registry     *compress.Registry
	concurrency  int
	defaultFrame format.FrameOfReference
}

// Option configures an accessor.
type Option = options.Option[*config]

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return options.NoError(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithMetrics sets the collectors for culled sub-blocks and compose durations.
func WithMetrics(m *metrics.Metrics) Option {
	return options.NoError(func(c *config) {
		if m != nil {
			c.metrics = m
		}
	})
}

// WithCodecRegistry sets the pixel codecs used to decode sub-blocks.
func WithCodecRegistry(reg *compress.Registry) Option {
	return options.NoError(func(c *config) {
		c.registry = reg
	})
}

// WithConcurrency limits the number of sub-blocks read and decoded at the
// same time. The default is GOMAXPROCS.
func WithConcurrency(n int) Option {
	return options.New(func(c *config) error {
		if n < 1 {
			return fmt.Errorf("%w: concurrency %d", errs.ErrInvalidArgument, n)
		}
		c.concurrency = n

		return nil
	})
}

// WithDefaultFrameOfReference sets the frame used for regions of interest
// whose Options.Frame is unset or Default. Without it regions are taken in
// the raw sub-block coordinate system.
func WithDefaultFrameOfReference(frame format.FrameOfReference) Option {
	return options.New(func(c *config) error {
		switch frame {
		case format.FrameOfReferenceRawSubBlockCoordinate, format.FrameOfReferencePixelCoordinate:
			c.defaultFrame = frame
			return nil
		default:
			return fmt.Errorf("%w: %d", errs.ErrInvalidFrameOfReference, frame)
		}
	})
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		logger:       zap.NewNop(),
		metrics:      metrics.Discard(),
		concurrency:  runtime.GOMAXPROCS(0),
		defaultFrame: format.FrameOfReferenceRawSubBlockCoordinate,
	}
	if err := options.Apply(cfg, opts...); err != nil {
		return nil, err
	}

	if cfg.registry == nil {
		reg, err := compress.NewRegistry()
		if err != nil {
			return nil, err
		}
		cfg.registry = reg
	}

	return cfg, nil
}
