package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/arloliu/czi/accessor"
	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/cache"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/internal/config"
	"github.com/arloliu/czi/stream"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type composeFlags struct {
	in, out     string
	roi         string
	plane       string
	zoom        float64
	pixelType   string
	background  string
	maskAware   bool
	noCulling   bool
	concurrency int
	frame       string
	scenes      []int
	overwrite   bool
}

func runCompose(args []string, stdout, stderr io.Writer) error {
	var f composeFlags

	flagSet := pflag.NewFlagSet("compose", pflag.ContinueOnError)
	common := addCommonFlags(flagSet)
	flagSet.StringVar(&f.in, "in", "", "input document")
	flagSet.StringVar(&f.out, "out", "", "output file for the raw pixels")
	flagSet.BoolVar(&f.overwrite, "overwrite", false, "replace an existing output file")
	flagSet.StringVar(&f.roi, "roi", "", "region of interest as x,y,w,h (default: layer-0 bounding box)")
	flagSet.StringVar(&f.plane, "plane", "", "plane coordinate, e.g. C0 or C1T3")
	flagSet.Float64Var(&f.zoom, "zoom", 1, "zoom factor in (0, 1]")
	flagSet.StringVar(&f.pixelType, "pixel-type", "", "output pixel type (default: that of the plane)")
	flagSet.StringVar(&f.background, "background", "", "background color as r,g,b in [0, 1]")
	flagSet.BoolVar(&f.maskAware, "mask-aware", false, "honor valid-pixel masks")
	flagSet.BoolVar(&f.noCulling, "no-culling", false, "paint hidden sub-blocks too")
	flagSet.IntVar(&f.concurrency, "concurrency", 0, "sub-blocks decoded in parallel (0: GOMAXPROCS)")
	flagSet.StringVar(&f.frame, "frame", "", "frame of the region of interest: raw or pixel")
	flagSet.IntSliceVar(&f.scenes, "scene", nil, "scenes to paint (repeatable)")

	if ok, err := parseFlags(flagSet, args, "czicmd compose --in <file> --out <raw> [flags]", stderr); !ok {
		return err
	}
	if f.in == "" || f.out == "" {
		return errors.New("compose: --in and --out are required")
	}

	env, err := common.load(flagSet, f.override(flagSet))
	if err != nil {
		return err
	}
	defer env.close(stderr)

	in, err := stream.OpenFile(f.in)
	if err != nil {
		return err
	}
	defer in.Close()

	doc, err := document.Open(in, document.WithLogger(env.logger), document.WithMetrics(env.metrics))
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.in, err)
	}
	defer doc.Close()

	bm, err := composeROI(doc, &f, env)
	if err != nil {
		return err
	}

	if err := writeRaw(f.out, bm, f.overwrite); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %dx%d %s to %s\n", bm.Width(), bm.Height(), bm.PixelType(), f.out)

	return nil
}

// override applies the flags that shadow config values.
func (f *composeFlags) override(flagSet *pflag.FlagSet) func(cfg *config.Config) error {
	return func(cfg *config.Config) error {
		if flagSet.Changed("background") {
			color, err := parseColor(f.background)
			if err != nil {
				return fmt.Errorf("--background: %w", err)
			}
			cfg.Compose.Background = color
		}
		if flagSet.Changed("mask-aware") {
			cfg.Compose.MaskAware = f.maskAware
		}
		if flagSet.Changed("no-culling") {
			cfg.Compose.VisibilityOptimization = !f.noCulling
		}
		if flagSet.Changed("concurrency") {
			cfg.Compose.Concurrency = f.concurrency
		}
		if flagSet.Changed("frame") {
			cfg.Compose.Frame = f.frame
		}

		return nil
	}
}

func composeROI(doc *document.Reader, f *composeFlags, env *environment) (*bitmap.Bitmap, error) {
	plane, err := dims.Parse(f.plane)
	if err != nil {
		return nil, fmt.Errorf("--plane: %w", err)
	}

	cc := env.cfg.Compose
	frame, err := cc.FrameOfReference()
	if err != nil {
		return nil, err
	}

	roi := doc.Statistics().BoundingBoxLayer0
	switch {
	case f.roi != "":
		if roi, err = parseROI(f.roi); err != nil {
			return nil, err
		}
	case !roi.IsValid():
		return nil, errors.New("compose: document has no layer-0 sub-blocks, pass --roi")
	default:
		// the bounding box is in raw coordinates
		frame = format.FrameOfReferenceRawSubBlockCoordinate
	}

	accOpts := []accessor.Option{
		accessor.WithLogger(env.logger),
		accessor.WithMetrics(env.metrics),
		accessor.WithDefaultFrameOfReference(frame),
	}
	if cc.Concurrency > 0 {
		accOpts = append(accOpts, accessor.WithConcurrency(cc.Concurrency))
	}
	acc, err := accessor.NewScalingAccessor(doc, accOpts...)
	if err != nil {
		return nil, err
	}

	opts := accessor.Options{
		BackgroundColor:        cc.BackgroundColor(),
		SortByM:                cc.SortByM,
		VisibilityOptimization: cc.VisibilityOptimization,
		MaskAware:              cc.MaskAware,
		SceneFilter:            f.scenes,
	}

	if env.cfg.Cache.Enabled {
		c, err := newCache(env.cfg.Cache, env)
		if err != nil {
			return nil, err
		}
		opts.Cache = c
		defer pruneCache(c, env)
	}

	env.logger.Info("composing",
		zap.Stringer("plane", plane),
		zap.Int("x", roi.X), zap.Int("y", roi.Y), zap.Int("w", roi.W), zap.Int("h", roi.H),
		zap.Float64("zoom", f.zoom))

	if f.pixelType == "" {
		return acc.Get(roi, plane, f.zoom, opts)
	}
	pt, err := parsePixelType(f.pixelType)
	if err != nil {
		return nil, err
	}

	return acc.GetWithPixelType(pt, roi, plane, f.zoom, opts)
}

func newCache(cfg config.CacheConfig, env *environment) (*cache.Cache, error) {
	ct, err := cfg.CompressionType()
	if err != nil {
		return nil, err
	}

	return cache.New(cache.WithCompression(ct), cache.WithMetrics(env.metrics))
}

func pruneCache(c *cache.Cache, env *environment) {
	c.Prune(cache.PruneOptions{
		MaxMemoryUsage:   int64(env.cfg.Cache.MaxMemory),
		MaxSubBlockCount: env.cfg.Cache.MaxSubBlocks,
	})
	stats := c.Statistics()
	env.logger.Debug("cache pruned", zap.Int64("memory", stats.MemoryUsage), zap.Int("elements", stats.ElementsCount))
}

// writeRaw stores the rows of bm without padding.
func writeRaw(path string, bm *bitmap.Bitmap, overwrite bool) error {
	out, err := stream.CreateFile(path, overwrite)
	if err != nil {
		return err
	}
	defer out.Close()

	lck := bm.Lock()
	defer lck.Unlock() //nolint:errcheck

	line := int64(bm.Width() * bm.PixelType().BytesPerPixel())
	for y := range bm.Height() {
		if err := stream.WriteFull(out, int64(y)*line, lck.Row(y)); err != nil {
			return err
		}
	}

	return out.Sync()
}
