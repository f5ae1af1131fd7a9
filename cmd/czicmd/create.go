package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/endian"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/internal/config"
	"github.com/arloliu/czi/metadata"
	"github.com/arloliu/czi/stream"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// sceneGap separates the scenes of a synthetic document horizontally.
const sceneGap = 16

// synthetic describes the document written by create.
type synthetic struct {
	width, height int
	tiles         int
	channels      int
	scenes        int
	pixelType     format.PixelType
	pyramid       bool
}

func runCreate(args []string, stdout, stderr io.Writer) error {
	var (
		out         string
		overwrite   bool
		pixelType   string
		compression string
		synth       synthetic
	)

	flagSet := pflag.NewFlagSet("create", pflag.ContinueOnError)
	common := addCommonFlags(flagSet)
	flagSet.StringVar(&out, "out", "", "output file")
	flagSet.BoolVar(&overwrite, "overwrite", false, "replace an existing output file")
	flagSet.IntVar(&synth.width, "width", 1024, "width of a scene in pixels")
	flagSet.IntVar(&synth.height, "height", 1024, "height of a scene in pixels")
	flagSet.IntVar(&synth.tiles, "tiles", 4, "tiles per row and per column")
	flagSet.IntVar(&synth.channels, "channels", 1, "number of channels (C)")
	flagSet.IntVar(&synth.scenes, "scenes", 0, "number of scenes (S), 0 for none")
	flagSet.StringVar(&pixelType, "pixel-type", "gray8", "gray8, gray16 or bgr24")
	flagSet.BoolVar(&synth.pyramid, "pyramid", false, "add a 1:2 pyramid layer")
	flagSet.StringVar(&compression, "compression", "", "uncompressed, zstd0 or zstd1 (overrides config)")

	if ok, err := parseFlags(flagSet, args, "czicmd create --out <file> [flags]", stderr); !ok {
		return err
	}
	if out == "" {
		return errors.New("create: --out is required")
	}

	pt, err := parsePixelType(pixelType)
	if err != nil {
		return err
	}
	synth.pixelType = pt
	if err := synth.validate(); err != nil {
		return err
	}

	env, err := common.load(flagSet, func(cfg *config.Config) error {
		if flagSet.Changed("compression") {
			cfg.Writer.Compression = compression
		}

		return nil
	})
	if err != nil {
		return err
	}
	defer env.close(stderr)

	f, err := stream.CreateFile(out, overwrite)
	if err != nil {
		return err
	}
	defer f.Close()

	count, err := writeSynthetic(f, synth, env)
	if err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}

	fmt.Fprintf(stdout, "wrote %d sub-blocks to %s\n", count, out)

	return nil
}

func parsePixelType(s string) (format.PixelType, error) {
	switch strings.ToLower(s) {
	case "gray8":
		return format.PixelTypeGray8, nil
	case "gray16":
		return format.PixelTypeGray16, nil
	case "bgr24":
		return format.PixelTypeBgr24, nil
	default:
		return format.PixelTypeInvalid, fmt.Errorf("unsupported pixel type %q", s)
	}
}

func (s *synthetic) validate() error {
	switch {
	case s.width <= 0 || s.height <= 0:
		return fmt.Errorf("width and height must be positive, got %dx%d", s.width, s.height)
	case s.tiles <= 0 || s.tiles > s.width || s.tiles > s.height:
		return fmt.Errorf("tiles must be in [1, min(width, height)], got %d", s.tiles)
	case s.channels <= 0:
		return fmt.Errorf("channels must be positive, got %d", s.channels)
	case s.scenes < 0:
		return fmt.Errorf("scenes must not be negative, got %d", s.scenes)
	}

	return nil
}

func (s *synthetic) bounds() dims.Bounds {
	var b dims.Bounds
	b.Set(format.DimensionC, 0, s.channels)
	if s.scenes > 0 {
		b.Set(format.DimensionS, 0, s.scenes)
	}

	return b
}

func writerOptions(cfg config.WriterConfig, env *environment, bounds dims.Bounds) []document.WriterOption {
	opts := []document.WriterOption{
		document.WithLogger(env.logger),
		document.WithMetrics(env.metrics),
		document.WithBounds(bounds),
		document.WithAllowDuplicateSubBlocks(cfg.AllowDuplicateSubBlocks),
	}
	if cfg.ReserveSubBlockDirectory >= 0 {
		opts = append(opts, document.WithReserveSubBlockDirectory(cfg.ReserveSubBlockDirectory))
	}
	if cfg.ReserveAttachmentDirectory >= 0 {
		opts = append(opts, document.WithReserveAttachmentDirectory(cfg.ReserveAttachmentDirectory))
	}
	if cfg.ReserveMetadata >= 0 {
		opts = append(opts, document.WithReserveMetadata(int(cfg.ReserveMetadata)))
	}

	return opts
}

// writeSynthetic writes a tiled gradient document and returns the number of
// sub-blocks written.
func writeSynthetic(out stream.OutputStream, synth synthetic, env *environment) (int, error) {
	mode, err := env.cfg.Writer.CompressionMode()
	if err != nil {
		return 0, err
	}
	params := compress.Parameters{ZstdLevel: env.cfg.Writer.ZstdLevel, HiLoPacking: env.cfg.Writer.HiLoPacking}

	w, err := document.NewWriter(out, writerOptions(env.cfg.Writer, env, synth.bounds())...)
	if err != nil {
		return 0, err
	}

	count := 0
	scenes := max(synth.scenes, 1)
	tileW := (synth.width + synth.tiles - 1) / synth.tiles
	tileH := (synth.height + synth.tiles - 1) / synth.tiles

	for s := range scenes {
		originX := s * (synth.width + sceneGap)
		for c := range synth.channels {
			var coord dims.Coordinate
			coord.Set(format.DimensionC, c)
			if synth.scenes > 0 {
				coord.Set(format.DimensionS, s)
			}

			m := 0
			for ty := range synth.tiles {
				for tx := range synth.tiles {
					lr := geom.IntRect{X: tx * tileW, Y: ty * tileH, W: tileW, H: tileH}
					lr = lr.Intersect(geom.IntRect{W: synth.width, H: synth.height})
					if !lr.IsNonEmpty() {
						continue
					}

					bm := gradient(synth.pixelType, lr, c, 1)
					lr.X += originX
					_, err := w.AddSubBlockBitmap(document.AddSubBlockInfo{
						Coordinate:  coord,
						MIndex:      m,
						MIndexValid: true,
						LogicalRect: lr,
						Compression: mode,
					}, bm, params)
					if err != nil {
						return count, err
					}
					m++
					count++
				}
			}

			if synth.pyramid {
				lr := geom.IntRect{W: synth.width, H: synth.height}
				bm := gradient(synth.pixelType, lr, c, 2)
				lr.X += originX
				_, err := w.AddSubBlockBitmap(document.AddSubBlockInfo{
					Coordinate:  coord,
					LogicalRect: lr,
					Compression: mode,
					PyramidType: format.PyramidTypeSingleSubBlock,
				}, bm, params)
				if err != nil {
					return count, err
				}
				count++
			}
		}
	}
	env.logger.Debug("sub-blocks added", zap.Int("count", count), zap.Stringer("compression", mode))

	xml, err := syntheticXML(synth)
	if err != nil {
		return count, err
	}
	if err := w.WriteMetadata(document.WriteMetadataInfo{XML: xml}); err != nil {
		return count, err
	}

	return count, w.Close()
}

// gradient renders the part lr of the synthetic image of channel c, stored
// at 1:minification.
func gradient(pt format.PixelType, lr geom.IntRect, c, minification int) *bitmap.Bitmap {
	w, h := max(lr.W/minification, 1), max(lr.H/minification, 1)
	bm := bitmap.MustNew(pt, w, h)

	lck := bm.Lock()
	defer lck.Unlock() //nolint:errcheck

	le := endian.GetLittleEndianEngine()
	for y := range h {
		row := lck.Row(y)
		for x := range w {
			v := gradientValue(lr.X+x*minification, lr.Y+y*minification, c)
			switch pt {
			case format.PixelTypeGray8:
				row[x] = v
			case format.PixelTypeGray16:
				le.PutUint16(row[2*x:], uint16(v)*257)
			case format.PixelTypeBgr24:
				row[3*x], row[3*x+1], row[3*x+2] = v, v/2, 255-v
			}
		}
	}

	return bm
}

func gradientValue(x, y, c int) byte {
	return byte((x/4 + y/4 + 64*c) & 0xff)
}

func syntheticXML(synth synthetic) (string, error) {
	b := metadata.NewBuilder()
	image, err := b.Root().GetOrCreateChildNode("Metadata/Information/Image")
	if err != nil {
		return "", err
	}

	image.AppendChildNode("SizeX").SetValueInt(int64(synth.width))
	image.AppendChildNode("SizeY").SetValueInt(int64(synth.height))
	image.AppendChildNode("SizeC").SetValueInt(int64(synth.channels))
	image.AppendChildNode("SizeM").SetValueInt(int64(synth.tiles * synth.tiles))
	if synth.scenes > 0 {
		image.AppendChildNode("SizeS").SetValueInt(int64(synth.scenes))
	}
	image.AppendChildNode("PixelType").SetValue(synth.pixelType.String())

	for c := range synth.channels {
		ch, err := image.GetOrCreateChildNode(fmt.Sprintf("Dimensions/Channels/Channel[Id=Channel:%d]", c))
		if err != nil {
			return "", err
		}
		ch.SetAttribute("Name", fmt.Sprintf("Ch%d", c))
	}

	return b.XML(false), nil
}
