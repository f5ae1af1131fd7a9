package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/arloliu/czi/bitmap"
	"github.com/arloliu/czi/compress"
	"github.com/arloliu/czi/dims"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/format"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/internal/config"
	"github.com/arloliu/czi/stream"
)

type addFlags struct {
	in        string
	data      string
	coord     string
	mIndex    int
	rect      string
	physical  string
	pixelType string
	mode      string
}

func runAddSubBlock(args []string, stdout, stderr io.Writer) error {
	var f addFlags

	flagSet := pflag.NewFlagSet("add-subblock", pflag.ContinueOnError)
	common := addCommonFlags(flagSet)
	flagSet.StringVar(&f.in, "in", "", "document to edit in place")
	flagSet.StringVar(&f.data, "data", "", "raw pixel rows without padding")
	flagSet.StringVar(&f.coord, "coord", "", "plane coordinate, e.g. C0T3")
	flagSet.IntVar(&f.mIndex, "m", -1, "M-index, negative for none")
	flagSet.StringVar(&f.rect, "rect", "", "logical rectangle x,y,w,h in the raw frame")
	flagSet.StringVar(&f.physical, "physical", "", "stored size w,h (default: size of --rect)")
	flagSet.StringVar(&f.pixelType, "pixel-type", "gray8", "pixel type of --data: gray8, gray16, bgr24")
	flagSet.StringVar(&f.mode, "compression", "", "compression mode (default: writer.compression)")

	usage := "czicmd add-subblock --in <file> --data <raw> --coord <C0> --rect x,y,w,h [flags]"
	if ok, err := parseFlags(flagSet, args, usage, stderr); !ok {
		return err
	}
	if f.in == "" || f.data == "" || f.rect == "" {
		return errors.New("add-subblock: --in, --data and --rect are required")
	}

	info, err := f.subBlockInfo()
	if err != nil {
		return fmt.Errorf("add-subblock: %w", err)
	}
	pt, err := parsePixelType(f.pixelType)
	if err != nil {
		return fmt.Errorf("add-subblock: %w", err)
	}

	if _, err := os.Stat(f.in); err != nil {
		return err
	}
	raw, err := os.ReadFile(f.data)
	if err != nil {
		return err
	}
	bm, err := bitmap.FromData(pt, info.PhysicalSize.W, info.PhysicalSize.H, info.PhysicalSize.W*pt.BytesPerPixel(), raw)
	if err != nil {
		return fmt.Errorf("add-subblock: %s: %w", f.data, err)
	}

	env, err := common.load(flagSet, func(cfg *config.Config) error {
		if f.mode != "" {
			cfg.Writer.Compression = f.mode
		}

		return nil
	})
	if err != nil {
		return err
	}
	defer env.close(stderr)

	info.Compression, err = env.cfg.Writer.CompressionMode()
	if err != nil {
		return err
	}
	params := compress.Parameters{ZstdLevel: env.cfg.Writer.ZstdLevel, HiLoPacking: env.cfg.Writer.HiLoPacking}

	file, err := stream.OpenFileReadWrite(f.in)
	if err != nil {
		return err
	}
	defer file.Close()

	doc, err := document.OpenReaderWriter(file,
		document.WithLogger(env.logger),
		document.WithMetrics(env.metrics),
		document.WithAllowDuplicateSubBlocks(env.cfg.Writer.AllowDuplicateSubBlocks),
	)
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.in, err)
	}

	idx, err := doc.AddSubBlockBitmap(info, bm, params)
	if err != nil {
		_ = doc.Close()
		return fmt.Errorf("adding sub-block: %w", err)
	}
	if err := doc.Close(); err != nil {
		return err
	}

	env.logger.Info("sub-block added", zap.String("file", f.in), zap.Int("index", idx), zap.Stringer("coordinate", info.Coordinate))
	fmt.Fprintf(stdout, "added sub-block %d at %s, %d total\n", idx, formatRect(info.LogicalRect), doc.SubBlockCount())

	return nil
}

// subBlockInfo turns the geometry flags into the sub-block description. The
// physical size defaults to the logical size.
func (f *addFlags) subBlockInfo() (document.AddSubBlockInfo, error) {
	var info document.AddSubBlockInfo

	coord, err := dims.Parse(f.coord)
	if err != nil {
		return info, err
	}
	lr, err := parseROI(f.rect)
	if err != nil {
		return info, err
	}

	ps := geom.IntSize{W: lr.W, H: lr.H}
	if f.physical != "" {
		v, err := parseInts(f.physical, 2)
		if err != nil {
			return info, err
		}
		if v[0] <= 0 || v[1] <= 0 {
			return info, fmt.Errorf("physical size must be positive, got %dx%d", v[0], v[1])
		}
		ps = geom.IntSize{W: v[0], H: v[1]}
	}

	info = document.AddSubBlockInfo{
		Coordinate:   coord,
		LogicalRect:  lr,
		PhysicalSize: ps,
		PyramidType:  format.PyramidTypeNone,
	}
	if f.mIndex >= 0 {
		info.MIndex, info.MIndexValid = f.mIndex, true
	}

	return info, nil
}
