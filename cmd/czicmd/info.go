package main

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/arloliu/czi/directory"
	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/errs"
	"github.com/arloliu/czi/geom"
	"github.com/arloliu/czi/stream"
	"github.com/spf13/pflag"
)

func runInfo(args []string, stdout, stderr io.Writer) error {
	var listSubBlocks, printXML bool

	flagSet := pflag.NewFlagSet("info", pflag.ContinueOnError)
	common := addCommonFlags(flagSet)
	flagSet.BoolVar(&listSubBlocks, "subblocks", false, "list every sub-block directory entry")
	flagSet.BoolVar(&printXML, "xml", false, "print the XML metadata")

	if ok, err := parseFlags(flagSet, args, "czicmd info <file> [flags]", stderr); !ok {
		return err
	}
	if flagSet.NArg() != 1 {
		return errors.New("info: expected exactly one file argument")
	}

	env, err := common.load(flagSet, nil)
	if err != nil {
		return err
	}
	defer env.close(stderr)

	in, err := stream.OpenFile(flagSet.Arg(0))
	if err != nil {
		return err
	}
	defer in.Close()

	frame, _ := env.cfg.Compose.FrameOfReference()
	doc, err := document.Open(in,
		document.WithLogger(env.logger),
		document.WithMetrics(env.metrics),
		document.WithDefaultFrameOfReference(frame),
	)
	if err != nil {
		return fmt.Errorf("opening %s: %w", flagSet.Arg(0), err)
	}
	defer doc.Close()

	return printInfo(stdout, doc, listSubBlocks, printXML)
}

func printInfo(w io.Writer, doc *document.Reader, listSubBlocks, printXML bool) error {
	h := doc.FileHeader()
	fmt.Fprintf(w, "File header\n")
	fmt.Fprintf(w, "  version:              %d.%d\n", h.Major, h.Minor)
	fmt.Fprintf(w, "  primary file GUID:    %s\n", h.PrimaryFileGUID)
	fmt.Fprintf(w, "  file GUID:            %s\n", h.FileGUID)
	fmt.Fprintf(w, "  file part:            %d\n", h.FilePart)
	fmt.Fprintf(w, "  sub-block directory:  %d\n", h.SubBlockDirectoryPosition)
	fmt.Fprintf(w, "  attachment directory: %d\n", h.AttachmentDirectoryPosition)
	fmt.Fprintf(w, "  metadata:             %d\n", h.MetadataPosition)

	stats := doc.Statistics()
	fmt.Fprintf(w, "\nStatistics\n")
	fmt.Fprintf(w, "  sub-blocks:           %d\n", stats.SubBlockCount)
	if stats.IsMIndexValid() {
		fmt.Fprintf(w, "  M-index:              %d..%d\n", stats.MinMIndex, stats.MaxMIndex)
	} else {
		fmt.Fprintf(w, "  M-index:              n/a\n")
	}
	fmt.Fprintf(w, "  bounding box:         %s\n", formatRect(stats.BoundingBox))
	fmt.Fprintf(w, "  bounding box layer 0: %s\n", formatRect(stats.BoundingBoxLayer0))
	fmt.Fprintf(w, "  dimensions:           %s\n", stats.DimBounds)

	scenes := sortedScenes(stats.SceneBoundingBoxes)
	for _, s := range scenes {
		boxes := stats.SceneBoundingBoxes[s]
		fmt.Fprintf(w, "  %-21s %s (layer 0: %s)\n", sceneLabel(s)+":", formatRect(boxes.BoundingBox), formatRect(boxes.BoundingBoxLayer0))
	}

	pyramid := doc.PyramidStatistics()
	fmt.Fprintf(w, "\nPyramid\n")
	for _, s := range sortedScenes(pyramid.ScenePyramidStatistics) {
		fmt.Fprintf(w, "  %s\n", sceneLabel(s))
		for _, l := range pyramid.ScenePyramidStatistics[s] {
			fmt.Fprintf(w, "    %-24s %d sub-blocks\n", layerLabel(l.Layer), l.Count)
		}
	}

	fmt.Fprintf(w, "\nAttachments (%d)\n", doc.AttachmentCount())
	err := doc.EnumerateAttachments(func(index int, e *directory.AttachmentEntry) bool {
		fmt.Fprintf(w, "  #%-4d %-8s %-24s %s\n", index, e.ContentFileType, e.Name, e.ContentGUID)
		return true
	})
	if err != nil {
		return err
	}

	if listSubBlocks {
		fmt.Fprintf(w, "\nSub-blocks\n")
		err := doc.EnumerateSubBlocks(func(index int, e *directory.SubBlockEntry) bool {
			m := "-"
			if e.MIndex != directory.InvalidMIndex {
				m = fmt.Sprint(e.MIndex)
			}
			fmt.Fprintf(w, "  #%-5d %-16s M=%-5s %-24s %dx%d %s %s\n", index, e.Coordinate, m,
				formatRect(e.LogicalRect), e.PhysicalSize.W, e.PhysicalSize.H, e.PixelType, e.Compression)
			return true
		})
		if err != nil {
			return err
		}
	}

	if printXML {
		md, err := doc.ReadMetadataSegment()
		switch {
		case errors.Is(err, errs.ErrSegmentNotPresent):
			fmt.Fprintf(w, "\nno metadata segment\n")
		case err != nil:
			return err
		default:
			fmt.Fprintf(w, "\n%s\n", md.XML)
		}
	}

	return nil
}

func sortedScenes[V any](m map[int]V) []int {
	scenes := make([]int, 0, len(m))
	for s := range m {
		scenes = append(scenes, s)
	}
	slices.Sort(scenes)

	return scenes
}

func sceneLabel(s int) string {
	if s == directory.NoSceneIndex {
		return "no scene"
	}

	return fmt.Sprintf("scene %d", s)
}

func layerLabel(l directory.PyramidLayerInfo) string {
	switch {
	case l.IsNotIdentified():
		return "not identified"
	case l.IsLayer0():
		return "layer 0"
	default:
		return fmt.Sprintf("layer %d (factor %d, 1:%d)", l.PyramidLayerNo, l.MinificationFactor, l.TotalMinification())
	}
}

func formatRect(r geom.IntRect) string {
	if !r.IsValid() {
		return "invalid"
	}

	return fmt.Sprintf("x=%d y=%d w=%d h=%d", r.X, r.Y, r.W, r.H)
}
