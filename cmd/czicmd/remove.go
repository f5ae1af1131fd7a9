package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/arloliu/czi/document"
	"github.com/arloliu/czi/stream"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func runRemoveSubBlock(args []string, stdout, stderr io.Writer) error {
	var (
		in    string
		index int
	)

	flagSet := pflag.NewFlagSet("remove-subblock", pflag.ContinueOnError)
	common := addCommonFlags(flagSet)
	flagSet.StringVar(&in, "in", "", "document to edit in place")
	flagSet.IntVar(&index, "index", -1, "index of the sub-block to remove")

	if ok, err := parseFlags(flagSet, args, "czicmd remove-subblock --in <file> --index <n>", stderr); !ok {
		return err
	}
	if in == "" {
		return errors.New("remove-subblock: --in is required")
	}
	if index < 0 {
		return errors.New("remove-subblock: --index is required")
	}

	// OpenFileReadWrite would create a missing file
	if _, err := os.Stat(in); err != nil {
		return err
	}

	env, err := common.load(flagSet, nil)
	if err != nil {
		return err
	}
	defer env.close(stderr)

	f, err := stream.OpenFileReadWrite(in)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := document.OpenReaderWriter(f, document.WithLogger(env.logger), document.WithMetrics(env.metrics))
	if err != nil {
		return fmt.Errorf("opening %s: %w", in, err)
	}

	if err := doc.RemoveSubBlock(index); err != nil {
		_ = doc.Close()
		return fmt.Errorf("removing sub-block %d: %w", index, err)
	}
	if err := doc.Close(); err != nil {
		return err
	}

	env.logger.Info("sub-block removed", zap.String("file", in), zap.Int("index", index))
	fmt.Fprintf(stdout, "removed sub-block %d, %d left\n", index, doc.SubBlockCount())

	return nil
}
