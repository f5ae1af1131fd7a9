// czicmd inspects, creates and edits CZI documents from the command line.
//
// Subcommands:
//
//	info             print the file header, statistics and attachments
//	create           write a synthetic tiled document
//	compose          render a region of interest into a raw pixel file
//	add-subblock     append a sub-block read from a raw pixel file
//	remove-subblock  delete a sub-block in place
//
// Every subcommand accepts --config pointing to a YAML file with defaults for
// the writer, the compositor, the sub-block cache and logging. Flags given on
// the command line win over the file.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"info", "print header, statistics, pyramid layers and attachments", runInfo},
	{"create", "write a synthetic tiled document", runCreate},
	{"compose", "compose a region of interest into a raw file", runCompose},
	{"add-subblock", "add a sub-block from raw pixel rows to an existing document", runAddSubBlock},
	{"remove-subblock", "remove a sub-block from an existing document", runRemoveSubBlock},
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errors.New("missing subcommand")
	}

	switch args[0] {
	case "-h", "--help", "help":
		printUsage(stdout)
		return nil
	}

	for _, c := range commands {
		if c.name == args[0] {
			return c.run(args[1:], stdout, stderr)
		}
	}

	printUsage(stderr)

	return fmt.Errorf("unknown subcommand %q", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage:\n  czicmd <subcommand> [flags]\n\nSubcommands:\n")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-16s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(w, "\nRun 'czicmd <subcommand> --help' for the flags of a subcommand.\n")
}

// parseFlags parses args and prints the help text on --help. The returned
// bool is false when the caller should stop without error.
func parseFlags(flagSet *pflag.FlagSet, args []string, usage string, stderr io.Writer) (bool, error) {
	printHelp := func() {
		fmt.Fprintf(stderr, "Usage:\n  %s\n\nFlags:\n", usage)
		flagSet.SetOutput(stderr)
		flagSet.PrintDefaults()
	}

	flagSet.SetOutput(io.Discard)
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp()
			return false, nil
		}

		return false, err
	}

	if help, _ := flagSet.GetBool("help"); help {
		printHelp()
		return false, nil
	}

	return true, nil
}
