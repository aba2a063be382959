package cmd

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"vllm-relay/internal/summary"
)

const resultsUsage = `Usage:
  vllm-relay results --dir <path>

Flags:
  --dir string   Results root directory (one subdirectory per sequence length)`

func results(args []string) error {
	fs := flag.NewFlagSet("results", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, resultsUsage)
	}

	var dir string
	fs.StringVar(&dir, "dir", "", "results root directory")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse results flags: %w", err)
	}

	if dir == "" {
		return errors.New("results command requires --dir <path>")
	}

	summaries, err := summary.Collect(dir)
	summary.Render(os.Stdout, summaries)
	return err
}
