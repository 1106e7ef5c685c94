// Package main provides nfs-scan, which scores PE files from the command
// line with a trained model.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oklog/ulid/v2"

	"github.com/isseis/go-pe-scorer/internal/cmdcommon"
	"github.com/isseis/go-pe-scorer/internal/color"
	"github.com/isseis/go-pe-scorer/internal/pefeatures"
	"github.com/isseis/go-pe-scorer/internal/safefileio"
	"github.com/isseis/go-pe-scorer/internal/scorer"
	"github.com/isseis/go-pe-scorer/internal/terminal"
)

// disasmLimit is the number of entry point instructions printed by -disasm.
const disasmLimit = 16

var (
	errNoFilesProvided  = errors.New("at least one file path must be provided")
	errConflictingColor = errors.New("-color and -no-color are mutually exclusive")

	// newScanID is replaced in tests.
	newScanID = func() string { return ulid.Make().String() }
)

type scanConfig struct {
	configPath string
	modelPath  string
	disasm     bool
	color      bool
	noColor    bool
	files      []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	sc, fs, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printUsage(fs, stderr)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	termOpts := terminal.Options{ForceColor: sc.color, DisableColor: sc.noColor}
	env, err := cmdcommon.Bootstrap(cmdcommon.Options{
		Component:  "nfs-scan",
		ConfigPath: sc.configPath,
		ModelPath:  sc.modelPath,
		Stderr:     stderr,
		Terminal:   termOpts,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer env.Close()

	m, err := cmdcommon.LoadModel(env.Config.Model.Path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	s, err := scorer.New(scorer.Options{Threshold: env.Config.Scoring.Threshold, Logger: env.Logger})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	s.Swap(m)

	palette := color.NewPalette(terminal.Detect(stdout, termOpts).Color)
	return scanFiles(context.Background(), s, sc, palette, stdout, stderr)
}

func parseArgs(args []string, stderr io.Writer) (*scanConfig, *flag.FlagSet, error) {
	sc := &scanConfig{}
	fs := flag.NewFlagSet("nfs-scan", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }
	fs.StringVar(&sc.configPath, "config", "", "Path to the TOML configuration file")
	fs.StringVar(&sc.modelPath, "model", "", "Model artifact (default: model.path from the configuration)")
	fs.BoolVar(&sc.disasm, "disasm", false, "Print the first instructions at the entry point")
	fs.BoolVar(&sc.color, "color", false, "Always color the output")
	fs.BoolVar(&sc.noColor, "no-color", false, "Never color the output")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if sc.color && sc.noColor {
		return nil, fs, errConflictingColor
	}
	sc.files = fs.Args()
	if len(sc.files) == 0 {
		return nil, fs, errNoFilesProvided
	}
	return sc, fs, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	if fs == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Usage: %s [flags] <file> [<file>...]\n", filepath.Base(os.Args[0]))
	fs.PrintDefaults()
}

// scanFiles prints one line per file:
//
//	<scan id>  <verdict>  <score>  <path>
//
// It returns 1 if any file could not be read or scored.
func scanFiles(ctx context.Context, s *scorer.Scorer, sc *scanConfig, p color.Palette, stdout, stderr io.Writer) int {
	var malicious, benign, failed int
	for _, path := range sc.files {
		sample, err := safefileio.ReadFile(path, 0)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(stderr, "Error reading %s: %v\n", path, err)
			continue
		}
		v, err := s.Predict(ctx, sample)
		if err != nil {
			failed++
			_, _ = fmt.Fprintf(stderr, "Error scoring %s: %v\n", path, err)
			continue
		}

		if v.Label == scorer.LabelMalicious {
			malicious++
		} else {
			benign++
		}
		_, _ = fmt.Fprintf(stdout, "%s  %s  %.4f  %s\n", newScanID(), formatVerdict(v, p), v.Score, path)

		if sc.disasm && !v.ParseFailed {
			printDisassembly(sample, p, stdout)
		}
	}

	_, _ = fmt.Fprintf(stdout, "\nSummary: %d malicious, %d benign, %d failed\n", malicious, benign, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func formatVerdict(v scorer.Verdict, p color.Palette) string {
	switch {
	case v.ParseFailed:
		return p.ParseFailed("UNPARSABLE")
	case v.Label == scorer.LabelMalicious:
		return p.Malicious("MALICIOUS ")
	default:
		return p.Benign("BENIGN    ")
	}
}

func printDisassembly(sample []byte, p color.Palette, w io.Writer) {
	insts, err := pefeatures.DisassembleEntry(sample, disasmLimit)
	if err != nil {
		_, _ = fmt.Fprintf(w, "    %s\n", p.Dim("no disassembly: "+err.Error()))
		return
	}
	for _, in := range insts {
		_, _ = fmt.Fprintf(w, "    %s  %s\n", p.Dim(fmt.Sprintf("%#010x", in.Address)), in.Text)
	}
}
