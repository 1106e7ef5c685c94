// Package main provides nfs-train, which fits a model on EMBER feature
// files and writes the artifact used by nfs-scan and nfs-serve.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/isseis/go-pe-scorer/internal/attributes"
	"github.com/isseis/go-pe-scorer/internal/classifier"
	"github.com/isseis/go-pe-scorer/internal/cmdcommon"
	"github.com/isseis/go-pe-scorer/internal/config"
	"github.com/isseis/go-pe-scorer/internal/corpus"
	"github.com/isseis/go-pe-scorer/internal/features"
	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/modelstore"
)

var errNoFilesProvided = errors.New("at least one EMBER .jsonl file must be provided")

type trainConfig struct {
	configPath string
	output     string
	keepGoing  bool
	files      []string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	tc, fs, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printUsage(fs, stderr)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	env, err := cmdcommon.Bootstrap(cmdcommon.Options{
		Component:  "nfs-train",
		ConfigPath: tc.configPath,
		ModelPath:  tc.output,
		Stderr:     stderr,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer env.Close()

	if err := train(env, tc, stdout); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*trainConfig, *flag.FlagSet, error) {
	tc := &trainConfig{}
	fs := flag.NewFlagSet("nfs-train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }
	fs.StringVar(&tc.configPath, "config", "", "Path to the TOML configuration file")
	fs.StringVar(&tc.output, "o", "", "Artifact output path (default: model.path from the configuration)")
	fs.BoolVar(&tc.keepGoing, "keep-going", false, "Skip malformed corpus lines instead of aborting")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	tc.files = fs.Args()
	if len(tc.files) == 0 {
		return nil, fs, errNoFilesProvided
	}
	return tc, fs, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	if fs == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Usage: %s [flags] <file.jsonl> [<file.jsonl>...]\n", filepath.Base(os.Args[0]))
	fs.PrintDefaults()
}

func train(env *cmdcommon.Environment, tc *trainConfig, stdout io.Writer) error {
	cfg := env.Config
	samples, stats, err := corpus.Load(tc.files, corpus.Options{SkipInvalid: tc.keepGoing, Logger: env.Logger})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Read %d samples: %d labelled, %d unlabelled, %d invalid\n",
		stats.Read, stats.Labelled, stats.Unlabelled, stats.Invalid)

	records := make([]attributes.Record, len(samples))
	labels := make([]int, len(samples))
	var malicious int
	for i, s := range samples {
		records[i] = s.Record
		labels[i] = s.Label
		if s.Label == corpus.LabelMalicious {
			malicious++
		}
	}

	clf, err := newClassifier(cfg.Classifier)
	if err != nil {
		return err
	}
	m, err := model.Train(records, labels, model.TrainOptions{
		Features:   features.Options{VocabularySize: cfg.Features.VocabularySize},
		Classifier: clf,
		Logger:     env.Logger,
	})
	if err != nil {
		return err
	}

	if err := modelstore.NewStore(cfg.Model.Path).Save(m); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "Trained model %s on %d samples (%d benign, %d malicious, %d features)\n",
		m.ID, m.TrainingSamples, len(samples)-malicious, malicious, m.Pipeline.Width())
	_, _ = fmt.Fprintf(stdout, "Saved %s\n", cfg.Model.Path)
	return nil
}

func newClassifier(c config.ClassifierConfig) (classifier.Classifier, error) {
	if c.Algorithm == classifier.RandomForestAlgorithm {
		return classifier.NewRandomForest(c.ForestOptions()), nil
	}
	return classifier.New(c.Algorithm)
}
