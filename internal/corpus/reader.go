package corpus

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/isseis/go-pe-scorer/internal/safefileio"
)

// MaxLineSize bounds a single JSONL record. EMBER lines are a few kilobytes;
// the limit only stops a corrupt file from exhausting memory.
const MaxLineSize = 64 * 1024 * 1024

const initialBufferSize = 64 * 1024

// Reader streams samples from a JSONL source, one record per line. Blank
// lines are skipped.
type Reader struct {
	scanner *bufio.Scanner
	path    string
	line    int
}

// NewReader returns a Reader over r. path is only used in error messages.
func NewReader(r io.Reader, path string) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, initialBufferSize), MaxLineSize)
	return &Reader{scanner: s, path: path}
}

// Next returns the next sample, io.EOF after the last one, or a
// *SchemaViolationError for an invalid line. Reading may continue after a
// schema violation.
func (r *Reader) Next() (Sample, error) {
	for r.scanner.Scan() {
		r.line++
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		s, err := Extract(line)
		if err != nil {
			var sv *SchemaViolationError
			if errors.As(err, &sv) {
				sv.Path = r.path
				sv.Line = r.line
			}
			return Sample{}, err
		}
		return s, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Sample{}, &SchemaViolationError{Path: r.path, Line: r.line + 1, Err: ErrLineTooLong}
		}
		return Sample{}, fmt.Errorf("failed to read %s: %w", r.path, err)
	}
	return Sample{}, io.EOF
}

// Line returns the number of the last line read.
func (r *Reader) Line() int {
	return r.line
}

// Options controls Load.
type Options struct {
	// SkipInvalid counts and logs schema violations instead of aborting.
	SkipInvalid bool
	Logger      *slog.Logger
}

// Stats summarises a Load call.
type Stats struct {
	Read       int
	Labelled   int
	Unlabelled int
	Invalid    int
}

// Load reads every file in paths and returns the labelled samples in file
// and line order. Unlabelled samples are counted and dropped. Without
// SkipInvalid the first schema violation aborts the load.
func Load(paths []string, opts Options) ([]Sample, Stats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		samples []Sample
		stats   Stats
	)
	for _, path := range paths {
		if err := loadFile(path, opts.SkipInvalid, logger, &samples, &stats); err != nil {
			return nil, stats, err
		}
	}

	logger.Info("Corpus loaded",
		slog.Int("files", len(paths)),
		slog.Int("read", stats.Read),
		slog.Int("labelled", stats.Labelled),
		slog.Int("unlabelled", stats.Unlabelled),
		slog.Int("invalid", stats.Invalid))
	return samples, stats, nil
}

func loadFile(path string, skipInvalid bool, logger *slog.Logger, samples *[]Sample, stats *Stats) error {
	f, err := safefileio.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logger.Warn("Failed to close corpus file", slog.String("path", path), slog.Any("error", closeErr))
		}
	}()

	r := NewReader(f, path)
	for {
		s, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var sv *SchemaViolationError
			if !skipInvalid || !errors.As(err, &sv) || errors.Is(err, ErrLineTooLong) {
				return err
			}
			stats.Invalid++
			logger.Warn("Skipping invalid corpus record", slog.Any("error", err))
			continue
		}

		stats.Read++
		if !s.Labelled() {
			stats.Unlabelled++
			continue
		}
		stats.Labelled++
		*samples = append(*samples, s)
	}
}
