// Package logging assembles the process-wide slog handler: a console
// handler on stderr, optionally fanned out to a JSON log file. Credentials
// are redacted before any handler sees a record.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/isseis/go-pe-scorer/internal/redaction"
	"github.com/isseis/go-pe-scorer/internal/safefileio"
	"github.com/isseis/go-pe-scorer/internal/terminal"
)

const logFilePerm = 0o600

// Options configures Setup.
type Options struct {
	Level  Level
	Format Format
	// File, when set, receives every record as JSON in addition to the console.
	File string
	// Writer defaults to os.Stderr.
	Writer   io.Writer
	Terminal terminal.Options
	// Component is attached to every record written to File.
	Component string
}

// Setup builds a logger from opts. The returned closer releases the log
// file and must be called before exit.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	level, err := opts.Level.ToSlogLevel()
	if err != nil {
		return nil, nil, err
	}
	if err := opts.Format.Validate(); err != nil {
		return nil, nil, err
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	console, err := consoleHandler(w, level, opts)
	if err != nil {
		return nil, nil, err
	}
	if opts.File == "" {
		return slog.New(redaction.NewRedactingHandler(console, nil)), nopCloser{}, nil
	}

	f, err := safefileio.OpenAppend(opts.File, logFilePerm)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	file := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level}).WithAttrs([]slog.Attr{
		slog.String("hostname", hostname),
		slog.Int("pid", os.Getpid()),
		slog.String("component", opts.Component),
	})
	return slog.New(redaction.NewRedactingHandler(NewMultiHandler(console, file), nil)), f, nil
}

func consoleHandler(w io.Writer, level slog.Level, opts Options) (slog.Handler, error) {
	if Format(strings.ToLower(string(opts.Format))) == FormatJSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}), nil
	}
	caps := terminal.Detect(w, opts.Terminal)
	if !caps.Interactive {
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}), nil
	}
	return NewConsoleHandler(ConsoleHandlerOptions{Level: level, Writer: w, Color: caps.Color})
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
