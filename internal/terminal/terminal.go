// Package terminal decides whether CLI output goes to an interactive
// terminal and whether it may carry ANSI colors.
//
// Color selection follows, in order: command line flags, CLICOLOR_FORCE,
// NO_COLOR, CLICOLOR (interactive only), and finally TERM detection.
package terminal

import (
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Options holds command line overrides.
type Options struct {
	ForceColor          bool
	DisableColor        bool
	ForceInteractive    bool
	ForceNonInteractive bool

	// LookupEnv defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
	// IsTerminal defaults to term.IsTerminal on the writer's descriptor.
	IsTerminal func(w io.Writer) bool
}

// Capabilities is the outcome of detection for one output stream.
type Capabilities struct {
	Interactive bool
	Color       bool
	// Explicit is set when a flag or environment variable chose Color.
	Explicit bool
}

// Detect inspects w and the environment.
func Detect(w io.Writer, opts Options) Capabilities {
	d := detector{lookup: opts.LookupEnv, isTerminal: opts.IsTerminal}
	if d.lookup == nil {
		d.lookup = os.LookupEnv
	}
	if d.isTerminal == nil {
		d.isTerminal = isTerminalWriter
	}

	var c Capabilities
	switch {
	case opts.ForceInteractive:
		c.Interactive = true
	case opts.ForceNonInteractive:
		c.Interactive = false
	default:
		c.Interactive = !d.isCI() && d.isTerminal(w)
	}

	if color, ok := d.explicitColor(opts); ok {
		c.Color = color
		c.Explicit = true
		return c
	}
	if !c.Interactive || !d.termSupportsColor() {
		return c
	}
	if v := d.getenv("CLICOLOR"); v != "" {
		c.Color = isTruthy(v)
		return c
	}
	c.Color = true
	return c
}

type detector struct {
	lookup     func(string) (string, bool)
	isTerminal func(io.Writer) bool
}

func (d detector) getenv(key string) string {
	v, _ := d.lookup(key)
	return v
}

func (d detector) explicitColor(opts Options) (bool, bool) {
	if opts.ForceColor {
		return true, true
	}
	if opts.DisableColor {
		return false, true
	}
	// CLICOLOR_FORCE=0 is not a preference.
	if isTruthy(d.getenv("CLICOLOR_FORCE")) {
		return true, true
	}
	// NO_COLOR counts even when empty.
	if _, ok := d.lookup("NO_COLOR"); ok {
		return false, true
	}
	return false, false
}

func isTerminalWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
