// Package color wraps text in ANSI escape sequences for terminal output.
//
//nolint:revive // package name conflicts with standard library
package color

const (
	resetCode  = "\033[0m"
	boldCode   = "\033[1m"
	grayCode   = "\033[90m"
	greenCode  = "\033[32m"
	yellowCode = "\033[33m"
	redCode    = "\033[31m"
	cyanCode   = "\033[36m"
)

// Color wraps text in an escape sequence.
type Color func(text string) string

// NewColor returns a Color for an ANSI code.
func NewColor(ansiCode string) Color {
	return func(text string) string {
		return ansiCode + text + resetCode
	}
}

var (
	Gray    = NewColor(grayCode)
	Green   = NewColor(greenCode)
	Yellow  = NewColor(yellowCode)
	Red     = NewColor(redCode)
	Cyan    = NewColor(cyanCode)
	BoldRed = NewColor(boldCode + redCode)
)

func plain(text string) string { return text }

// Palette names the colors used for scan results and log levels. The zero
// value is not usable; build one with NewPalette.
type Palette struct {
	Malicious   Color
	Benign      Color
	ParseFailed Color
	Error       Color
	Dim         Color
}

// NewPalette returns a colored palette, or a plain one when enabled is false.
func NewPalette(enabled bool) Palette {
	if !enabled {
		return Palette{Malicious: plain, Benign: plain, ParseFailed: plain, Error: plain, Dim: plain}
	}
	return Palette{Malicious: BoldRed, Benign: Green, ParseFailed: Yellow, Error: Red, Dim: Gray}
}
