package logging

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Static errors
var (
	// ErrInvalidLogLevel is returned for a level other than debug, info, warn or error.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidLogFormat is returned for a format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format")
)

// Level is a configured log level. Valid values: debug, info, warn, error.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// UnmarshalText validates the level while decoding TOML.
func (l *Level) UnmarshalText(text []byte) error {
	s := Level(strings.ToLower(string(text)))
	switch s {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		*l = s
		return nil
	case "":
		*l = LevelInfo
		return nil
	default:
		return fmt.Errorf("%w: %q (must be one of: debug, info, warn, error)", ErrInvalidLogLevel, string(text))
	}
}

// ToSlogLevel converts l for use with slog. The empty level is info.
func (l Level) ToSlogLevel() (slog.Level, error) {
	switch Level(strings.ToLower(string(l))) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo, "":
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, string(l))
	}
}

// Format selects the console encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// UnmarshalText validates the format while decoding TOML.
func (f *Format) UnmarshalText(text []byte) error {
	s := Format(strings.ToLower(string(text)))
	switch s {
	case FormatText, FormatJSON:
		*f = s
		return nil
	case "":
		*f = FormatText
		return nil
	default:
		return fmt.Errorf("%w: %q (must be text or json)", ErrInvalidLogFormat, string(text))
	}
}

// Validate reports whether f is a known format. The empty format is text.
func (f Format) Validate() error {
	switch Format(strings.ToLower(string(f))) {
	case FormatText, FormatJSON, "":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, string(f))
	}
}
