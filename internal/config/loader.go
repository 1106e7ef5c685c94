package config

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"

	"github.com/isseis/go-pe-scorer/internal/safefileio"
)

// maxConfigSize bounds the configuration file.
const maxConfigSize = 1 << 20

// Loader reads configuration files.
type Loader struct {
	readFile func(path string, maxSize int64) ([]byte, error)
}

// NewLoader returns a Loader reading through safefileio.
func NewLoader() *Loader {
	return &Loader{readFile: safefileio.ReadFile}
}

// LoadConfig reads, decodes and validates the file at path.
func (l *Loader) LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, ErrInvalidConfigPath
	}
	content, err := l.readFile(path, maxConfigSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes TOML content over the defaults and validates the result.
func Parse(content []byte) (*Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(content)).DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load returns the defaults when path is empty and the parsed file otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return NewLoader().LoadConfig(path)
}
