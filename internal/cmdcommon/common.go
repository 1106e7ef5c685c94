// Package cmdcommon holds the start-up sequence shared by the nfs-* tools:
// configuration, logging, and model loading.
package cmdcommon

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/isseis/go-pe-scorer/internal/config"
	"github.com/isseis/go-pe-scorer/internal/logging"
	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/modelstore"
	"github.com/isseis/go-pe-scorer/internal/terminal"
)

// Build-time variables (set via ldflags)
var (
	Version = "dev"
)

// ErrMissingArtifact is returned by LoadModel with a hint to run nfs-train.
var ErrMissingArtifact = errors.New("model artifact not found (run nfs-train first)")

// Options configures Bootstrap.
type Options struct {
	Component  string
	ConfigPath string
	// ModelPath overrides model.path when set.
	ModelPath string
	Stderr    io.Writer
	Terminal  terminal.Options
}

// Environment is the initialized state of a tool.
type Environment struct {
	Config *config.Config
	Logger *slog.Logger
	closer io.Closer
}

// Bootstrap loads the configuration and builds the logger. The logger is
// also installed as slog's default.
func Bootstrap(opts Options) (*Environment, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	if opts.ModelPath != "" {
		cfg.Model.Path = opts.ModelPath
	}

	logger, closer, err := logging.Setup(logging.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		File:      cfg.Logging.File,
		Writer:    opts.Stderr,
		Terminal:  opts.Terminal,
		Component: opts.Component,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logging: %w", err)
	}
	logger = logger.With(slog.String("version", Version))
	slog.SetDefault(logger)
	logger.Debug("Configuration loaded",
		slog.String("config", opts.ConfigPath),
		slog.String("model", cfg.Model.Path),
		slog.Group("cache",
			slog.String("redis_addr", cfg.Cache.RedisAddr),
			slog.String("redis_password", cfg.Cache.RedisPassword)))
	return &Environment{Config: cfg, Logger: logger, closer: closer}, nil
}

// Close releases the log file.
func (e *Environment) Close() {
	if e.closer == nil {
		return
	}
	if err := e.closer.Close(); err != nil {
		e.Logger.Warn("Failed to close log file", slog.Any("error", err))
	}
}

// LoadModel reads the artifact at path.
func LoadModel(path string) (*model.Model, error) {
	m, err := modelstore.NewStore(path).Load()
	if errors.Is(err, modelstore.ErrArtifactNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMissingArtifact, path)
	}
	return m, err
}
