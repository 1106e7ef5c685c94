// Package main provides nfs-serve, an HTTP front end for the scorer.
//
// SIGHUP reloads the model artifact; SIGINT and SIGTERM shut the server
// down gracefully.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/isseis/go-pe-scorer/internal/cmdcommon"
	"github.com/isseis/go-pe-scorer/internal/config"
	"github.com/isseis/go-pe-scorer/internal/scorer"
	"github.com/isseis/go-pe-scorer/internal/server"
	"github.com/isseis/go-pe-scorer/internal/verdictcache"
)

const (
	shutdownTimeout  = 10 * time.Second
	cachePingTimeout = 3 * time.Second
)

var errUnexpectedArgs = errors.New("nfs-serve takes no positional arguments")

type serveConfig struct {
	configPath string
	modelPath  string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	os.Exit(run(ctx, os.Args[1:], hup, os.Stderr))
}

func run(ctx context.Context, args []string, hup <-chan os.Signal, stderr io.Writer) int {
	sc, fs, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		printUsage(fs, stderr)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	env, err := cmdcommon.Bootstrap(cmdcommon.Options{
		Component:  "nfs-serve",
		ConfigPath: sc.configPath,
		ModelPath:  sc.modelPath,
		Stderr:     stderr,
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer env.Close()

	if err := serve(ctx, env.Config, env.Logger, hup, nil); err != nil {
		env.Logger.Error("Server stopped", slog.Any("error", err))
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseArgs(args []string, stderr io.Writer) (*serveConfig, *flag.FlagSet, error) {
	sc := &serveConfig{}
	fs := flag.NewFlagSet("nfs-serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(fs, stderr) }
	fs.StringVar(&sc.configPath, "config", "", "Path to the TOML configuration file")
	fs.StringVar(&sc.modelPath, "model", "", "Model artifact (default: model.path from the configuration)")

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	if fs.NArg() > 0 {
		return nil, fs, errUnexpectedArgs
	}
	return sc, fs, nil
}

func printUsage(fs *flag.FlagSet, w io.Writer) {
	if fs == nil {
		return
	}
	_, _ = fmt.Fprintf(w, "Usage: %s [flags]\n", filepath.Base(os.Args[0]))
	fs.PrintDefaults()
}

// serve loads the model, wires the scorer into the HTTP server and blocks
// until ctx is canceled or the listener fails. A nil ln listens on
// cfg.Server.ListenAddr.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger, hup <-chan os.Signal, ln net.Listener) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := scorer.Options{
		Threshold: cfg.Scoring.Threshold,
		Metrics:   scorer.NewMetrics(reg),
		Logger:    logger,
	}
	if cfg.Cache.Enabled() {
		cache := verdictcache.New(cfg.Cache.VerdictCache())
		defer func() { _ = cache.Close() }()
		pingCtx, cancel := context.WithTimeout(ctx, cachePingTimeout)
		err := cache.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("verdict cache: %w", err)
		}
		logger.Info("Verdict cache enabled", slog.String("addr", cfg.Cache.RedisAddr))
		opts.Cache = cache
	}

	s, err := scorer.New(opts)
	if err != nil {
		return err
	}
	r := &reloader{scorer: s, path: cfg.Model.Path, logger: logger}
	if err := r.reload(); err != nil {
		return err
	}

	srv := server.New(server.Config{
		ListenAddr:    cfg.Server.ListenAddr,
		MaxSampleSize: cfg.Server.MaxSampleSize,
		ReadTimeout:   cfg.Server.ReadTimeout.Std(),
		WriteTimeout:  cfg.Server.WriteTimeout.Std(),
		Gatherer:      reg,
		Logger:        logger,
	}, s).HTTPServer()

	if ln == nil {
		ln, err = net.Listen("tcp", srv.Addr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", srv.Addr, err)
		}
	}
	logger.Info("Listening", slog.String("addr", ln.Addr().String()), slog.Float64("threshold", s.Threshold()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	for {
		select {
		case <-hup:
			// The previous model stays in service when the reload fails.
			_ = r.reload()
		case err := <-errCh:
			return err
		case <-ctx.Done():
			logger.Info("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		}
	}
}

// reloader swaps freshly loaded artifacts into a scorer.
type reloader struct {
	scorer *scorer.Scorer
	path   string
	logger *slog.Logger
}

func (r *reloader) reload() error {
	m, err := cmdcommon.LoadModel(r.path)
	if err != nil {
		r.logger.Error("Failed to load model", slog.String("path", r.path), slog.Any("error", err))
		return err
	}
	old := r.scorer.Swap(m)
	attrs := []any{slog.String("model_id", m.ID), slog.String("path", r.path)}
	if old != nil {
		attrs = append(attrs, slog.String("previous_model_id", old.ID))
	}
	r.logger.Info("Model loaded", attrs...)
	return nil
}
