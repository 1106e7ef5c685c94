// Package config loads the scorer's TOML configuration file.
//
// Keys absent from the file keep their defaults; present keys are validated
// after decoding, and unknown keys are rejected so typos surface early.
package config

import (
	"time"

	"github.com/isseis/go-pe-scorer/internal/classifier"
	"github.com/isseis/go-pe-scorer/internal/features"
	"github.com/isseis/go-pe-scorer/internal/logging"
	"github.com/isseis/go-pe-scorer/internal/scorer"
	"github.com/isseis/go-pe-scorer/internal/verdictcache"
)

// Config is the whole configuration file.
type Config struct {
	Scoring    ScoringConfig    `toml:"scoring"`
	Features   FeaturesConfig   `toml:"features"`
	Classifier ClassifierConfig `toml:"classifier"`
	Model      ModelConfig      `toml:"model"`
	Server     ServerConfig     `toml:"server"`
	Cache      CacheConfig      `toml:"cache"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ScoringConfig controls the decision threshold.
type ScoringConfig struct {
	Threshold float64 `toml:"threshold"`
}

// FeaturesConfig controls the feature pipeline.
type FeaturesConfig struct {
	VocabularySize int `toml:"vocabulary_size"`
}

// ClassifierConfig selects and tunes the classifier. MaxDepth 0 means
// unlimited, MaxFeatures 0 means sqrt of the feature count, and Workers 0
// means GOMAXPROCS.
type ClassifierConfig struct {
	Algorithm      string `toml:"algorithm"`
	Trees          int    `toml:"trees"`
	MaxDepth       int    `toml:"max_depth"`
	MinSamplesLeaf int    `toml:"min_samples_leaf"`
	MaxFeatures    int    `toml:"max_features"`
	Seed           uint64 `toml:"seed"`
	Workers        int    `toml:"workers"`
}

// ModelConfig locates the persisted artifact.
type ModelConfig struct {
	Path string `toml:"path"`
}

// ServerConfig controls nfs-serve.
type ServerConfig struct {
	ListenAddr    string   `toml:"listen_addr"`
	MaxSampleSize int64    `toml:"max_sample_size"`
	ReadTimeout   Duration `toml:"read_timeout"`
	WriteTimeout  Duration `toml:"write_timeout"`
}

// CacheConfig configures the Redis verdict cache. An empty RedisAddr
// disables it.
type CacheConfig struct {
	RedisAddr     string   `toml:"redis_addr"`
	RedisPassword string   `toml:"redis_password"`
	RedisDB       int      `toml:"redis_db"`
	TTL           Duration `toml:"ttl"`
}

// LoggingConfig configures internal/logging.
type LoggingConfig struct {
	Level  logging.Level  `toml:"level"`
	Format logging.Format `toml:"format"`
	File   string         `toml:"file"`
}

// Default values
const (
	DefaultModelPath     = "nfs-model.json"
	DefaultListenAddr    = ":8080"
	DefaultMaxSampleSize = 32 << 20
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 30 * time.Second
	DefaultTrees         = 100
	DefaultSeed          = 1
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.Classifier.Seed = DefaultSeed
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero values for which zero is never a valid setting.
// Seed is left alone since 0 is a valid seed.
func ApplyDefaults(cfg *Config) {
	if cfg.Scoring.Threshold == 0 {
		cfg.Scoring.Threshold = scorer.DefaultThreshold
	}
	if cfg.Features.VocabularySize == 0 {
		cfg.Features.VocabularySize = features.DefaultVocabularySize
	}
	if cfg.Classifier.Algorithm == "" {
		cfg.Classifier.Algorithm = classifier.RandomForestAlgorithm
	}
	if cfg.Classifier.Trees == 0 {
		cfg.Classifier.Trees = DefaultTrees
	}
	if cfg.Classifier.MinSamplesLeaf == 0 {
		cfg.Classifier.MinSamplesLeaf = 1
	}
	if cfg.Model.Path == "" {
		cfg.Model.Path = DefaultModelPath
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.MaxSampleSize == 0 {
		cfg.Server.MaxSampleSize = DefaultMaxSampleSize
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(verdictcache.DefaultTTL)
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = logging.LevelInfo
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = logging.FormatText
	}
}

// ForestOptions converts the classifier section.
func (c ClassifierConfig) ForestOptions() classifier.ForestOptions {
	return classifier.ForestOptions{
		Trees:          c.Trees,
		MaxDepth:       c.MaxDepth,
		MinSamplesLeaf: c.MinSamplesLeaf,
		MaxFeatures:    c.MaxFeatures,
		Seed:           c.Seed,
		Workers:        c.Workers,
	}
}

// VerdictCache converts the cache section.
func (c CacheConfig) VerdictCache() verdictcache.Config {
	return verdictcache.Config{
		Addr:     c.RedisAddr,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
		TTL:      time.Duration(c.TTL),
	}
}

// Enabled reports whether a Redis address is configured.
func (c CacheConfig) Enabled() bool {
	return c.RedisAddr != ""
}
