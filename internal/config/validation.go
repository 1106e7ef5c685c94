package config

import (
	"errors"
	"slices"

	"github.com/isseis/go-pe-scorer/internal/classifier"
	"github.com/isseis/go-pe-scorer/internal/scorer"
)

// Validate checks every section and joins all problems into one error.
func Validate(cfg *Config) error {
	var errs []error
	add := func(key string, value any, reason string) {
		errs = append(errs, &ValidationError{Key: key, Value: value, Reason: reason})
	}

	if err := scorer.ValidateThreshold(cfg.Scoring.Threshold); err != nil {
		add("scoring.threshold", cfg.Scoring.Threshold, "must be in the open interval (0, 1)")
	}
	if cfg.Features.VocabularySize < 1 {
		add("features.vocabulary_size", cfg.Features.VocabularySize, "must be at least 1")
	}

	c := cfg.Classifier
	if !slices.Contains(classifier.Algorithms(), c.Algorithm) {
		add("classifier.algorithm", c.Algorithm, "unknown algorithm")
	}
	if c.Trees < 1 {
		add("classifier.trees", c.Trees, "must be at least 1")
	}
	if c.MaxDepth < 0 {
		add("classifier.max_depth", c.MaxDepth, "must not be negative")
	}
	if c.MinSamplesLeaf < 1 {
		add("classifier.min_samples_leaf", c.MinSamplesLeaf, "must be at least 1")
	}
	if c.MaxFeatures < 0 {
		add("classifier.max_features", c.MaxFeatures, "must not be negative")
	}
	if c.Workers < 0 {
		add("classifier.workers", c.Workers, "must not be negative")
	}

	if cfg.Model.Path == "" {
		add("model.path", cfg.Model.Path, "must not be empty")
	}
	if cfg.Server.MaxSampleSize < 1 {
		add("server.max_sample_size", cfg.Server.MaxSampleSize, "must be at least 1")
	}
	if cfg.Server.ReadTimeout < 0 {
		add("server.read_timeout", cfg.Server.ReadTimeout.Std(), "must not be negative")
	}
	if cfg.Server.WriteTimeout < 0 {
		add("server.write_timeout", cfg.Server.WriteTimeout.Std(), "must not be negative")
	}
	if cfg.Cache.TTL < 0 {
		add("cache.ttl", cfg.Cache.TTL.Std(), "must not be negative")
	}
	if cfg.Cache.RedisDB < 0 {
		add("cache.redis_db", cfg.Cache.RedisDB, "must not be negative")
	}

	if _, err := cfg.Logging.Level.ToSlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if err := cfg.Logging.Format.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
