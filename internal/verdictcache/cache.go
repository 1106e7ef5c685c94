// Package verdictcache stores scorer verdicts in Redis so repeated
// submissions of the same sample skip feature extraction.
package verdictcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/isseis/go-pe-scorer/internal/scorer"
)

// DefaultTTL is used when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

const keyPrefix = "nfs:verdict:"

// ErrInvalidEntry indicates a cached value that decodes but is not a verdict
// the scorer could have produced.
var ErrInvalidEntry = errors.New("invalid cached verdict")

// Config describes the Redis endpoint.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// client is the subset of *redis.Client used by Cache.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Cache implements scorer.Cache on Redis.
type Cache struct {
	client client
	ttl    time.Duration
}

var _ scorer.Cache = (*Cache)(nil)

// New connects to the Redis server in cfg. The connection is lazy; use Ping
// to check reachability.
func New(cfg Config) *Cache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newCache(rdb, cfg.TTL)
}

func newCache(c client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: c, ttl: ttl}
}

// entry is the cached JSON value. Cached and ModelID are not stored: the
// scorer sets them on a hit.
type entry struct {
	Label       int     `json:"result"`
	Score       float64 `json:"score"`
	ParseFailed bool    `json:"parse_failed,omitempty"`
}

// validate applies the bounds Rescale guarantees: label 0 or 1 and a score
// in [0.5, 1]. A parse failure is always (1, 1).
func (e entry) validate() error {
	if e.Label != scorer.LabelBenign && e.Label != scorer.LabelMalicious {
		return fmt.Errorf("%w: result %d", ErrInvalidEntry, e.Label)
	}
	if !(e.Score >= 0.5 && e.Score <= 1) {
		return fmt.Errorf("%w: score %v", ErrInvalidEntry, e.Score)
	}
	if e.ParseFailed && (e.Label != scorer.LabelMalicious || e.Score != 1) {
		return fmt.Errorf("%w: parse failure with result %d score %v", ErrInvalidEntry, e.Label, e.Score)
	}
	return nil
}

// Get returns the verdict stored under key. A missing key is not an error.
func (c *Cache) Get(ctx context.Context, key string) (scorer.Verdict, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return scorer.Verdict{}, false, nil
	}
	if err != nil {
		return scorer.Verdict{}, false, fmt.Errorf("failed to read verdict: %w", err)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return scorer.Verdict{}, false, fmt.Errorf("failed to decode cached verdict %q: %w", key, err)
	}
	if err := e.validate(); err != nil {
		return scorer.Verdict{}, false, fmt.Errorf("failed to decode cached verdict %q: %w", key, err)
	}
	return scorer.Verdict{Label: e.Label, Score: e.Score, ParseFailed: e.ParseFailed}, true, nil
}

// Put stores v under key with the configured TTL.
func (c *Cache) Put(ctx context.Context, key string, v scorer.Verdict) error {
	raw, err := json.Marshal(entry{Label: v.Label, Score: v.Score, ParseFailed: v.ParseFailed})
	if err != nil {
		return fmt.Errorf("failed to encode verdict: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store verdict: %w", err)
	}
	return nil
}

// Ping checks that the server answers.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (c *Cache) Close() error {
	return c.client.Close()
}
