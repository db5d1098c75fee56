package diet

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultFoodCacheTTL is how long a food selection stays cached. The TTL
// is fixed; cache hits do not refresh it.
const DefaultFoodCacheTTL = 24 * time.Hour

// CacheStore is the key-value store backing the food cache. The primary
// Redis client implements it; tests use an in-memory implementation.
type CacheStore interface {
	// GetValue returns the value for key, or ok=false when absent.
	GetValue(ctx context.Context, key string) (value string, ok bool, err error)

	// SetValue stores value under key with a time-to-live.
	SetValue(ctx context.Context, key string, value string, ttl time.Duration) error
}

// FoodCacheConfig holds configuration for the food selection cache.
type FoodCacheConfig struct {
	// Store is the backing key-value store.
	Store CacheStore

	// TTL for new entries (default: DefaultFoodCacheTTL).
	TTL time.Duration

	// Logger for cache operations.
	Logger zerolog.Logger
}

// FoodCache memoizes food selector results keyed by calorie target,
// cuisine preferences and restriction set. It owns memoization only; food
// selection correctness belongs to the selector.
type FoodCache struct {
	store  CacheStore
	ttl    time.Duration
	logger zerolog.Logger

	// inflight deduplicates concurrent computations per key within this
	// process. Best effort: a second process may still compute the same
	// key, which only costs redundant work.
	mu       sync.Mutex
	inflight map[string]*sync.WaitGroup
}

// NewFoodCache creates a food selection cache.
func NewFoodCache(cfg FoodCacheConfig) *FoodCache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultFoodCacheTTL
	}
	return &FoodCache{
		store:    cfg.Store,
		ttl:      ttl,
		logger:   cfg.Logger,
		inflight: make(map[string]*sync.WaitGroup),
	}
}

// GetOrCompute returns the cached foods for the given dimensions, or
// invokes the selector on a miss and stores the result. A failing store
// read is treated as a miss, never as an error; a failing selector is a
// hard failure.
func (c *FoodCache) GetOrCompute(ctx context.Context, targetCalories int, cuisinePrefs, restrictions []string, selector Selector) ([]FoodItem, error) {
	key := cacheKey(targetCalories, cuisinePrefs, restrictions)

	if foods, ok := c.lookup(ctx, key); ok {
		return foods, nil
	}

	// Wait for an identical in-flight computation, then re-check the
	// store. If the store was unavailable for the first writer this
	// falls through to a second computation, which is acceptable.
	if c.waitInflight(key) {
		if foods, ok := c.lookup(ctx, key); ok {
			return foods, nil
		}
	} else {
		defer c.doneInflight(key)
	}

	foods, err := selector.Select(ctx, targetCalories, cuisinePrefs, restrictions)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSelectorFailed, selector.Name(), err)
	}

	c.put(ctx, key, foods)
	return foods, nil
}

// lookup reads the store, treating any error as a miss.
func (c *FoodCache) lookup(ctx context.Context, key string) ([]FoodItem, bool) {
	value, ok, err := c.store.GetValue(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("food cache read failed, treating as miss")
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var foods []FoodItem
	if err := json.Unmarshal([]byte(value), &foods); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("food cache entry malformed, treating as miss")
		return nil, false
	}
	return foods, true
}

// put writes the entry; write failures are logged and swallowed since the
// result is already computed.
func (c *FoodCache) put(ctx context.Context, key string, foods []FoodItem) {
	payload, err := json.Marshal(foods)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("food cache encode failed")
		return
	}
	if err := c.store.SetValue(ctx, key, string(payload), c.ttl); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("food cache write failed")
	}
}

// waitInflight blocks on an existing computation for key, returning true
// if one was in flight. Otherwise it registers this caller as the writer.
func (c *FoodCache) waitInflight(key string) bool {
	c.mu.Lock()
	if wg, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		wg.Wait()
		return true
	}
	wg := &sync.WaitGroup{}
	wg.Add(1)
	c.inflight[key] = wg
	c.mu.Unlock()
	return false
}

func (c *FoodCache) doneInflight(key string) {
	c.mu.Lock()
	if wg, ok := c.inflight[key]; ok {
		delete(c.inflight, key)
		wg.Done()
	}
	c.mu.Unlock()
}

// cacheKey builds a stable key: both dimension slices are normalized and
// sorted so semantically identical requests hit the same entry regardless
// of input ordering.
func cacheKey(targetCalories int, cuisinePrefs, restrictions []string) string {
	return fmt.Sprintf("meal:%d:%s:%s",
		targetCalories,
		strings.Join(normalizeTokens(cuisinePrefs), ","),
		strings.Join(normalizeTokens(restrictions), ","),
	)
}

func normalizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return out
}
