// Package cache implements the Response Cache (C2): an at-most-once-
// per-(provider, canonical key) memoization of geocoding calls, scoped
// to a single job and discarded with it (spec §3 "Lifecycles").
//
// Grounded on NERVsystems-osmmcp's pkg/tools/geocode.go, which pairs a
// hashicorp/golang-lru cache with a golang.org/x/sync/singleflight
// group to dedupe concurrent lookups — generalized here from a
// process-global cache to a per-job instance (spec §9 "injected
// collaborators", not hidden globals), and from raw JSON bytes to
// typed Results.
package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

// DefaultCapacity bounds the cache to a reasonable number of distinct
// (provider, query) pairs per job; jobs with more distinct inputs than
// this evict least-recently-used entries rather than growing
// unbounded, per spec §9.
const DefaultCapacity = 100_000

// Fetcher computes a Result for a cache miss. While a key's Result is
// cached, Fetcher is not invoked for it again, and concurrent callers
// requesting the same key share one invocation (spec §4.2 single-flight
// guarantee). A Fetcher that returns an error leaves nothing cached, so
// the next call for that key invokes it again; so does a call for a key
// whose entry the LRU has evicted.
type Fetcher func(ctx context.Context) (model.Result, error)

// Cache memoizes (provider, canonical query) -> Result for the
// lifetime of one job. Safe for concurrent use.
type Cache struct {
	store *lru.Cache[string, model.Result]
	group singleflight.Group
}

// New constructs a Cache bounded to capacity entries. capacity <= 0
// uses DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	store, err := lru.New[string, model.Result](capacity)
	if err != nil {
		// lru.New only errors on a non-positive size, already guarded above.
		store, _ = lru.New[string, model.Result](DefaultCapacity)
	}
	return &Cache{store: store}
}

// Key builds the canonical cache key for a (provider, variant) pair,
// per spec §4.2's "(provider, canonical_key)" contract.
func Key(provider model.ProviderName, variant model.Variant) string {
	switch variant.Kind {
	case model.VariantStructured:
		s := variant.Structured
		return string(provider) + "|structured|" + s.Street + "|" + s.City + "|" + s.PostalCode + "|" + s.Governorate + "|" + s.Country
	default:
		return string(provider) + "|" + string(variant.Kind) + "|" + variant.Query
	}
}

// Get returns a cache hit for key, if present.
func (c *Cache) Get(key string) (model.Result, bool) {
	return c.store.Get(key)
}

// GetOrFetch returns the cached Result for key, or calls fetch exactly
// once across all concurrent callers sharing key, storing and
// returning its result. A second concurrent caller with the same key
// blocks until the first finishes and observes the same Result (spec
// §4.2, §5 "cache single-flight wait").
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch Fetcher) (model.Result, error) {
	if cached, ok := c.store.Get(key); ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A caller that missed above may only reach Do after an earlier
		// flight for key has stored its result and returned.
		if cached, ok := c.store.Get(key); ok {
			return cached, nil
		}
		result, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return result, fetchErr
		}
		c.store.Add(key, result)
		return result, nil
	})
	if err != nil {
		return model.Result{}, err
	}
	return v.(model.Result), nil
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	return c.store.Len()
}
