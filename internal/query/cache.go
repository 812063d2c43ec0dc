/**
 * @description
 * Keyed query cache shared by every view. Entries are kept until invalidated or evicted,
 * served fresh inside the stale time, and refetched after it. Identical in-flight
 * fetches are collapsed, and a failed refetch falls back to the last good value.
 *
 * @dependencies
 * - github.com/patrickmn/go-cache: entry storage with background eviction.
 * - golang.org/x/sync/singleflight: collapses concurrent fetches of the same key.
 */
package query

import (
	"context"
	"errors"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// ErrDisabled is returned for keys without a resolved user id. The fetcher is not called.
var ErrDisabled = errors.New("query disabled until the user is known")

// Fetcher loads the value for a key.
type Fetcher func(ctx context.Context) (interface{}, error)

// Meta describes where a returned value came from.
type Meta struct {
	FetchedAt time.Time `json:"fetchedAt"`
	Stale     bool      `json:"stale"`
	Cached    bool      `json:"cached"`
}

// Observer is notified of each cache outcome: hit, miss, stale or error.
type Observer interface {
	CacheOutcome(resource, outcome string)
}

type entry struct {
	value         interface{}
	fetchedAt     time.Time
	invalidatedAt time.Time
}

func (e entry) fresh(now time.Time, staleTime time.Duration) bool {
	if !e.invalidatedAt.IsZero() && !e.invalidatedAt.Before(e.fetchedAt) {
		return false
	}
	return now.Sub(e.fetchedAt) < staleTime
}

// call tracks the singleflight call currently registered for a key.
type call struct {
	invalidated bool
}

// Cache is the keyed query store.
type Cache struct {
	items     *gocache.Cache
	flight    singleflight.Group
	staleTime time.Duration
	now       func() time.Time
	observer  Observer

	mu    sync.Mutex
	calls map[string]*call
}

// NewCache creates a cache. Entries unused for evictAfter are dropped.
func NewCache(staleTime, evictAfter time.Duration) *Cache {
	return &Cache{
		items:     gocache.New(evictAfter, evictAfter),
		staleTime: staleTime,
		now:       time.Now,
		calls:     map[string]*call{},
	}
}

// SetObserver installs a metrics observer.
func (c *Cache) SetObserver(o Observer) { c.observer = o }

func (c *Cache) outcome(key Key, result string) {
	if c.observer != nil {
		c.observer.CacheOutcome(key.Resource(), result)
	}
}

// Fetch returns the cached value when fresh, otherwise fetches it. On fetch failure the last
// good value is returned with Meta.Stale set, together with the error.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch Fetcher) (interface{}, Meta, error) {
	if !key.Enabled() {
		return nil, Meta{}, ErrDisabled
	}
	id := key.String()

	c.mu.Lock()
	cached, found := c.lookup(id)
	c.mu.Unlock()
	if found && cached.fresh(c.now(), c.staleTime) {
		c.outcome(key, "hit")
		return cached.value, Meta{FetchedAt: cached.fetchedAt, Cached: true}, nil
	}

	started := c.now()
	v, err, _ := c.flight.Do(id, func() (interface{}, error) {
		cl := c.begin(id)
		value, err := fetch(ctx)
		c.finish(id, cl, value, err, started)
		if err != nil {
			return nil, err
		}
		return value, nil
	})
	if err != nil {
		c.mu.Lock()
		cached, found = c.lookup(id)
		c.mu.Unlock()
		if found {
			c.outcome(key, "stale")
			return cached.value, Meta{FetchedAt: cached.fetchedAt, Stale: true, Cached: true}, err
		}
		c.outcome(key, "error")
		return nil, Meta{}, err
	}
	c.outcome(key, "miss")
	return v, Meta{FetchedAt: started}, nil
}

func (c *Cache) lookup(id string) (entry, bool) {
	raw, ok := c.items.Get(id)
	if !ok {
		return entry{}, false
	}
	e, ok := raw.(entry)
	return e, ok
}

func (c *Cache) begin(id string) *call {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl := &call{}
	c.calls[id] = cl
	return cl
}

// finish stores a fetched value unless an invalidation arrived mid-fetch. Such a call was
// already forgotten, so a later Fetch runs its own request and stores the newer value.
func (c *Cache) finish(id string, cl *call, value interface{}, err error, started time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls[id] == cl {
		delete(c.calls, id)
	}
	if err != nil || cl.invalidated {
		return
	}
	c.items.SetDefault(id, entry{value: value, fetchedAt: started})
}

// forgetCalls detaches in-flight fetches of matching keys. Callers hold c.mu.
func (c *Cache) forgetCalls(m Match) {
	for id, cl := range c.calls {
		if key, ok := parseKey(id); ok && m.Matches(key) {
			cl.invalidated = true
			delete(c.calls, id)
			c.flight.Forget(id)
		}
	}
}

// Invalidate marks every matching entry stale and returns how many were touched.
// Values are kept so they can still be shown while the refetch runs. Fetches already in
// flight for matching keys are not shared with later callers and do not store their result.
func (c *Cache) Invalidate(m Match) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgetCalls(m)
	now := c.now()
	touched := 0
	for id, item := range c.items.Items() {
		key, ok := parseKey(id)
		if !ok || !m.Matches(key) {
			continue
		}
		e, ok := item.Object.(entry)
		if !ok {
			continue
		}
		e.invalidatedAt = now
		c.items.SetDefault(id, e)
		touched++
	}
	return touched
}

// Remove drops matching entries entirely, used on sign-out.
func (c *Cache) Remove(m Match) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forgetCalls(m)
	for id := range c.items.Items() {
		if key, ok := parseKey(id); ok && m.Matches(key) {
			c.items.Delete(id)
		}
	}
}

// Len reports the number of cached entries.
func (c *Cache) Len() int { return c.items.ItemCount() }

// Get is the typed form of Cache.Fetch.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error)) (T, Meta, error) {
	var zero T
	raw, meta, err := c.Fetch(ctx, key, func(ctx context.Context) (interface{}, error) {
		return fetch(ctx)
	})
	if raw == nil {
		return zero, meta, err
	}
	typed, ok := raw.(T)
	if !ok {
		return zero, meta, err
	}
	return typed, meta, err
}
