package inventory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a cached lookup stays fresh.
const DefaultCacheTTL = 5 * time.Minute

// DefaultLoadTimeout bounds one shared lookup of the underlying snapshot.
const DefaultLoadTimeout = 2 * time.Minute

type cacheEntry struct {
	value   any
	expires time.Time
}

// Cache memoizes lookups of an underlying Snapshot. Concurrent lookups of
// the same key share a single call to the underlying snapshot.
type Cache struct {
	next Snapshot
	ttl         time.Duration
	loadTimeout time.Duration
	now         func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// NewCache wraps next. A non-positive ttl means DefaultCacheTTL.
func NewCache(next Snapshot, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{
		next:        next,
		ttl:         ttl,
		loadTimeout: DefaultLoadTimeout,
		now:         time.Now,
		entries:     make(map[string]cacheEntry),
	}
}

// Invalidate drops every cached entry.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func always(any) bool { return true }

// lookup returns the cached value for key or loads it. Values for which
// keep returns false are shared with concurrent callers but not stored.
//
// The shared load runs on a context detached from any one caller and
// bounded by loadTimeout. Each caller waits only as long as its own ctx, so
// one caller giving up never fails the others joined to the same flight.
func (c *Cache) lookup(ctx context.Context, key string, keep func(any) bool, load func(context.Context) (any, error)) (any, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e.value, nil
	}

	flight := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		v, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		if keep(v) {
			c.mu.Lock()
			c.entries[key] = cacheEntry{value: v, expires: c.now().Add(c.ttl)}
			c.mu.Unlock()
		}
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-flight:
		return res.Val, res.Err
	}
}

func (c *Cache) Networks(ctx context.Context, provider string) ([]Network, error) {
	v, err := c.lookup(ctx, "networks/"+provider, always, func(ctx context.Context) (any, error) {
		return c.next.Networks(ctx, provider)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Network)), nil
}

func (c *Cache) Subnets(ctx context.Context, provider string) ([]Subnet, error) {
	v, err := c.lookup(ctx, "subnets/"+provider, always, func(ctx context.Context) (any, error) {
		return c.next.Subnets(ctx, provider)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Subnet)), nil
}

func (c *Cache) DefaultKeyPair(ctx context.Context, account string) (string, error) {
	v, err := c.lookup(ctx, "keypair/"+account, always, func(ctx context.Context) (any, error) {
		return c.next.DefaultKeyPair(ctx, account)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *Cache) Image(ctx context.Context, appVersion, account string, regions []string) (*NamedImage, error) {
	sorted := slices.Clone(regions)
	slices.Sort(sorted)
	key := fmt.Sprintf("image/%s/%s/%s", account, appVersion, strings.Join(sorted, ","))
	// Only images covering every requested region are kept.
	complete := func(v any) bool {
		img := v.(*NamedImage)
		if img == nil {
			return false
		}
		for _, r := range sorted {
			if _, ok := img.ImageIDs[r]; !ok {
				return false
			}
		}
		return true
	}
	v, err := c.lookup(ctx, key, complete, func(ctx context.Context) (any, error) {
		return c.next.Image(ctx, appVersion, account, sorted)
	})
	if err != nil {
		return nil, err
	}
	img := v.(*NamedImage)
	if img == nil {
		return nil, nil
	}
	out := img.Clone()
	return &out, nil
}

func (c *Cache) Certificates(ctx context.Context, account string) ([]Certificate, error) {
	v, err := c.lookup(ctx, "certificates/"+account, always, func(ctx context.Context) (any, error) {
		return c.next.Certificates(ctx, account)
	})
	if err != nil {
		return nil, err
	}
	return slices.Clone(v.([]Certificate)), nil
}
