// Package cache provides the in-memory response cache used to short-circuit
// repeated embeddings requests.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000

	sweepEvery = time.Minute
)

type entry struct {
	value     any
	expiresAt time.Time
}

// MemoryCache is a TTL cache over a concurrent map. Expired entries are
// dropped lazily on read and by a background sweep; when the map grows past
// its bound the sweep also evicts the entries closest to expiry.
type MemoryCache struct {
	entries    *xsync.Map[string, entry]
	ttl        time.Duration
	maxEntries int

	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	c := &MemoryCache{
		entries:    xsync.NewMap[string, entry](),
		ttl:        ttl,
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go c.sweepRoutine()
	return c
}

func (c *MemoryCache) Get(key string) (any, bool) {
	e, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.entries.Delete(key)
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, value any) {
	c.entries.Store(key, entry{value: value, expiresAt: time.Now().Add(c.ttl)})
}

func (c *MemoryCache) Len() int {
	return c.entries.Size()
}

func (c *MemoryCache) sweepRoutine() {
	ticker := time.NewTicker(sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep(time.Now())
		}
	}
}

func (c *MemoryCache) sweep(now time.Time) {
	c.entries.Range(func(key string, e entry) bool {
		if now.After(e.expiresAt) {
			c.entries.Delete(key)
		}
		return true
	})

	over := c.entries.Size() - c.maxEntries
	if over <= 0 {
		return
	}
	type candidate struct {
		key       string
		expiresAt time.Time
	}
	all := make([]candidate, 0, c.entries.Size())
	c.entries.Range(func(key string, e entry) bool {
		all = append(all, candidate{key: key, expiresAt: e.expiresAt})
		return true
	})
	sort.Slice(all, func(i, j int) bool { return all[i].expiresAt.Before(all[j].expiresAt) })
	for i := 0; i < over && i < len(all); i++ {
		c.entries.Delete(all[i].key)
	}
}

func (c *MemoryCache) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
	})
}

// Key derives the cache key for a model+payload pair.
func Key(model, payload string) string {
	sum := sha256.Sum256([]byte(model + "\x00" + payload))
	return hex.EncodeToString(sum[:])
}
