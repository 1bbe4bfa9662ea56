package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// probeCache provides 2-tier caching for drive existence probes:
// L1 in-memory + L2 Redis. Re-importing the same folder within the TTL
// skips repeat HEAD traffic for ids that already resolved.
var probeCache *tieredCache

var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

// probeResult is the cached outcome of validating one drive file id.
type probeResult struct {
	Valid bool   `json:"valid"`
	URL   string `json:"url,omitempty"`
	Name  string `json:"name,omitempty"`
}

// tieredCache implements L1 (memory) + L2 (Redis) caching.
type tieredCache struct {
	l1         sync.Map // id → *cacheEntry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// InitCache sets up the probe cache. redisURL can be empty to disable L2.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	c := &tieredCache{ttl: ttl, maxEntries: maxEntries}

	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			slog.Warn("probe cache: bad redis URL, running L1-only", slog.Any("error", err))
		} else {
			rdb := redis.NewClient(opts)
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := rdb.Ping(pingCtx).Err(); err != nil {
				slog.Warn("probe cache: redis unreachable, running L1-only", slog.Any("error", err))
			} else {
				c.rdb = rdb
			}
		}
	}

	probeCache = c

	if cleanupInterval > 0 {
		go c.cleanupLoop(cleanupInterval)
	}
}

// CacheStats returns probe cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

func cacheKey(id string) string { return "ingest:probe:" + id }

func cacheGetProbe(ctx context.Context, id string) (probeResult, bool) {
	if probeCache == nil {
		return probeResult{}, false
	}
	var pr probeResult

	if v, ok := probeCache.l1.Load(id); ok {
		e := v.(*cacheEntry)
		if time.Now().Before(e.expiresAt) {
			if json.Unmarshal(e.data, &pr) == nil {
				cacheHits.Add(1)
				return pr, true
			}
		}
		probeCache.l1.Delete(id)
	}

	if probeCache.rdb != nil {
		data, err := probeCache.rdb.Get(ctx, cacheKey(id)).Bytes()
		if err == nil && json.Unmarshal(data, &pr) == nil {
			// promote to L1
			probeCache.l1.Store(id, &cacheEntry{data: data, expiresAt: time.Now().Add(probeCache.ttl)})
			cacheHits.Add(1)
			return pr, true
		}
	}

	cacheMisses.Add(1)
	return probeResult{}, false
}

func cacheSetProbe(ctx context.Context, id string, pr probeResult) {
	if probeCache == nil {
		return
	}
	data, err := json.Marshal(pr)
	if err != nil {
		return
	}
	probeCache.l1.Store(id, &cacheEntry{data: data, expiresAt: time.Now().Add(probeCache.ttl)})
	if probeCache.rdb != nil {
		if err := probeCache.rdb.Set(ctx, cacheKey(id), data, probeCache.ttl).Err(); err != nil {
			slog.Debug("probe cache: redis set failed", slog.Any("error", err))
		}
	}
}

// cleanupLoop evicts expired L1 entries and bounds the entry count.
func (c *tieredCache) cleanupLoop(interval time.Duration) {
	for range time.Tick(interval) {
		now := time.Now()
		count := 0
		c.l1.Range(func(k, v any) bool {
			if now.After(v.(*cacheEntry).expiresAt) {
				c.l1.Delete(k)
				return true
			}
			count++
			if c.maxEntries > 0 && count > c.maxEntries {
				c.l1.Delete(k)
			}
			return true
		})
	}
}
