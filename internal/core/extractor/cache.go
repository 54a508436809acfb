package extractor

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// DetailsCache stores video metadata between requests. Audio URLs never
// go through it: they expire upstream and are resolved per request.
type DetailsCache interface {
	Get(ctx context.Context, id string) (*VideoDetails, bool)
	Set(ctx context.Context, id string, details *VideoDetails)
}

// NewDetailsCache returns a Redis-backed cache when addr is reachable and
// an in-memory one otherwise.
func NewDetailsCache(ctx context.Context, addr string, ttl time.Duration) DetailsCache {
	if addr == "" {
		return NewMemoryCache(ttl)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Redis not available at %s, using in-memory details cache: %v", addr, err)
		client.Close()
		return NewMemoryCache(ttl)
	}

	log.Printf("Redis details cache connected at %s", addr)
	return &redisCache{client: client, ttl: ttl}
}

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func detailsKey(id string) string {
	return "details:" + id
}

func (c *redisCache) Get(ctx context.Context, id string) (*VideoDetails, bool) {
	val, err := c.client.Get(ctx, detailsKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis get %s failed: %v", id, err)
		}
		return nil, false
	}
	var details VideoDetails
	if err := json.Unmarshal(val, &details); err != nil {
		return nil, false
	}
	return &details, true
}

func (c *redisCache) Set(ctx context.Context, id string, details *VideoDetails) {
	data, err := json.Marshal(details)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, detailsKey(id), data, c.ttl).Err(); err != nil {
		log.Printf("Redis set %s failed: %v", id, err)
	}
}

// MemoryCache is a process-local DetailsCache with per-entry expiry
type MemoryCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time

	nextSweep time.Time
}

type memoryEntry struct {
	details   VideoDetails
	expiresAt time.Time
}

// NewMemoryCache creates an in-memory cache
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		ttl:     ttl,
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, id string) (*VideoDetails, bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return nil, false
	}
	d := e.details
	return &d, true
}

func (c *MemoryCache) Set(_ context.Context, id string, details *VideoDetails) {
	if details == nil {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	// expired entries are dropped at most once per TTL
	if !now.Before(c.nextSweep) {
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
		c.nextSweep = now.Add(c.ttl)
	}
	c.entries[id] = memoryEntry{details: *details, expiresAt: now.Add(c.ttl)}
}
