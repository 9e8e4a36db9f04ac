package cases

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LinkCache remembers the latest workshop link token per case so repeated
// "get me the workshop link" calls hand out the same shareable token instead
// of minting a fresh one each time.
type LinkCache interface {
	Get(ctx context.Context, caseID string) (string, error)
	Set(ctx context.Context, caseID, token string, ttl time.Duration) error
}

var ErrLinkNotCached = errors.New("cases: link not cached")

func workshopLinkKey(caseID string) string {
	return fmt.Sprintf("case:%s:workshop_link", caseID)
}

// RedisLinkCache stores tokens in redis with a TTL clamped to the token's
// remaining life, so the cache can never outlive the link it holds.
type RedisLinkCache struct {
	rdb *redis.Client
}

func NewRedisLinkCache(rdb *redis.Client) *RedisLinkCache {
	return &RedisLinkCache{rdb: rdb}
}

func (c *RedisLinkCache) Get(ctx context.Context, caseID string) (string, error) {
	tok, err := c.rdb.Get(ctx, workshopLinkKey(caseID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrLinkNotCached
	}
	if err != nil {
		return "", err
	}
	return tok, nil
}

func (c *RedisLinkCache) Set(ctx context.Context, caseID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return c.rdb.Set(ctx, workshopLinkKey(caseID), token, ttl).Err()
}

// MemoryLinkCache is a LinkCache for tests. TTLs are honored against the
// injected clock.
type MemoryLinkCache struct {
	Clock func() time.Time

	mu      sync.Mutex
	entries map[string]memoryLink
}

type memoryLink struct {
	token   string
	expires time.Time
}

func NewMemoryLinkCache(clock func() time.Time) *MemoryLinkCache {
	if clock == nil {
		clock = time.Now
	}
	return &MemoryLinkCache{Clock: clock, entries: map[string]memoryLink{}}
}

func (c *MemoryLinkCache) Get(ctx context.Context, caseID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[workshopLinkKey(caseID)]
	if !ok || !c.Clock().Before(e.expires) {
		return "", ErrLinkNotCached
	}
	return e.token, nil
}

func (c *MemoryLinkCache) Set(ctx context.Context, caseID, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[workshopLinkKey(caseID)] = memoryLink{token: token, expires: c.Clock().Add(ttl)}
	return nil
}
