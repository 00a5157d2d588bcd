package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// SignedURLCache keeps recently issued signed URLs in redis so repeat
// views of the same object within the cache window skip the signer.
// The cache TTL must stay below the URL's own expiry; a cached entry is
// always still valid when served.
type SignedURLCache struct {
	cli *redis.Client
}

func NewSignedURLCache(addr, password string, db int) (*SignedURLCache, error) {
	r := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &SignedURLCache{cli: r}, nil
}

func (c *SignedURLCache) Close() error {
	return c.cli.Close()
}

// Get returns the cached URL, or "" on a miss.
func (c *SignedURLCache) Get(ctx context.Context, key string) (string, error) {
	s, err := c.cli.Get(ctx, "surl:"+key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s, nil
}

func (c *SignedURLCache) Set(ctx context.Context, key, url string, ttl time.Duration) error {
	return c.cli.Set(ctx, "surl:"+key, url, ttl).Err()
}
