package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBytesCache implements BytesCache on a shared Redis client so
// response caching survives restarts and is shared across replicas.
type RedisBytesCache struct {
	cli    *redis.Client
	prefix string
}

func NewRedisBytesCache(cli *redis.Client, prefix string) *RedisBytesCache {
	if prefix == "" {
		prefix = "allocdesk:resp"
	}
	return &RedisBytesCache{cli: cli, prefix: prefix}
}

func (r *RedisBytesCache) GetBytes(key string) ([]byte, bool, error) {
	b, err := r.cli.Get(context.Background(), r.prefix+":"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisBytesCache) SetBytes(key string, value []byte, ttl time.Duration) error {
	return r.cli.Set(context.Background(), r.prefix+":"+key, value, ttl).Err()
}
