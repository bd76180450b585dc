package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/juju/errors"
	"github.com/redis/go-redis/v9"
)

const (
	noncePrefix = "nonce:"
	cachePrefix = "cache:"

	// NonceTTL bounds how long a wallet login challenge stays valid.
	NonceTTL = 5 * time.Minute
)

// NewRedis connects to url. An empty url disables Redis and returns nil.
func NewRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Annotate(err, "redis")
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Annotate(err, "redis ping")
	}
	return rdb, nil
}

func SetNonce(ctx context.Context, rdb *redis.Client, drepID, nonce string) error {
	return rdb.Set(ctx, noncePrefix+drepID, nonce, NonceTTL).Err()
}

// GetAndDelNonce consumes the challenge so it can be used once.
func GetAndDelNonce(ctx context.Context, rdb *redis.Client, drepID string) (string, error) {
	return rdb.GetDel(ctx, noncePrefix+drepID).Result()
}

// CacheGet decodes a cached JSON value into out. A miss returns false. An
// entry that does not decode is reported as a miss with the error, and out
// must then be treated as garbage.
func CacheGet(ctx context.Context, rdb *redis.Client, key string, out any) (bool, error) {
	if rdb == nil {
		return false, nil
	}
	raw, err := rdb.Get(ctx, cachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, errors.Annotatef(err, "decode cached %s", key)
	}
	return true, nil
}

func CacheSet(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	if rdb == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return rdb.Set(ctx, cachePrefix+key, raw, ttl).Err()
}

func CacheDel(ctx context.Context, rdb *redis.Client, keys ...string) error {
	if rdb == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = cachePrefix + k
	}
	return rdb.Del(ctx, full...).Err()
}
