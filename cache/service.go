package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PrefixFeed groups cached feed pages; a new or boosted video invalidates
// them all.
const PrefixFeed = "feed"

// PrefixMetrics scopes one business's derived search metrics, so a review
// write invalidates exactly that business.
func PrefixMetrics(businessID int) string {
	return "metrics:" + strconv.Itoa(businessID)
}

// Service memoizes derived data (per-business search metrics, feed pages)
// in Redis. It is passed by reference to handlers rather than living as
// process-global state. Every key is registered in a per-prefix index set,
// so invalidation touches an explicit key set instead of scanning key
// patterns.
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func indexKey(prefix string) string {
	return "idx:" + prefix
}

// Get unmarshals the cached value for prefix:key into dest. The boolean is
// false on a miss.
func (s *Service) Get(ctx context.Context, prefix, key string, dest any) (bool, error) {
	data, err := s.rdb.Get(ctx, prefix+":"+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores value as JSON under prefix:key with the given TTL and records
// the key in the prefix index. The index set expires alongside the values
// it tracks.
func (s *Service) Set(ctx context.Context, prefix, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	full := prefix + ":" + key
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, full, data, ttl)
	pipe.SAdd(ctx, indexKey(prefix), full)
	pipe.Expire(ctx, indexKey(prefix), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Invalidate removes every key registered under the prefix.
func (s *Service) Invalidate(ctx context.Context, prefix string) error {
	members, err := s.rdb.SMembers(ctx, indexKey(prefix)).Result()
	if err != nil {
		return err
	}

	keys := append(members, indexKey(prefix))
	return s.rdb.Del(ctx, keys...).Err()
}

// Delete removes a single key under the prefix.
func (s *Service) Delete(ctx context.Context, prefix, key string) error {
	full := prefix + ":" + key
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, full)
	pipe.SRem(ctx, indexKey(prefix), full)
	_, err := pipe.Exec(ctx)
	return err
}
