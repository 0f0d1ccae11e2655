// Package cache is a thin read-through cache of serialized snapshots in
// front of persist.SnapshotStore, wrapping redis/go-redis/v9 the way
// storage/redis_client.go's RedisStore wraps it for Redis-style keys.
// Unlike RedisStore, which exposes the full Redis command surface
// (strings, counters, lists, sets, hashes, sorted sets) because it is
// itself the data store, SnapshotCache only ever needs to get, put, and
// invalidate one blob per document — see DESIGN.md for which of
// RedisStore's methods this intentionally does not carry forward.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// client is the narrow slice of *redis.Client's surface SnapshotCache
// actually needs — Get/Set/Del, the same three RedisClient started from
// before storage/redis_client.go grew the rest of the Redis command set
// onto it. A MockClient in tests satisfies this without a live server,
// the same way storage/redis_mock_test.go's MockRedisClient satisfies
// the teacher's much larger RedisClient interface.
type client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// SnapshotCache caches serialized document snapshots, keyed by document
// id, with a TTL so a cache entry that nobody refreshes eventually
// falls out rather than drifting from persist.SnapshotStore forever.
type SnapshotCache struct {
	client client
	ttl    time.Duration
	prefix string
}

// New connects to a Redis instance at addr/db and returns a
// SnapshotCache with the given entry TTL.
func New(addr string, db int, ttl time.Duration) (*SnapshotCache, error) {
	rc := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: connect to redis: %v", err)
	}
	return newWithClient(rc, ttl), nil
}

// newWithClient builds a SnapshotCache around an already-constructed
// client, letting tests substitute a mock.
func newWithClient(c client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: c, ttl: ttl, prefix: "jsoncrdt:snapshot:"}
}

func (c *SnapshotCache) key(docID string) string {
	return c.prefix + docID
}

// Get returns docID's cached snapshot bytes, if present and unexpired.
func (c *SnapshotCache) Get(ctx context.Context, docID string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(docID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %v", docID, err)
	}
	return data, true, nil
}

// Put stores data as docID's cached snapshot, resetting its TTL.
func (c *SnapshotCache) Put(ctx context.Context, docID string, data []byte) error {
	if err := c.client.Set(ctx, c.key(docID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache: put %s: %v", docID, err)
	}
	return nil
}

// Invalidate drops docID's cached snapshot, forcing the next Get to
// miss until something calls Put again. Used after a local mutation so
// stale readers don't see an old snapshot for the rest of the TTL.
func (c *SnapshotCache) Invalidate(ctx context.Context, docID string) error {
	if err := c.client.Del(ctx, c.key(docID)).Err(); err != nil {
		return fmt.Errorf("cache: invalidate %s: %v", docID, err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}
