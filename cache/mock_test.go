package cache

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// mockClient is an in-memory stand-in for *redis.Client, modeled on
// storage/redis_mock_test.go's MockRedisClient.
type mockClient struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockClient() *mockClient {
	return &mockClient{data: make(map[string]string)}
}

func (m *mockClient) Get(ctx context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if v, ok := m.data[key]; ok {
		cmd.SetVal(v)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (m *mockClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch v := value.(type) {
	case string:
		m.data[key] = v
	case []byte:
		m.data[key] = string(v)
	}
	cmd := redis.NewStatusCmd(ctx, "set", key)
	cmd.SetVal("OK")
	return cmd
}

func (m *mockClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.data[k]; ok {
			delete(m.data, k)
			n++
		}
	}
	cmd := redis.NewIntCmd(ctx, "del")
	cmd.SetVal(n)
	return cmd
}

func (m *mockClient) Close() error { return nil }
