package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// 文档注释：进程内缓存层
// 背景：作为多级缓存的第一层，避免每次请求都读取文件或远端；ttl<=0 表示永不过期。
type Memory struct {
	c *gocache.Cache
}

func NewMemory(ttl time.Duration) *Memory {
	exp := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		exp = ttl
		cleanup = 2 * ttl
	}
	return &Memory{c: gocache.New(exp, cleanup)}
}

func (m *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), b...), true, nil
}

func (m *Memory) Set(ctx context.Context, key string, val []byte) error {
	m.c.Set(key, append([]byte(nil), val...), gocache.DefaultExpiration)
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.c.Delete(key)
	return nil
}
