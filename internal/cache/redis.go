package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：Redis 缓存层
// 背景：多实例部署共享同一份数据集快照；ttl<=0 表示不过期。
// 约束：键统一加前缀，避免与同库其他业务冲突。
type Redis struct {
	rc     *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedis(rc *redis.Client, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = "locapi:"
	}
	return &Redis{rc: rc, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rc.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, val []byte) error {
	return r.rc.Set(ctx, r.prefix+key, val, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rc.Del(ctx, r.prefix+key).Err()
}
