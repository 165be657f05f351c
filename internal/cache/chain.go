package cache

import (
	"context"
	"loc-api/internal/logger"
	"loc-api/internal/metrics"
)

// Tier：具名缓存层，名称用于日志与指标标签
type Tier struct {
	Name  string
	Store Store
}

// 文档注释：多级缓存组合
// 背景：按“内存 -> 持久层”的固定顺序读取；命中较慢层时回填前面的层，后续读取走内存。
// 约束：某层读错误视为该层未命中并继续下一层；写入对所有层执行，返回首个错误但不中断其余层。
type Chain struct {
	tiers []Tier
}

func NewChain(tiers ...Tier) *Chain {
	c := &Chain{}
	for _, t := range tiers {
		if t.Store != nil {
			c.tiers = append(c.tiers, t)
		}
	}
	return c
}

func (c *Chain) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for i, t := range c.tiers {
		b, ok, err := t.Store.Get(ctx, key)
		if err != nil {
			metrics.CacheErrorsTotal.WithLabelValues(t.Name).Inc()
			logger.L().Warn("cache_read_error", "tier", t.Name, "key", key, "err", err)
			continue
		}
		if !ok {
			metrics.CacheMissesTotal.WithLabelValues(t.Name).Inc()
			continue
		}
		metrics.CacheHitsTotal.WithLabelValues(t.Name).Inc()
		logger.L().Debug("cache_hit", "tier", t.Name, "key", key)
		for j := 0; j < i; j++ {
			if err := c.tiers[j].Store.Set(ctx, key, b); err != nil {
				metrics.CacheErrorsTotal.WithLabelValues(c.tiers[j].Name).Inc()
			}
		}
		return b, true, nil
	}
	return nil, false, nil
}

func (c *Chain) Set(ctx context.Context, key string, val []byte) error {
	var first error
	for _, t := range c.tiers {
		if err := t.Store.Set(ctx, key, val); err != nil {
			metrics.CacheErrorsTotal.WithLabelValues(t.Name).Inc()
			logger.L().Warn("cache_write_error", "tier", t.Name, "key", key, "err", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (c *Chain) Delete(ctx context.Context, key string) error {
	var first error
	for _, t := range c.tiers {
		if err := t.Store.Delete(ctx, key); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Tiers：返回层名称，供启动日志输出缓存栈
func (c *Chain) Tiers() []string {
	out := make([]string, 0, len(c.tiers))
	for _, t := range c.tiers {
		out = append(out, t.Name)
	}
	return out
}
