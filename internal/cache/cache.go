// 包 cache：解析器的可注入持久缓存；内存、文件、Redis、SQL 多种实现共享同一契约，可经 Chain 组合成多级缓存
package cache

import "context"

// 文档注释：缓存契约
// 背景：解析器只依赖 get/set（外加失效用的 delete），测试可注入内存实现而不触碰真实持久化。
// 约束：Get 未命中返回 (nil, false, nil)；读错误由调用方按未命中处理；值为不透明字节，序列化由调用方负责。
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte) error
	Delete(ctx context.Context, key string) error
}
