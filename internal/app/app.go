// 包 app：按配置装配缓存层、数据源、后端客户端与解析器；服务入口与 CLI 共用
package app

import (
	"context"
	"database/sql"
	"fmt"
	"loc-api/internal/backend"
	"loc-api/internal/cache"
	"loc-api/internal/config"
	"loc-api/internal/locations"
	"loc-api/internal/logger"
	"loc-api/internal/migrate"
	"loc-api/internal/sources"
	"loc-api/internal/store"
	"loc-api/internal/utils"
	"net/http"
)

// App：装配完成的依赖集合；Close 释放数据库与 Redis 连接
type App struct {
	Resolver *locations.Resolver
	Cache    *cache.Chain
	Stats    *store.Store
	Sources  *sources.Manager

	closers []func() error
}

// 文档注释：按配置构建依赖
// 背景：缓存恒定包含进程内一层，再按 CACHE_BACKEND 追加持久层（file/redis/postgres/sqlite）；SQL 持久层同时承担查询统计。
// 约束：持久层打开失败返回错误由调用方决定退出；Redis 探活失败只记录日志，读写失败会被视为未命中。
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	l := logger.L()
	a := &App{}
	tiers := []cache.Tier{{Name: "memory", Store: cache.NewMemory(cfg.CacheTTL)}}

	switch cfg.CacheBackend {
	case "memory", "":
	case "file":
		fc, err := cache.NewFile(cfg.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("file cache: %w", err)
		}
		tiers = append(tiers, cache.Tier{Name: "file", Store: fc})
	case "redis":
		rc := utils.OpenRedisFromEnv()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
		a.closers = append(a.closers, rc.Close)
		tiers = append(tiers, cache.Tier{Name: "redis", Store: cache.NewRedis(rc, "", cfg.CacheTTL)})
	case "postgres", "sqlite":
		st, err := openSQL(cfg)
		if err != nil {
			return nil, err
		}
		a.Stats = st
		a.closers = append(a.closers, st.Close)
		tiers = append(tiers, cache.Tier{Name: cfg.CacheBackend, Store: st})
	default:
		return nil, fmt.Errorf("unknown CACHE_BACKEND %q", cfg.CacheBackend)
	}
	a.Cache = cache.NewChain(tiers...)
	l.Info("cache_tiers", "tiers", a.Cache.Tiers())

	ref, err := locations.LoadReference(cfg.ReferencePath)
	if err != nil {
		return nil, fmt.Errorf("reference: %w", err)
	}

	pub := &http.Client{Timeout: cfg.PublicTimeout}
	a.Sources = sources.NewManager()
	for _, u := range cfg.PublicSources {
		a.Sources.Register(sources.NewHTTP(u, pub, cfg.PublicTimeout))
	}

	be := backend.NewClient(cfg.BackendURL, &http.Client{Timeout: cfg.BackendTimeout})
	a.Resolver = locations.New(locations.Options{
		Backend:     be,
		Sources:     a.Sources,
		Cache:       a.Cache,
		Reference:   ref,
		PinFallback: locations.ParsePinFallback(cfg.PinFallback),
	})
	return a, nil
}

func openSQL(cfg config.Config) (*store.Store, error) {
	var (
		db      *sql.DB
		err     error
		dialect store.Dialect
	)
	if cfg.CacheBackend == "postgres" {
		db, err = utils.OpenPostgresFromEnv()
		dialect = store.Postgres
	} else {
		db, err = utils.OpenSQLite(cfg.SQLitePath)
		dialect = store.SQLite
	}
	if err != nil {
		return nil, fmt.Errorf("%s open: %w", cfg.CacheBackend, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s ping: %w", cfg.CacheBackend, err)
	}
	if err := migrate.EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}
	logger.L().Info("db_open_ok", "backend", cfg.CacheBackend)
	return store.AttachDB(db, dialect), nil
}

// Close：逆序关闭，返回第一个错误
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var _ cache.Store = (*store.Store)(nil)
