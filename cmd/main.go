// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"loc-api/internal/api"
	"loc-api/internal/app"
	"loc-api/internal/config"
	"loc-api/internal/logger"
	"loc-api/internal/middleware"
	"loc-api/internal/warmup"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
)

func main() {
	cfg := config.Load()
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	l.Debug("config_api_base", "base", cfg.APIBase, "backend", cfg.BackendURL, "cache", cfg.CacheBackend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		l.Error("app_build_error", "err", err)
		os.Exit(1)
	}
	defer a.Close()

	deps := api.Deps{Resolver: a.Resolver, AdminToken: cfg.AdminToken}
	if a.Stats != nil {
		deps.Stats = a.Stats
	}
	if cfg.AdminToken == "" {
		l.Info("admin_endpoints_disabled")
	}
	r := mux.NewRouter()
	api.BuildRoutes(r.PathPrefix(cfg.APIBase).Subrouter(), deps)

	// 背景：冷启动降级快照会被长期复用，后台按周刷新
	warmup.Start(ctx, a.Resolver, cfg.RefreshHour, cfg.WarmupOnStart)

	handler := middleware.Wrap(r, middleware.Options{
		CORSOrigins:      cfg.CORSOrigins,
		RateLimitEnabled: cfg.RateLimitEnabled,
		RateLimitQPS:     cfg.RateLimitQPS,
	})
	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		// 冷启动请求可能等待后端与公共数据源各自的超时
		WriteTimeout: cfg.BackendTimeout + cfg.PublicTimeout + 10*time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		l.Info("shutdown_begin")
		_ = s.Shutdown(sctx)
	}()
	l.Info("listening", "addr", cfg.Addr)
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		l.Error("listen_error", "err", err)
		os.Exit(1)
	}
	l.Info("shutdown_done")
}
