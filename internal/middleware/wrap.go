// 包 middleware：入口中间件（panic 恢复、跨域、限流、访问日志）的装配
package middleware

import (
	"loc-api/internal/logger"
	"net/http"
	"slices"

	"github.com/rs/cors"
)

type Options struct {
	CORSOrigins      []string
	RateLimitEnabled bool
	RateLimitQPS     int
}

// CORS：前端 SPA 跨域访问；origins 为空或包含 * 时允许任意来源且不允许携带凭据
func CORS(origins []string, next http.Handler) http.Handler {
	wildcard := len(origins) == 0 || slices.Contains(origins, "*")
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Token", logger.RequestIDHeader},
		ExposedHeaders:   []string{logger.RequestIDHeader},
		AllowCredentials: !wildcard,
		MaxAge:           600,
	})
	return c.Handler(next)
}

// 文档注释：组装入口中间件
// 约束：由外到内依次为 访问日志 → 恢复 → 跨域 → 限流；被限流与 panic 的请求同样记录访问日志。
func Wrap(next http.Handler, o Options) http.Handler {
	h := next
	if o.RateLimitEnabled {
		h = RateLimit(o.RateLimitQPS, h)
	}
	h = CORS(o.CORSOrigins, h)
	h = Recovery(h)
	return logger.AccessMiddleware(logger.L())(h)
}
