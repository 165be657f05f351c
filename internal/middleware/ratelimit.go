package middleware

import (
	"loc-api/internal/logger"
	"net/http"

	"golang.org/x/time/rate"
)

// 文档注释：令牌桶限流中间件（每秒）
// 背景：在流量峰值时对入口进行限速，避免后端与公共数据源被冷启动请求放大；按配置开关与速率。
// 约束：不做排队，超限直接返回 429；突发容量等于每秒速率。
func RateLimit(qps int, next http.Handler) http.Handler {
	if qps <= 0 {
		return next
	}
	lim := rate.NewLimiter(rate.Limit(qps), qps)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !lim.Allow() {
			logger.L().Debug("rate_limited", "path", r.URL.Path)
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
