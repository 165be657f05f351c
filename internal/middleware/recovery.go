package middleware

import (
	"loc-api/internal/logger"
	"net/http"
	"runtime/debug"
)

// Recovery：捕获处理器 panic，记录堆栈并返回 500
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.L().Error("panic_recovered", "err", err, "path", r.URL.Path, "stack", string(debug.Stack()))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal server error","code":500}`))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
