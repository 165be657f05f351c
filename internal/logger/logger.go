// 包 logger：进程级日志器的初始化与获取；级别与格式由环境变量控制，解析器、数据源与缓存各层共用
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// 默认日志器：进程级复用，测试中可通过 Use 替换
var defaultLogger atomic.Pointer[slog.Logger]

// ParseLevel：将 LOG_LEVEL 文本映射为 slog 级别，未知值回退到 info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Setup：按 LOG_LEVEL / LOG_FORMAT 初始化默认日志器
// 约束：输出固定为标准错误；json 以外的格式均按 text 处理
func Setup() *slog.Logger {
	return Use(New(os.Stderr, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))
}

// New：构建独立日志器，不影响默认实例；供 CLI 与测试定向输出
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Use：替换默认日志器并返回它
func Use(l *slog.Logger) *slog.Logger {
	defaultLogger.Store(l)
	return l
}

// L：获取默认日志器；未初始化时按环境变量即时 Setup
func L() *slog.Logger {
	if l := defaultLogger.Load(); l != nil {
		return l
	}
	return Setup()
}
