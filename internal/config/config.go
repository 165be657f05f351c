// 包 config：集中读取 .env 与环境变量，产出服务与 CLI 共用的配置结构
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultPublicSources：默认公共数据集（GitHub 列表、CDN 包、社区数据集），按此顺序合并
var DefaultPublicSources = []string{
	"https://raw.githubusercontent.com/bhanuc/indian-list/master/state-and-district.json",
	"https://cdn.jsdelivr.net/npm/india-state-district@1.0.0/india.json",
	"https://raw.githubusercontent.com/nisrulz/india_cities/master/states_and_districts.json",
}

type Config struct {
	Addr    string
	APIBase string

	BackendURL     string
	BackendTimeout time.Duration

	PublicSources []string
	PublicTimeout time.Duration

	ReferencePath string
	PinFallback   string

	CacheBackend string
	CacheDir     string
	CacheTTL     time.Duration
	SQLitePath   string

	AdminToken  string
	CORSOrigins []string

	RateLimitEnabled bool
	RateLimitQPS     int

	WarmupOnStart bool
	RefreshHour   int
}

// LoadDotenv：按固定顺序加载 .env 文件；缺失文件静默忽略
func LoadDotenv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// FromEnv：从环境变量构建配置，未设置或非法值回退到默认值
func FromEnv() Config {
	return Config{
		Addr:             envOr("ADDR", ":8080"),
		APIBase:          strings.TrimRight(envOr("API_BASE", "/api"), "/"),
		BackendURL:       strings.TrimRight(envOr("API_BASE_URL", "http://localhost:8000"), "/"),
		BackendTimeout:   envDuration("BACKEND_TIMEOUT", 30*time.Second),
		PublicSources:    envList("PUBLIC_SOURCES", DefaultPublicSources),
		PublicTimeout:    envDuration("PUBLIC_TIMEOUT", 30*time.Second),
		ReferencePath:    os.Getenv("REFERENCE_PATH"),
		PinFallback:      envOr("PIN_FALLBACK", "unfiltered"),
		CacheBackend:     strings.ToLower(envOr("CACHE_BACKEND", "file")),
		CacheDir:         envOr("CACHE_DIR", filepath.Join("data", "cache")),
		CacheTTL:         envDuration("CACHE_TTL", 0),
		SQLitePath:       envOr("SQLITE_PATH", filepath.Join("data", "loc-api.db")),
		AdminToken:       os.Getenv("ADMIN_TOKEN"),
		CORSOrigins:      envList("CORS_ORIGINS", []string{"*"}),
		RateLimitEnabled: envBool("RATE_LIMIT_ENABLED", false),
		RateLimitQPS:     envInt("RATE_LIMIT_QPS", 200),
		WarmupOnStart:    envBool("WARMUP_ON_START", false),
		RefreshHour:      envInt("REFRESH_HOUR", 3),
	}
}

// Load：LoadDotenv + FromEnv
func Load() Config {
	LoadDotenv()
	return FromEnv()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}

// envDuration：支持 Go 时长文本（30s、5m）与纯秒数
func envDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d >= 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 {
		return time.Duration(n) * time.Second
	}
	return def
}

// envList：逗号分隔列表，去除空白项；结果为空时回退默认
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}
