package migrate

import (
	"database/sql"
	"loc-api/internal/logger"
)

// 背景：首次运行自动创建缓存与统计表，Postgres 与 SQLite 共用同一组语句
// 约束：仅使用两者共同支持的类型与 IF NOT EXISTS / ON CONFLICT 语法
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _loc_cache (
            cache_key TEXT PRIMARY KEY,
            payload TEXT NOT NULL,
            updated_at BIGINT NOT NULL
        )`,
		`CREATE TABLE IF NOT EXISTS _loc_stats_total (
            id INT PRIMARY KEY,
            total_queries BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _loc_stats_daily (
            day TEXT PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _loc_stats_level (
            level TEXT PRIMARY KEY,
            queries BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _loc_stats_total(id, total_queries)
         VALUES(1, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
