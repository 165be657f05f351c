// 包 store: SQL 数据访问层，提供数据集快照的键值持久化与查询统计读写；兼容 Postgres 与 SQLite
package store

import (
	"context"
	"database/sql"
	"errors"
	"loc-api/internal/logger"
	"strconv"
	"strings"
	"time"
)

// Dialect：占位符风格；Postgres 使用 $n，SQLite 使用 ?
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Store: 数据库访问入口，持有连接池；实现 cache.Store 契约
type Store struct {
	db      *sql.DB
	dialect Dialect
}

func AttachDB(db *sql.DB, d Dialect) *Store { return &Store{db: db, dialect: d} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

// q: 将 ? 占位符按方言改写
func (s *Store) q(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get: 读取快照；不存在返回未命中
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, s.q("SELECT payload FROM _loc_cache WHERE cache_key=?"), key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	logger.L().Debug("db_cache_hit", "key", key, "bytes", len(payload))
	return []byte(payload), true, nil
}

// Set: 覆盖写入快照（后写者胜出）
func (s *Store) Set(ctx context.Context, key string, val []byte) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO _loc_cache(cache_key, payload, updated_at)
        VALUES(?, ?, ?)
        ON CONFLICT (cache_key) DO UPDATE SET payload=EXCLUDED.payload, updated_at=EXCLUDED.updated_at`),
		key, string(val), time.Now().Unix())
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.q("DELETE FROM _loc_cache WHERE cache_key=?"), key)
	return err
}

// IncrStats: 成功解析后递增总计、当日与分层级计数；全部语句都会执行，返回第一个错误，由调用方决定是否忽略
func (s *Store) IncrStats(ctx context.Context, level string) error {
	type stmt struct {
		query string
		args  []any
	}
	day := time.Now().Format("2006-01-02")
	stmts := []stmt{
		{"UPDATE _loc_stats_total SET total_queries=total_queries+1 WHERE id=1", nil},
		{s.q("INSERT INTO _loc_stats_daily(day, queries) VALUES(?, 1) ON CONFLICT (day) DO UPDATE SET queries=_loc_stats_daily.queries+1"), []any{day}},
	}
	if level != "" {
		stmts = append(stmts, stmt{s.q("INSERT INTO _loc_stats_level(level, queries) VALUES(?, 1) ON CONFLICT (level) DO UPDATE SET queries=_loc_stats_level.queries+1"), []any{level}})
	}
	var first error
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st.query, st.args...); err != nil && first == nil {
			first = err
		}
	}
	logger.L().Debug("stats_incr", "level", level, "err", first)
	return first
}

// Totals: 统计返回结构，包含累计、当日与分层级查询次数
type Totals struct {
	Total   int64            `json:"total"`
	Today   int64            `json:"today"`
	ByLevel map[string]int64 `json:"by_level"`
}

// GetTotals: 读取累计、当日与分层级计数
func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	t := Totals{ByLevel: map[string]int64{}}
	_ = s.db.QueryRowContext(ctx, "SELECT total_queries FROM _loc_stats_total WHERE id=1").Scan(&t.Total)
	_ = s.db.QueryRowContext(ctx, s.q("SELECT queries FROM _loc_stats_daily WHERE day=?"), time.Now().Format("2006-01-02")).Scan(&t.Today)
	rows, err := s.db.QueryContext(ctx, "SELECT level, queries FROM _loc_stats_level")
	if err != nil {
		return &t, err
	}
	defer rows.Close()
	for rows.Next() {
		var lv string
		var n int64
		if err := rows.Scan(&lv, &n); err != nil {
			return &t, err
		}
		t.ByLevel[lv] = n
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today)
	return &t, rows.Err()
}
