package sources

import (
	"context"
	"loc-api/internal/logger"
	"loc-api/internal/metrics"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome：单个来源的取回结果；Err 非空时 Body 无意义
type Outcome struct {
	Name string
	Body []byte
	Err  error
}

// 文档注释：公共数据源管理器
// 背景：按注册顺序保存来源；FetchAll 并发取回但按注册顺序返回，保证合并顺序稳定。
// 约束：单个来源失败不影响其他来源；线程安全读写。
type Manager struct {
	mu   sync.RWMutex
	list []Source
}

func NewManager(list ...Source) *Manager {
	m := &Manager{}
	for _, s := range list {
		m.Register(s)
	}
	return m
}

// Register：追加来源；nil 忽略
func (m *Manager) Register(s Source) {
	if s == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, s)
	if u, ok := s.(interface{ URL() string }); ok {
		logger.L().Info("source_registered", "name", s.Name(), "url", u.URL())
		return
	}
	logger.L().Info("source_registered", "name", s.Name())
}

func (m *Manager) Sources() []Source {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Source(nil), m.list...)
}

// FetchAll：并发取回全部来源
func (m *Manager) FetchAll(ctx context.Context) []Outcome {
	list := m.Sources()
	out := make([]Outcome, len(list))
	var g errgroup.Group
	for i, s := range list {
		i, s := i, s
		g.Go(func() error {
			t0 := time.Now()
			metrics.SourceRequestsTotal.WithLabelValues(s.Name()).Inc()
			b, err := s.Fetch(ctx)
			metrics.SourceDurationMs.WithLabelValues(s.Name()).Observe(float64(time.Since(t0).Milliseconds()))
			if err != nil {
				metrics.SourceFailTotal.WithLabelValues(s.Name()).Inc()
				logger.L().Debug("source_fetch_fail", "name", s.Name(), "err", err)
			} else {
				logger.L().Debug("source_fetch_ok", "name", s.Name(), "bytes", len(b))
			}
			out[i] = Outcome{Name: s.Name(), Body: b, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}
