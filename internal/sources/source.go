// 包 sources：第三方公共数据集来源（GitHub 列表、CDN 包等），只负责取回原始 JSON，形状归一化由 locations 完成
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody：单个数据集的读取上限，防止异常响应撑爆内存
const maxBody = 32 << 20

// 文档注释：公共数据源接口
// 背景：来源不可控，形状随时可能漂移；接口只约定“取回字节或报错”，解析失败由上层降级为空贡献。
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// 文档注释：HTTP 公共数据源
// 约束：匿名 GET，不附带任何鉴权头；非 2xx 视为失败；超时由共享客户端控制。
type HTTPSource struct {
	name   string
	url    string
	client *http.Client
}

// NewHTTP：client 为空时使用 timeout（<=0 时 30s）的独立客户端
func NewHTTP(rawURL string, client *http.Client, timeout time.Duration) *HTTPSource {
	if client == nil {
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPSource{name: nameFor(rawURL), url: rawURL, client: client}
}

func (h *HTTPSource) Name() string { return h.name }
func (h *HTTPSource) URL() string  { return h.url }

func (h *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("source %s: status %d", h.name, resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("source %s read: %w", h.name, err)
	}
	return b, nil
}

// nameFor：以 host+path 作为来源名，用于日志、指标标签与降级结果中的 failed_sources
func nameFor(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host + strings.TrimSuffix(u.Path, "/")
}
