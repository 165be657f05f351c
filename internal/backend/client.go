package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"loc-api/internal/logger"
	"loc-api/internal/metrics"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrStatus：后端返回非 2xx
var ErrStatus = errors.New("backend: unexpected status")

// DefaultTimeout：后端请求超时，超时按来源失败处理
const DefaultTimeout = 30 * time.Second

type tokenKey struct{}

// WithToken：把调用方的鉴权令牌放入上下文，后端请求据此附加 Authorization 头
func WithToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext：读取上下文中的令牌，不存在返回空串
func TokenFromContext(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}

// TokenFromHeader：解析 "Token <t>" 形式的 Authorization 头；其他形式返回空串
func TokenFromHeader(h string) string {
	h = strings.TrimSpace(h)
	if len(h) > 6 && strings.EqualFold(h[:6], "token ") {
		return strings.TrimSpace(h[6:])
	}
	return ""
}

// 文档注释：位置后端 REST 客户端
// 背景：对接 <base>/api/locations/ 下的 states/districts/sub_districts/villages/pin_codes 五个端点；
// 解析器将这里返回的错误统一降级为“该来源无贡献”。
// 约束：所有端点均为 GET；缺省的过滤条件不出现在查询串中；令牌仅来自上下文。
type Client struct {
	base   string
	client *http.Client
}

// NewClient：base 为后端根地址（如 http://localhost:8000）；client 为空时使用 30s 超时的默认客户端
func NewClient(base string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: strings.TrimRight(base, "/") + "/api/locations/", client: client}
}

// PinQuery：PIN 码查询的四个可选过滤条件
type PinQuery struct {
	State       string
	District    string
	SubDistrict string
	Village     string
}

func (c *Client) States(ctx context.Context) ([]string, error) {
	var r struct {
		States []string `json:"states"`
	}
	err := c.get(ctx, "states/", nil, &r)
	return r.States, err
}

func (c *Client) Districts(ctx context.Context, state string) ([]string, error) {
	var r struct {
		Districts []string `json:"districts"`
	}
	q := url.Values{}
	q.Set("state", state)
	err := c.get(ctx, "districts/", q, &r)
	return r.Districts, err
}

func (c *Client) SubDistricts(ctx context.Context, state, district string) ([]string, error) {
	var r struct {
		SubDistricts []string `json:"sub_districts"`
	}
	q := url.Values{}
	q.Set("state", state)
	q.Set("district", district)
	err := c.get(ctx, "sub_districts/", q, &r)
	return r.SubDistricts, err
}

func (c *Client) Villages(ctx context.Context, state, district, subDistrict string) ([]string, error) {
	var r struct {
		Villages []string `json:"villages"`
	}
	q := url.Values{}
	q.Set("state", state)
	q.Set("district", district)
	q.Set("sub_district", subDistrict)
	err := c.get(ctx, "villages/", q, &r)
	return r.Villages, err
}

func (c *Client) PinCodes(ctx context.Context, pq PinQuery) ([]string, error) {
	var r struct {
		PinCodes []string `json:"pin_codes"`
	}
	q := url.Values{}
	if pq.State != "" {
		q.Set("state", pq.State)
	}
	if pq.District != "" {
		q.Set("district", pq.District)
	}
	if pq.SubDistrict != "" {
		q.Set("sub_district", pq.SubDistrict)
	}
	if pq.Village != "" {
		q.Set("village", pq.Village)
	}
	err := c.get(ctx, "pin_codes/", q, &r)
	return r.PinCodes, err
}

// 文档注释：统一 GET 与解码
// 返回：传输错误、非 2xx（包装 ErrStatus）与 JSON 解码错误；成功时 out 被填充。
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	u := c.base + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if tok := TokenFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Token "+tok)
	}
	name := strings.TrimSuffix(endpoint, "/")
	t0 := time.Now()
	metrics.BackendRequestsTotal.WithLabelValues(name).Inc()
	logger.L().Debug("backend_req", "endpoint", name, "query", q.Encode())
	defer func() {
		metrics.BackendDurationMs.WithLabelValues(name).Observe(float64(time.Since(t0).Milliseconds()))
	}()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.BackendFailTotal.WithLabelValues(name).Inc()
		return fmt.Errorf("backend %s: %w", name, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.BackendFailTotal.WithLabelValues(name).Inc()
		return fmt.Errorf("%w: %s %d", ErrStatus, name, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.BackendFailTotal.WithLabelValues(name).Inc()
		return fmt.Errorf("backend %s decode: %w", name, err)
	}
	logger.L().Debug("backend_resp", "endpoint", name, "status", resp.StatusCode, "duration_ms", time.Since(t0).Milliseconds())
	return nil
}
