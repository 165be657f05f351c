// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"loc-api/internal/backend"
	"loc-api/internal/locations"
	"loc-api/internal/logger"
	"loc-api/internal/metrics"
	"loc-api/internal/store"
	"net/http"

	"github.com/gorilla/mux"
)

// AdminTokenHeader：缓存管理端点的鉴权头
const AdminTokenHeader = "x-admin-token"

// Resolver：路由依赖的解析器能力，由 locations.Resolver 实现
type Resolver interface {
	ResolveStates(ctx context.Context) locations.Result
	ResolveDistricts(ctx context.Context, state string) locations.Result
	ResolveSubDistricts(ctx context.Context, state, district string) locations.Result
	ResolveVillages(ctx context.Context, state, district, subDistrict string) locations.Result
	ResolvePinCodes(ctx context.Context, q locations.PinQuery) locations.Result
	Refresh(ctx context.Context) locations.Result
	Invalidate(ctx context.Context) error
}

// Stats：查询统计存储；为 nil 时 /stats 返回零值
type Stats interface {
	IncrStats(ctx context.Context, level string) error
	GetTotals(ctx context.Context) (*store.Totals, error)
}

type Deps struct {
	Resolver   Resolver
	Stats      Stats
	AdminToken string
}

// 查询结果结构：名称列表键随层级变化，降级信息固定附带
type listResponse map[string]any

func newListResponse(key string, res locations.Result) listResponse {
	failed := res.FailedSources
	if failed == nil {
		failed = []string{}
	}
	return listResponse{key: res.Names, "degraded": res.Degraded, "failed_sources": failed}
}

// 文档注释：构建 API 路由
// 背景：主入口创建根路由并按 API_BASE 生成子路由后调用本函数；所有解析端点只读且不会因上游失败返回 5xx。
// 约束：Authorization: Token <t> 写入请求上下文，由后端客户端转发；管理端点要求 x-admin-token 与配置一致，未配置时一律拒绝。
func BuildRoutes(r *mux.Router, d Deps) {
	h := &handlers{d: d}
	loc := r.PathPrefix("/locations").Subrouter()
	loc.Use(forwardToken)
	loc.HandleFunc("/states/", h.states).Methods(http.MethodGet)
	loc.HandleFunc("/districts/", h.districts).Methods(http.MethodGet)
	loc.HandleFunc("/sub_districts/", h.subDistricts).Methods(http.MethodGet)
	loc.HandleFunc("/villages/", h.villages).Methods(http.MethodGet)
	loc.HandleFunc("/pin_codes/", h.pinCodes).Methods(http.MethodGet)
	loc.Handle("/cache/refresh", h.admin(h.refresh)).Methods(http.MethodPost)
	loc.Handle("/cache", h.admin(h.invalidate)).Methods(http.MethodDelete)

	r.HandleFunc("/stats", h.stats).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
}

// forwardToken：把调用方凭据放入上下文，解析器请求后端时附带
func forwardToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tok := backend.TokenFromHeader(r.Header.Get("Authorization")); tok != "" {
			r = r.WithContext(backend.WithToken(r.Context(), tok))
		}
		next.ServeHTTP(w, r)
	})
}

type handlers struct {
	d Deps
}

func (h *handlers) states(w http.ResponseWriter, r *http.Request) {
	res := h.d.Resolver.ResolveStates(r.Context())
	h.count(r.Context(), "states")
	writeJSON(w, http.StatusOK, newListResponse("states", res))
}

func (h *handlers) districts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state := q.Get("state")
	if state == "" {
		writeError(w, http.StatusBadRequest, "state is required")
		return
	}
	res := h.d.Resolver.ResolveDistricts(r.Context(), state)
	h.count(r.Context(), "districts")
	writeJSON(w, http.StatusOK, newListResponse("districts", res))
}

func (h *handlers) subDistricts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, district := q.Get("state"), q.Get("district")
	if state == "" || district == "" {
		writeError(w, http.StatusBadRequest, "state and district are required")
		return
	}
	res := h.d.Resolver.ResolveSubDistricts(r.Context(), state, district)
	h.count(r.Context(), "sub_districts")
	writeJSON(w, http.StatusOK, newListResponse("sub_districts", res))
}

func (h *handlers) villages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	state, district, sub := q.Get("state"), q.Get("district"), q.Get("sub_district")
	if state == "" || district == "" || sub == "" {
		writeError(w, http.StatusBadRequest, "state, district and sub_district are required")
		return
	}
	res := h.d.Resolver.ResolveVillages(r.Context(), state, district, sub)
	h.count(r.Context(), "villages")
	writeJSON(w, http.StatusOK, newListResponse("villages", res))
}

func (h *handlers) pinCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := h.d.Resolver.ResolvePinCodes(r.Context(), locations.PinQuery{
		State:       q.Get("state"),
		District:    q.Get("district"),
		SubDistrict: q.Get("sub_district"),
		Village:     q.Get("village"),
	})
	h.count(r.Context(), "pin_codes")
	writeJSON(w, http.StatusOK, newListResponse("pin_codes", res))
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	res := h.d.Resolver.Refresh(r.Context())
	logger.L().Info("cache_refresh_api", "states", len(res.Names), "degraded", res.Degraded)
	writeJSON(w, http.StatusOK, newListResponse("states", res))
}

func (h *handlers) invalidate(w http.ResponseWriter, r *http.Request) {
	if err := h.d.Resolver.Invalidate(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) stats(w http.ResponseWriter, r *http.Request) {
	t := &store.Totals{ByLevel: map[string]int64{}}
	if h.d.Stats != nil {
		got, err := h.d.Stats.GetTotals(r.Context())
		if err != nil {
			logger.L().Warn("stats_read_error", "err", err)
		}
		if got != nil {
			t = got
		}
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *handlers) admin(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(AdminTokenHeader)
		if h.d.AdminToken == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.d.AdminToken)) != 1 {
			logger.L().Warn("admin_denied", "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	})
}

// count：统计失败不影响响应
func (h *handlers) count(ctx context.Context, level string) {
	if h.d.Stats == nil {
		return
	}
	if err := h.d.Stats.IncrStats(ctx, level); err != nil {
		logger.L().Debug("stats_incr_error", "level", level, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg, "code": status})
}
