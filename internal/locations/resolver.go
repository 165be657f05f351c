// 包 locations：州→区县→子区县→村→PIN 级联解析；后端为主，公共数据集与覆盖表补全，持久缓存加速
package locations

import (
	"context"
	"errors"
	"loc-api/internal/backend"
	"loc-api/internal/cache"
	"loc-api/internal/logger"
	"loc-api/internal/metrics"
	"loc-api/internal/sources"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// PinQuery：PIN 码查询过滤条件，均可为空
type PinQuery = backend.PinQuery

// Backend：主后端的最小契约，由 backend.Client 实现
type Backend interface {
	States(ctx context.Context) ([]string, error)
	Districts(ctx context.Context, state string) ([]string, error)
	SubDistricts(ctx context.Context, state, district string) ([]string, error)
	Villages(ctx context.Context, state, district, subDistrict string) ([]string, error)
	PinCodes(ctx context.Context, q backend.PinQuery) ([]string, error)
}

// Fetcher：公共数据集集合，由 sources.Manager 实现
type Fetcher interface {
	FetchAll(ctx context.Context) []sources.Outcome
}

// PinFallbackPolicy：PIN 码后端失败时的兜底策略
type PinFallbackPolicy int

const (
	// PinFallbackUnfiltered：返回固定的 5 个示例 PIN，不考虑过滤条件
	PinFallbackUnfiltered PinFallbackPolicy = iota
	// PinFallbackNone：返回空列表并标记降级
	PinFallbackNone
)

// ParsePinFallback：unfiltered（默认）或 none
func ParsePinFallback(s string) PinFallbackPolicy {
	if strings.EqualFold(strings.TrimSpace(s), "none") {
		return PinFallbackNone
	}
	return PinFallbackUnfiltered
}

// 来源名：记录在 Result.FailedSources 中
const (
	SourceBackendStates       = "backend/states"
	SourceBackendDistricts    = "backend/districts"
	SourceBackendSubDistricts = "backend/sub_districts"
	SourceBackendVillages     = "backend/villages"
	SourceBackendPinCodes     = "backend/pin_codes"
)

var errNoBackend = errors.New("locations: no backend configured")

// 文档注释：解析结果
// 背景：调用方需要区分“确实没有数据”与“所有来源都失败”，结果显式携带降级信息。
// 约束：Names 永不为 nil；Degraded 为 true 表示至少一个来源失败或使用了字面兜底表。
type Result struct {
	Names         []string
	Degraded      bool
	FailedSources []string
}

type Options struct {
	Backend     Backend
	Sources     Fetcher
	Cache       cache.Store
	Reference   *Reference
	CacheKey    string
	PinFallback PinFallbackPolicy
}

// 文档注释：位置解析器
// 背景：五个 Resolve 操作均不返回错误，只按来源可用性降级；州/区县数据集在进程内存与持久缓存各保存一份。
// 约束：并发安全；冷启动并发调用通过 singleflight 共享同一次构建，不会重复访问网络；
// Refresh/Invalidate 递增代数，代数已变化的构建结果不会覆盖更新的快照。
type Resolver struct {
	backend Backend
	sources Fetcher
	cache   cache.Store
	ref     *Reference
	key     string
	pinFB   PinFallbackPolicy

	memo   atomic.Pointer[Dataset]
	flight singleflight.Group

	// mu 保护 gen 以及快照的发布（内存与持久缓存）
	mu  sync.Mutex
	gen uint64
}

func New(opts Options) *Resolver {
	r := &Resolver{
		backend: opts.Backend,
		sources: opts.Sources,
		cache:   opts.Cache,
		ref:     opts.Reference,
		key:     opts.CacheKey,
		pinFB:   opts.PinFallback,
	}
	if r.ref == nil {
		r.ref = DefaultReference()
	}
	if r.cache == nil {
		r.cache = cache.NewMemory(0)
	}
	if r.key == "" {
		r.key = CacheKey
	}
	return r
}

// ResolveStates：内存快照 → 持久缓存 → 网络构建（后端 ∪ 公共数据集 ∪ 基线）
func (r *Resolver) ResolveStates(ctx context.Context) Result {
	t0 := time.Now()
	ds := r.loadDataset(ctx)
	res := Result{Names: append([]string{}, ds.States...), FailedSources: append([]string(nil), ds.FailedSources...)}
	res.Degraded = len(res.FailedSources) > 0
	return observe("states", t0, res)
}

// ResolveDistricts：后端 ∪ 公共数据集 ∪ 覆盖表（最后并入），去重排序
// 约束：后端失败且其他来源都不认识该州时使用字面兜底表；state 为空直接返回空结果
func (r *Resolver) ResolveDistricts(ctx context.Context, state string) Result {
	t0 := time.Now()
	if strings.TrimSpace(state) == "" {
		return observe("districts", t0, Result{Names: []string{}})
	}
	ds := r.loadDataset(ctx)
	var res Result
	for _, s := range ds.FailedSources {
		if !strings.HasPrefix(s, "backend/") {
			res.FailedSources = append(res.FailedSources, s)
		}
	}
	list, err := r.callBackend(func(b Backend) ([]string, error) { return b.Districts(ctx, state) })
	if err != nil {
		logger.L().Warn("districts_backend_fail", "state", state, "err", err)
		res.FailedSources = append(res.FailedSources, SourceBackendDistricts)
	}
	public := ds.districts(state)
	override, hasOverride := r.ref.DistrictOverrides[state]
	var literal []string
	if err != nil && len(list) == 0 && len(public) == 0 && !hasOverride {
		literal = r.ref.FallbackDistricts[state]
		if len(literal) > 0 {
			logger.L().Debug("districts_literal_fallback", "state", state, "count", len(literal))
		}
	}
	res.Names = sortNames(list, public, literal, override)
	res.Degraded = len(res.FailedSources) > 0
	return observe("districts", t0, res)
}

// ResolveSubDistricts：仅后端；失败时使用 (state, district) 字面兜底表
func (r *Resolver) ResolveSubDistricts(ctx context.Context, state, district string) Result {
	t0 := time.Now()
	if state == "" || district == "" {
		return observe("sub_districts", t0, Result{Names: []string{}})
	}
	list, err := r.callBackend(func(b Backend) ([]string, error) { return b.SubDistricts(ctx, state, district) })
	if err != nil {
		logger.L().Warn("sub_districts_backend_fail", "state", state, "district", district, "err", err)
		return observe("sub_districts", t0, degraded(SourceBackendSubDistricts, r.ref.subDistricts(state, district)))
	}
	return observe("sub_districts", t0, Result{Names: uniq(list)})
}

// ResolveVillages：仅后端；失败时使用 (state, district, subDistrict) 字面兜底表
func (r *Resolver) ResolveVillages(ctx context.Context, state, district, subDistrict string) Result {
	t0 := time.Now()
	if state == "" || district == "" || subDistrict == "" {
		return observe("villages", t0, Result{Names: []string{}})
	}
	list, err := r.callBackend(func(b Backend) ([]string, error) { return b.Villages(ctx, state, district, subDistrict) })
	if err != nil {
		logger.L().Warn("villages_backend_fail", "state", state, "district", district, "sub_district", subDistrict, "err", err)
		return observe("villages", t0, degraded(SourceBackendVillages, r.ref.villages(state, district, subDistrict)))
	}
	return observe("villages", t0, Result{Names: uniq(list)})
}

// ResolvePinCodes：仅携带非空过滤条件查询后端；失败时按 PinFallbackPolicy 兜底
func (r *Resolver) ResolvePinCodes(ctx context.Context, q PinQuery) Result {
	t0 := time.Now()
	list, err := r.callBackend(func(b Backend) ([]string, error) { return b.PinCodes(ctx, q) })
	if err != nil {
		logger.L().Warn("pin_codes_backend_fail", "state", q.State, "district", q.District, "err", err)
		var fb []string
		if r.pinFB == PinFallbackUnfiltered {
			fb = r.ref.FallbackPinCodes
		}
		return observe("pin_codes", t0, degraded(SourceBackendPinCodes, fb))
	}
	return observe("pin_codes", t0, Result{Names: uniq(list)})
}

// Refresh：忽略内存与持久缓存，重新构建数据集并覆盖两者
func (r *Resolver) Refresh(ctx context.Context) Result {
	t0 := time.Now()
	v, _, _ := r.flight.Do(r.key+":refresh", func() (any, error) {
		gen := r.bump()
		ds := r.buildDataset(context.WithoutCancel(ctx))
		return r.publish(ctx, gen, ds, true), nil
	})
	ds := v.(*Dataset)
	res := Result{Names: append([]string{}, ds.States...), FailedSources: append([]string(nil), ds.FailedSources...)}
	res.Degraded = len(res.FailedSources) > 0
	return observe("refresh", t0, res)
}

// Invalidate：丢弃内存快照并删除持久缓存条目；下一次解析将重新构建
func (r *Resolver) Invalidate(ctx context.Context) error {
	r.mu.Lock()
	r.gen++
	r.memo.Store(nil)
	err := r.cache.Delete(ctx, r.key)
	r.mu.Unlock()
	logger.L().Info("dataset_invalidated", "key", r.key, "err", err)
	return err
}

// Snapshot：当前内存快照，未加载时为 nil
func (r *Resolver) Snapshot() *Dataset { return r.memo.Load() }

func (r *Resolver) loadDataset(ctx context.Context) *Dataset {
	if ds := r.memo.Load(); ds != nil {
		return ds
	}
	v, _, shared := r.flight.Do(r.key, func() (any, error) {
		if ds := r.memo.Load(); ds != nil {
			return ds, nil
		}
		gen := r.current()
		if ds := r.readCache(ctx); ds != nil {
			return r.publish(ctx, gen, ds, false), nil
		}
		// 构建结果由所有并发调用者共享，不随首个调用者取消
		ds := r.buildDataset(context.WithoutCancel(ctx))
		return r.publish(ctx, gen, ds, true), nil
	})
	if shared {
		logger.L().Debug("dataset_load_shared", "key", r.key)
	}
	return v.(*Dataset)
}

func (r *Resolver) bump() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	return r.gen
}

func (r *Resolver) current() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

// publish：代数未变时写入内存快照（persist 为真时同时写持久缓存）并返回 ds；
// 代数已变说明期间发生过 Refresh/Invalidate，丢弃 ds，返回当前快照（没有时仍返回 ds 供本次调用使用）
func (r *Resolver) publish(ctx context.Context, gen uint64, ds *Dataset, persist bool) *Dataset {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.gen != gen {
		logger.L().Debug("dataset_publish_stale", "key", r.key, "gen", gen, "current", r.gen)
		if cur := r.memo.Load(); cur != nil {
			return cur
		}
		return ds
	}
	if persist {
		r.store(ctx, ds)
	}
	r.memo.Store(ds)
	return ds
}

func (r *Resolver) readCache(ctx context.Context) *Dataset {
	b, ok, err := r.cache.Get(ctx, r.key)
	if err != nil {
		logger.L().Warn("dataset_cache_read_error", "key", r.key, "err", err)
		return nil
	}
	if !ok {
		return nil
	}
	ds, err := decodeDataset(b)
	if err != nil {
		logger.L().Warn("dataset_cache_corrupt", "key", r.key, "err", err)
		return nil
	}
	logger.L().Debug("dataset_cache_hit", "key", r.key, "states", len(ds.States))
	return ds
}

func (r *Resolver) store(ctx context.Context, ds *Dataset) {
	b, err := ds.encode()
	if err != nil {
		logger.L().Error("dataset_encode_error", "err", err)
		return
	}
	if err := r.cache.Set(context.WithoutCancel(ctx), r.key, b); err != nil {
		logger.L().Warn("dataset_cache_write_error", "key", r.key, "err", err)
	}
}

// 文档注释：网络构建数据集
// 背景：后端州列表与全部公共数据集并发请求；公共数据集按配置顺序合并，最后并入基线列表。
// 约束：任何单个来源失败或形状无法识别都只记录到 FailedSources，不影响其他来源。
func (r *Resolver) buildDataset(ctx context.Context) *Dataset {
	metrics.DatasetBuildsTotal.Inc()
	logger.L().Info("dataset_build_begin", "key", r.key)
	var (
		backendStates []string
		backendErr    error
		outcomes      []sources.Outcome
	)
	var g errgroup.Group
	g.Go(func() error {
		backendStates, backendErr = r.callBackend(func(b Backend) ([]string, error) { return b.States(ctx) })
		return nil
	})
	if r.sources != nil {
		g.Go(func() error {
			outcomes = r.sources.FetchAll(ctx)
			return nil
		})
	}
	_ = g.Wait()

	var failed []string
	states := [][]string{r.ref.BaselineStates}
	districts := map[string][][]string{}
	if backendErr != nil {
		logger.L().Warn("states_backend_fail", "err", backendErr)
		failed = append(failed, SourceBackendStates)
	} else {
		states = append(states, backendStates)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o.Name)
			continue
		}
		n := Normalize(o.Body)
		if n.Empty() {
			logger.L().Warn("source_shape_unrecognized", "name", o.Name, "bytes", len(o.Body))
			failed = append(failed, o.Name)
			continue
		}
		states = append(states, n.Names)
		for name, children := range n.ChildrenByName {
			districts[name] = append(districts[name], children)
		}
		logger.L().Debug("source_merged", "name", o.Name, "states", len(n.Names), "with_districts", len(n.ChildrenByName))
	}

	ds := &Dataset{States: sortNames(states...), DistrictsByState: map[string][]string{}, FailedSources: failed}
	for name, lists := range districts {
		ds.DistrictsByState[name] = sortNames(lists...)
	}
	logger.L().Info("dataset_build_done", "states", len(ds.States), "with_districts", len(ds.DistrictsByState), "failed", len(failed))
	return ds
}

func (r *Resolver) callBackend(fn func(Backend) ([]string, error)) ([]string, error) {
	if r.backend == nil {
		return nil, errNoBackend
	}
	return fn(r.backend)
}

func degraded(source string, fallback []string) Result {
	return Result{Names: uniq(fallback), Degraded: true, FailedSources: []string{source}}
}

func observe(level string, t0 time.Time, res Result) Result {
	metrics.ResolveRequestsTotal.WithLabelValues(level).Inc()
	metrics.ResolveDurationMs.WithLabelValues(level).Observe(float64(time.Since(t0).Milliseconds()))
	if res.Degraded {
		metrics.ResolveDegradedTotal.WithLabelValues(level).Inc()
	}
	if res.Names == nil {
		res.Names = []string{}
	}
	return res
}
