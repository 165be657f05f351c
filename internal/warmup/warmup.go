// 包 warmup：每周刷新州/区县数据集快照，运行在服务进程内的后台协程
package warmup

import (
	"context"
	"loc-api/internal/locations"
	"loc-api/internal/logger"
	"time"
)

// Zone：刷新节奏按印度标准时间计算
const Zone = "Asia/Kolkata"

// Refresher：由 locations.Resolver 实现
type Refresher interface {
	Refresh(ctx context.Context) locations.Result
}

// nextMondayAt：计算 now 之后下一个周一指定整点（不含当周已过时的时间点）
func nextMondayAt(now time.Time, loc *time.Location, hour int) time.Time {
	now = now.In(loc)
	for i := 0; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		if d.Weekday() != time.Monday {
			continue
		}
		t := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
		if t.After(now) {
			return t
		}
	}
	d := now.AddDate(0, 0, 7)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, loc)
}

func location() *time.Location {
	loc, err := time.LoadLocation(Zone)
	if err != nil {
		// 缺少 tzdata 时退化为固定 +05:30
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// 文档注释：启动后台刷新
// 背景：冷启动构建出的快照若处于降级状态会一直被复用；每周一在 hour 整点重新构建并覆盖缓存，onStart 为真时启动即刷新一次。
// 约束：ctx 取消后协程退出；刷新失败只会产生降级快照，不会中断调度。
func Start(ctx context.Context, r Refresher, hour int, onStart bool) {
	l := logger.L()
	loc := location()
	go func() {
		if onStart {
			run(ctx, r, "startup")
		}
		for {
			next := nextMondayAt(time.Now(), loc, hour)
			l.Info("warmup_scheduled", "next", next)
			t := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
				run(ctx, r, "weekly")
			}
		}
	}()
}

func run(ctx context.Context, r Refresher, reason string) {
	t0 := time.Now()
	res := r.Refresh(ctx)
	logger.L().Info("warmup_done",
		"reason", reason,
		"states", len(res.Names),
		"degraded", res.Degraded,
		"failed_sources", res.FailedSources,
		"duration_ms", time.Since(t0).Milliseconds(),
	)
}
