package backtest

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// GridSpec 均线参数网格
type GridSpec struct {
	FastMin  int `json:"fast_min" yaml:"fast_min"`
	FastMax  int `json:"fast_max" yaml:"fast_max"`
	FastStep int `json:"fast_step" yaml:"fast_step"`
	SlowMin  int `json:"slow_min" yaml:"slow_min"`
	SlowMax  int `json:"slow_max" yaml:"slow_max"`
	SlowStep int `json:"slow_step" yaml:"slow_step"`
}

// DefaultGridSpec 快线 10-30 步长 5，慢线 50-200 步长 10
func DefaultGridSpec() GridSpec {
	return GridSpec{
		FastMin: 10, FastMax: 30, FastStep: 5,
		SlowMin: 50, SlowMax: 200, SlowStep: 10,
	}
}

// Validate 校验网格
func (g GridSpec) Validate() error {
	if g.FastMin <= 0 || g.FastMax < g.FastMin {
		return invalidParam("fast_range", [2]int{g.FastMin, g.FastMax}, "must be a positive ascending range")
	}
	if g.SlowMin <= 0 || g.SlowMax < g.SlowMin {
		return invalidParam("slow_range", [2]int{g.SlowMin, g.SlowMax}, "must be a positive ascending range")
	}
	if g.FastStep <= 0 {
		return invalidParam("fast_step", g.FastStep, "must be > 0")
	}
	if g.SlowStep <= 0 {
		return invalidParam("slow_step", g.SlowStep, "must be > 0")
	}
	return nil
}

// Pair 一组快慢窗口
type Pair struct {
	Fast int `json:"fast"`
	Slow int `json:"slow"`
}

// Pairs 展开网格，跳过 fast >= slow 的组合
func (g GridSpec) Pairs() []Pair {
	pairs := make([]Pair, 0)
	if g.FastStep <= 0 || g.SlowStep <= 0 {
		return pairs
	}
	for fast := g.FastMin; fast <= g.FastMax; fast += g.FastStep {
		for slow := g.SlowMin; slow <= g.SlowMax; slow += g.SlowStep {
			if fast >= slow {
				continue
			}
			pairs = append(pairs, Pair{Fast: fast, Slow: slow})
		}
	}
	return pairs
}

// GridResult 单个组合的回测结果（失败时 Err 非空）
type GridResult struct {
	Pair     Pair          `json:"pair"`
	Metrics  MetricsReport `json:"metrics"`
	Err      error         `json:"-"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// GridSearch 并行回测所有组合，结果按夏普比率降序（NaN 排最后）
// 单个组合失败只记录在结果里；ctx 取消后不再启动新的组合
func GridSearch(ctx context.Context, prices *PriceSeries, spec GridSpec, base Params, workers int, onResult func(GridResult)) ([]GridResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	pairs := spec.Pairs()
	results := make([]GridResult, len(pairs))
	done := make([]bool, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, pair := range pairs {
		if gctx.Err() != nil {
			break
		}
		i, pair := i, pair
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			params := base
			params.Fast = pair.Fast
			params.Slow = pair.Slow
			// 网格中不计算滚动指标
			params.RollingWindow = 0

			start := time.Now()
			res, err := Run(prices, params)
			gr := GridResult{Pair: pair, Err: err, Duration: time.Since(start)}
			if err != nil {
				gr.Error = err.Error()
			} else {
				gr.Metrics = res.Metrics
			}
			results[i] = gr
			done[i] = true
			if onResult != nil {
				onResult(gr)
			}
			return nil
		})
	}

	err := g.Wait()

	finished := make([]GridResult, 0, len(results))
	for i, r := range results {
		if done[i] {
			finished = append(finished, r)
		}
	}
	RankBySharpe(finished)

	if err == nil {
		err = ctx.Err()
	}
	return finished, err
}

// RankBySharpe 按夏普比率降序排序；其后依次为夏普 NaN 和运行失败的组合，相同时按快线、慢线升序
func RankBySharpe(results []GridResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		ta, tb := rankTier(a), rankTier(b)
		if ta != tb {
			return ta < tb
		}
		if ta == 0 && a.Metrics.SharpeRatio != b.Metrics.SharpeRatio {
			return a.Metrics.SharpeRatio > b.Metrics.SharpeRatio
		}
		if a.Pair.Fast != b.Pair.Fast {
			return a.Pair.Fast < b.Pair.Fast
		}
		return a.Pair.Slow < b.Pair.Slow
	})
}

// rankTier 0 有效夏普，1 夏普 NaN，2 运行失败
func rankTier(r GridResult) int {
	switch {
	case r.Err != nil:
		return 2
	case math.IsNaN(r.Metrics.SharpeRatio):
		return 1
	default:
		return 0
	}
}

func validSharpe(r GridResult) bool {
	return rankTier(r) == 0
}

// Top 取前 n 个成功的结果
func Top(results []GridResult, n int) []GridResult {
	if n <= 0 {
		return nil
	}
	top := make([]GridResult, 0, n)
	for _, r := range results {
		if len(top) >= n {
			break
		}
		if r.Err == nil {
			top = append(top, r)
		}
	}
	return top
}
