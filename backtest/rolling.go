package backtest

import (
	"math"
	"time"
)

// RollingMetrics 滚动窗口指标，与组合价值时间轴对齐，窗口未满的位置为 NaN
type RollingMetrics struct {
	Window     int         `json:"window"`
	Dates      []time.Time `json:"dates,omitempty"`
	Sharpe     []float64   `json:"rolling_sharpe"`
	Volatility []float64   `json:"rolling_volatility"`
	Drawdown   []float64   `json:"rolling_drawdown"`
}

// ComputeRollingMetrics 计算滚动夏普、滚动波动率与滚动回撤
// 夏普/波动率使用最近 window 个收益率（第 t 日可用需 t >= window），
// 回撤相对最近 window 个组合价值的最高点（第 t 日可用需 t >= window-1）
func ComputeRollingMetrics(values []float64, window int, riskFreeRate float64, periodsPerYear int) (*RollingMetrics, error) {
	if len(values) < 2 {
		return nil, insufficientData("rolling_metrics", 2, len(values))
	}
	if window < 2 {
		return nil, invalidParam("window", window, "must be >= 2")
	}
	if periodsPerYear <= 0 {
		return nil, invalidParam("periods_per_year", periodsPerYear, "must be > 0")
	}

	n := len(values)
	rm := &RollingMetrics{
		Window:     window,
		Sharpe:     nanSlice(n),
		Volatility: nanSlice(n),
		Drawdown:   nanSlice(n),
	}

	annualize := math.Sqrt(float64(periodsPerYear))
	rf := riskFreeRate / float64(periodsPerYear)

	// 收益率窗口：returns[i] 对应第 i+1 日
	returns := Returns(values)
	acc := &windowStats{}
	run := 0 // 末尾连续相同收益率的个数
	for i, r := range returns {
		acc.add(r)
		if i >= window {
			acc.remove(returns[i-window])
		}
		if i > 0 && r == returns[i-1] {
			run++
		} else {
			run = 1
		}
		if acc.n < window {
			continue
		}
		t := i + 1
		sd := acc.stdDev()
		// 增删累加器会残留舍入误差，窗口内收益率全部相同时标准差按 0 处理
		if run >= window {
			sd = 0
		}
		rm.Volatility[t] = sd * annualize
		if sd == 0 {
			continue
		}
		rm.Sharpe[t] = annualize * (acc.mean - rf) / sd
	}

	// 价值窗口最高点：单调递减队列
	deque := make([]int, 0, window)
	for t, v := range values {
		for len(deque) > 0 && values[deque[len(deque)-1]] <= v {
			deque = deque[:len(deque)-1]
		}
		deque = append(deque, t)
		if deque[0] <= t-window {
			deque = deque[1:]
		}
		if t < window-1 {
			continue
		}
		peak := values[deque[0]]
		rm.Drawdown[t] = (v - peak) / peak
	}

	return rm, nil
}

// windowStats 滑动窗口均值/二阶矩累加器（Welford 增删）
type windowStats struct {
	n    int
	mean float64
	m2   float64
}

func (w *windowStats) add(x float64) {
	w.n++
	d := x - w.mean
	w.mean += d / float64(w.n)
	w.m2 += d * (x - w.mean)
}

func (w *windowStats) remove(x float64) {
	if w.n <= 1 {
		*w = windowStats{}
		return
	}
	w.n--
	d := x - w.mean
	w.mean -= d / float64(w.n)
	w.m2 -= d * (x - w.mean)
	if w.m2 < 0 {
		w.m2 = 0
	}
}

// stdDev 样本标准差
func (w *windowStats) stdDev() float64 {
	if w.n < 2 {
		return math.NaN()
	}
	return math.Sqrt(w.m2 / float64(w.n-1))
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
