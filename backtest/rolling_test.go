package backtest

import (
	"errors"
	"math"
	"testing"
)

// naiveRolling 逐窗口直接计算，用于和增量实现对比
func naiveRolling(values []float64, window int, rf float64, periods int) (sharpe, vol, dd []float64) {
	n := len(values)
	sharpe, vol, dd = nanSlice(n), nanSlice(n), nanSlice(n)
	annualize := math.Sqrt(float64(periods))
	daily := rf / float64(periods)

	for t := window; t < n; t++ {
		rets := make([]float64, 0, window)
		for i := t - window + 1; i <= t; i++ {
			rets = append(rets, values[i]/values[i-1]-1)
		}
		m := mean(rets)
		sd := sampleStdDev(rets, m)
		vol[t] = sd * annualize
		if sd != 0 {
			sharpe[t] = annualize * (m - daily) / sd
		}
	}
	for t := window - 1; t < n; t++ {
		peak := math.Inf(-1)
		for i := t - window + 1; i <= t; i++ {
			peak = math.Max(peak, values[i])
		}
		dd[t] = (values[t] - peak) / peak
	}
	return sharpe, vol, dd
}

func floatsClose(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= 1e-8*math.Max(1, math.Abs(b))
}

func TestRollingMetricsMatchesNaive(t *testing.T) {
	values := generateSeries("BTCUSDT", 300).Closes

	for _, window := range []int{2, 5, 20, 63} {
		rm, err := ComputeRollingMetrics(values, window, 0.03, 252)
		if err != nil {
			t.Fatalf("窗口 %d 计算失败: %v", window, err)
		}
		sharpe, vol, dd := naiveRolling(values, window, 0.03, 252)
		for i := range values {
			if !floatsClose(rm.Sharpe[i], sharpe[i]) {
				t.Fatalf("窗口 %d 第 %d 日滚动夏普期望 %v, 得到 %v", window, i, sharpe[i], rm.Sharpe[i])
			}
			if !floatsClose(rm.Volatility[i], vol[i]) {
				t.Fatalf("窗口 %d 第 %d 日滚动波动率期望 %v, 得到 %v", window, i, vol[i], rm.Volatility[i])
			}
			if !floatsClose(rm.Drawdown[i], dd[i]) {
				t.Fatalf("窗口 %d 第 %d 日滚动回撤期望 %v, 得到 %v", window, i, dd[i], rm.Drawdown[i])
			}
		}
	}
}

func TestRollingMetricsWarmup(t *testing.T) {
	values := []float64{100, 102, 101, 105, 103, 108}
	rm, err := ComputeRollingMetrics(values, 3, 0, 252)
	if err != nil {
		t.Fatal(err)
	}
	if len(rm.Sharpe) != len(values) || len(rm.Drawdown) != len(values) {
		t.Fatalf("滚动指标长度应与输入一致")
	}
	for i := 0; i < 3; i++ {
		if !math.IsNaN(rm.Sharpe[i]) || !math.IsNaN(rm.Volatility[i]) {
			t.Errorf("第 %d 日窗口未满，夏普/波动率应为 NaN", i)
		}
	}
	for i := 0; i < 2; i++ {
		if !math.IsNaN(rm.Drawdown[i]) {
			t.Errorf("第 %d 日窗口未满，回撤应为 NaN", i)
		}
	}
	if math.IsNaN(rm.Sharpe[3]) || math.IsNaN(rm.Drawdown[2]) {
		t.Error("窗口填满后应有取值")
	}
	for i, dd := range rm.Drawdown {
		if !math.IsNaN(dd) && (dd > 0 || dd < -1) {
			t.Errorf("第 %d 日滚动回撤越界: %v", i, dd)
		}
	}
}

func TestRollingMetricsConstant(t *testing.T) {
	rm, err := ComputeRollingMetrics([]float64{10, 10, 10, 10, 10}, 2, 0, 252)
	if err != nil {
		t.Fatal(err)
	}
	for i := 2; i < 5; i++ {
		if !math.IsNaN(rm.Sharpe[i]) {
			t.Errorf("零波动时滚动夏普应为 NaN, 第 %d 日得到 %v", i, rm.Sharpe[i])
		}
		if rm.Volatility[i] != 0 {
			t.Errorf("零波动时滚动波动率应为 0, 第 %d 日得到 %v", i, rm.Volatility[i])
		}
		if rm.Drawdown[i] != 0 {
			t.Errorf("平盘滚动回撤应为 0, 第 %d 日得到 %v", i, rm.Drawdown[i])
		}
	}
}

// TestRollingMetricsFlatAfterVolatile 波动行情滑出窗口后进入平盘，标准差应回到 0
func TestRollingMetricsFlatAfterVolatile(t *testing.T) {
	values := []float64{100, 150, 105, 133, 97, 97, 97, 97, 97}
	rm, err := ComputeRollingMetrics(values, 3, 0, 252)
	if err != nil {
		t.Fatal(err)
	}
	for _, i := range []int{7, 8} {
		if !math.IsNaN(rm.Sharpe[i]) {
			t.Errorf("窗口内收益率全为 0 时滚动夏普应为 NaN, 第 %d 日得到 %v", i, rm.Sharpe[i])
		}
		if rm.Volatility[i] != 0 {
			t.Errorf("窗口内收益率全为 0 时滚动波动率应为 0, 第 %d 日得到 %v", i, rm.Volatility[i])
		}
	}
	if math.IsNaN(rm.Sharpe[6]) || rm.Volatility[6] == 0 {
		t.Errorf("窗口内仍有波动时应有取值, 得到夏普 %v 波动率 %v", rm.Sharpe[6], rm.Volatility[6])
	}

	// 非零的恒定收益率（每日翻倍）同样视为零波动
	growth := []float64{100, 130, 90, 120}
	for i := 0; i < 6; i++ {
		growth = append(growth, growth[len(growth)-1]*2)
	}
	rm, err = ComputeRollingMetrics(growth, 4, 0.03, 252)
	if err != nil {
		t.Fatal(err)
	}
	last := len(growth) - 1
	if rm.Volatility[last] != 0 {
		t.Errorf("恒定收益率时滚动波动率应为 0, 得到 %v", rm.Volatility[last])
	}
	if !math.IsNaN(rm.Sharpe[last]) {
		t.Errorf("恒定收益率时滚动夏普应为 NaN, 得到 %v", rm.Sharpe[last])
	}
}

func TestRollingMetricsErrors(t *testing.T) {
	if _, err := ComputeRollingMetrics([]float64{1}, 2, 0, 252); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("单点序列应该返回 InsufficientDataError, 得到 %v", err)
	}
	if _, err := ComputeRollingMetrics([]float64{1, 2, 3}, 1, 0, 252); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("窗口为 1 应该返回 InvalidParameterError, 得到 %v", err)
	}
	if _, err := ComputeRollingMetrics([]float64{1, 2, 3}, 2, 0, -1); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("年化周期为负应该返回 InvalidParameterError, 得到 %v", err)
	}
}

func TestRunRollingWarning(t *testing.T) {
	prices := seriesFromCloses(100, 102, 101, 105, 103, 108)
	result, err := Run(prices, Params{Fast: 2, Slow: 4, InitialCash: 1000, RollingWindow: 10})
	if err != nil {
		t.Fatal(err)
	}
	if result.Metrics.Rolling == nil {
		t.Fatal("应该计算滚动指标")
	}
	if len(result.Warnings) == 0 {
		t.Error("数据长度不足滚动窗口时应该给出警告")
	}
	for i, v := range result.Metrics.Rolling.Sharpe {
		if !math.IsNaN(v) {
			t.Errorf("第 %d 日滚动夏普应为 NaN, 得到 %v", i, v)
		}
	}
	if len(result.Metrics.Rolling.Dates) != prices.Len() {
		t.Errorf("滚动指标日期长度不正确: %d", len(result.Metrics.Rolling.Dates))
	}
}
