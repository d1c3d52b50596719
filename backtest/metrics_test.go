package backtest

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func TestCumulativeReturn(t *testing.T) {
	got, err := CumulativeReturn([]float64{1000, 1100, 1210})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(got, 0.21) {
		t.Errorf("累计收益率期望 0.21, 得到 %.6f", got)
	}

	if _, err := CumulativeReturn([]float64{1000}); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("单点序列应该返回 InsufficientDataError, 得到 %v", err)
	}
}

func TestSharpeRatioMatchesFormula(t *testing.T) {
	values := []float64{100, 101, 99, 102, 104, 103}
	got, err := SharpeRatio(values, 0.02, 252)
	if err != nil {
		t.Fatal(err)
	}

	rf := 0.02 / 252
	var excess []float64
	for i := 1; i < len(values); i++ {
		excess = append(excess, values[i]/values[i-1]-1-rf)
	}
	sum := 0.0
	for _, r := range excess {
		sum += r
	}
	m := sum / float64(len(excess))
	ss := 0.0
	for _, r := range excess {
		ss += (r - m) * (r - m)
	}
	sd := math.Sqrt(ss / float64(len(excess)-1))
	want := math.Sqrt(252) * m / sd

	if !almostEqual(got, want) {
		t.Errorf("夏普比率期望 %.10f, 得到 %.10f", want, got)
	}
}

func TestSharpeRatioEdgeCases(t *testing.T) {
	if _, err := SharpeRatio([]float64{100}, 0, 252); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("单点序列应该返回 InsufficientDataError, 得到 %v", err)
	}
	if _, err := SharpeRatio([]float64{100, 101}, 0, 0); !errors.Is(err, ErrInvalidParameter) {
		t.Errorf("年化周期为 0 应该返回 InvalidParameterError, 得到 %v", err)
	}
	// 只有一个收益率，样本标准差未定义
	got, err := SharpeRatio([]float64{100, 101}, 0, 252)
	if err != nil || !math.IsNaN(got) {
		t.Errorf("单个收益率时夏普比率应为 NaN, 得到 %v (%v)", got, err)
	}

	// 无风险利率非零时，平盘组合的超额收益为常数，仍应为 NaN
	flat := []float64{100, 100, 100, 100, 100, 100, 100}
	if got, err := SharpeRatio(flat, 0.03, 252); err != nil || !math.IsNaN(got) {
		t.Errorf("平盘组合夏普比率应为 NaN, 得到 %v (%v)", got, err)
	}
	doubling := []float64{1, 2, 4, 8, 16}
	if got, err := SharpeRatio(doubling, 0.03, 252); err != nil || !math.IsNaN(got) {
		t.Errorf("恒定收益率时夏普比率应为 NaN, 得到 %v (%v)", got, err)
	}
}

// TestFlatSeries 价格不变：收益 0，夏普 NaN，回撤 0
func TestFlatSeries(t *testing.T) {
	values := []float64{100, 100, 100, 100}

	cum, err := CumulativeReturn(values)
	if err != nil || cum != 0 {
		t.Errorf("累计收益率期望 0, 得到 %v (%v)", cum, err)
	}
	sharpe, err := SharpeRatio(values, 0, 252)
	if err != nil || !math.IsNaN(sharpe) {
		t.Errorf("夏普比率期望 NaN, 得到 %v (%v)", sharpe, err)
	}
	mdd, err := MaxDrawdown(values)
	if err != nil || mdd != 0 {
		t.Errorf("最大回撤期望 0, 得到 %v (%v)", mdd, err)
	}
}

func TestFlatSeriesBacktest(t *testing.T) {
	prices := seriesFromCloses(50, 50, 50, 50, 50, 50)
	result, err := Run(prices, Params{Fast: 2, Slow: 3, InitialCash: 1000})
	if err != nil {
		t.Fatal(err)
	}
	if result.Metrics.CumulativeReturn != 0 || result.Metrics.MaxDrawdown != 0 {
		t.Errorf("平盘行情收益与回撤应为 0: %+v", result.Metrics)
	}
	if !math.IsNaN(result.Metrics.SharpeRatio) {
		t.Errorf("平盘行情夏普比率应为 NaN, 得到 %v", result.Metrics.SharpeRatio)
	}
	if result.Metrics.NumTrades != 0 {
		t.Errorf("平盘行情不应交易, 得到 %d", result.Metrics.NumTrades)
	}
	if !math.IsNaN(result.Metrics.WinRate) {
		t.Errorf("无交易时胜率应为 NaN, 得到 %v", result.Metrics.WinRate)
	}
}

func TestMaxDrawdown(t *testing.T) {
	mdd, err := MaxDrawdown([]float64{100, 120, 90, 110, 60, 130})
	if err != nil {
		t.Fatal(err)
	}
	if !almostEqual(mdd, -0.5) {
		t.Errorf("最大回撤期望 -0.5, 得到 %.6f", mdd)
	}

	mdd, _ = MaxDrawdown([]float64{1, 1, 2, 3, 3, 5})
	if mdd != 0 {
		t.Errorf("单调不减序列最大回撤应为 0, 得到 %v", mdd)
	}

	if _, err := MaxDrawdown(nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("空序列应该返回 InsufficientDataError, 得到 %v", err)
	}
}

func TestDrawdownBounds(t *testing.T) {
	prices := generateSeries("BTCUSDT", 600)
	result, err := Run(prices, Params{Fast: 4, Slow: 25, InitialCash: 1000, TransactionCost: 0.001})
	if err != nil {
		t.Fatal(err)
	}
	for i, dd := range DrawdownSeries(result.Ledger.PortfolioValues()) {
		if dd > 0 || dd < -1 {
			t.Fatalf("第 %d 日回撤越界: %v", i, dd)
		}
	}
	if result.Metrics.MaxDrawdown > 0 || result.Metrics.MaxDrawdown < -1 {
		t.Errorf("最大回撤越界: %v", result.Metrics.MaxDrawdown)
	}
}

func TestTradeAccountingFlip(t *testing.T) {
	// 持仓 [0,0,1,1,-1]：进场 1 单位 + 翻转 2 单位
	stats, err := TradeAccounting(Signal{0, 1, 0, -1, 0}, []float64{10, 11, 12, 13, 14})
	if err != nil {
		t.Fatal(err)
	}
	if stats.NumTrades != 3 {
		t.Errorf("交易次数期望 3, 得到 %d", stats.NumTrades)
	}
	if len(stats.RoundTrips) != 1 {
		t.Fatalf("期望 1 段持仓, 得到 %d", len(stats.RoundTrips))
	}
	rt := stats.RoundTrips[0]
	if rt.EntryPrice != 12 || rt.ExitPrice != 14 || !rt.Open || rt.Direction != 1 {
		t.Errorf("持仓段不正确: %+v", rt)
	}
	if stats.WinRate != 1 {
		t.Errorf("胜率期望 1, 得到 %v", stats.WinRate)
	}
}

// TestTradeAccountingShortCountsByPrice 盈亏按价格差计算：下跌中的空头记为亏损
func TestTradeAccountingShortCountsByPrice(t *testing.T) {
	stats, err := TradeAccounting(Signal{0, -1, 0, 0}, []float64{10, 10, 9, 8})
	if err != nil {
		t.Fatal(err)
	}
	if stats.NumTrades != 1 {
		t.Errorf("交易次数期望 1, 得到 %d", stats.NumTrades)
	}
	if stats.RoundTrips[0].PnL != -1 {
		t.Errorf("盈亏期望 -1, 得到 %v", stats.RoundTrips[0].PnL)
	}
	if stats.WinRate != 0 {
		t.Errorf("胜率期望 0, 得到 %v", stats.WinRate)
	}
}

func TestTradeAccountingNoTrades(t *testing.T) {
	stats, err := TradeAccounting(Signal{0, 0, 0}, []float64{1, 2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if stats.NumTrades != 0 || len(stats.RoundTrips) != 0 {
		t.Errorf("不应有交易: %+v", stats)
	}
	if !math.IsNaN(stats.WinRate) {
		t.Errorf("无交易时胜率应为 NaN, 得到 %v", stats.WinRate)
	}
}

func TestTradeAccountingErrors(t *testing.T) {
	if _, err := TradeAccounting(Signal{0}, nil); !errors.Is(err, ErrInsufficientData) {
		t.Errorf("空价格应该返回 InsufficientDataError, 得到 %v", err)
	}
	if _, err := TradeAccounting(nil, []float64{1, 2}); !errors.Is(err, ErrMissingColumn) {
		t.Errorf("缺少信号应该返回 MissingColumnError, 得到 %v", err)
	}
}

func TestRiskMetrics(t *testing.T) {
	values := []float64{100}
	for i := 1; i <= 100; i++ {
		r := 0.01
		if i%10 == 0 {
			r = -0.05
		}
		values = append(values, values[i-1]*(1+r))
	}

	risk := CalculateRiskMetrics(values)
	if !almostEqual(risk.VaR95, 0.05) {
		t.Errorf("VaR95 期望 0.05, 得到 %.6f", risk.VaR95)
	}
	if risk.CVaR99 < risk.VaR99-1e-12 {
		t.Errorf("CVaR99 不应小于 VaR99: %+v", risk)
	}

	if (CalculateRiskMetrics([]float64{1}) != RiskMetrics{}) {
		t.Error("单点序列风险指标应为零值")
	}
}

func TestMetricsReportJSONNaN(t *testing.T) {
	report := MetricsReport{
		CumulativeReturn: 0.1,
		SharpeRatio:      math.NaN(),
		WinRate:          math.NaN(),
		MaxDrawdown:      -0.2,
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("序列化失败: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"sharpe_ratio":null`) || !strings.Contains(s, `"win_rate":null`) {
		t.Errorf("NaN 应该编码为 null: %s", s)
	}
	if !strings.Contains(s, `"max_drawdown":-0.2`) {
		t.Errorf("普通数值编码不正确: %s", s)
	}
	if strings.Contains(s, "rolling") {
		t.Errorf("未计算滚动指标时不应输出 rolling: %s", s)
	}
}

func TestJSONFloatRoundTrip(t *testing.T) {
	var f JSONFloat
	if err := json.Unmarshal([]byte("null"), &f); err != nil || !math.IsNaN(float64(f)) {
		t.Errorf("null 应解码为 NaN, 得到 %v (%v)", f, err)
	}
	if err := json.Unmarshal([]byte("1.5"), &f); err != nil || f != 1.5 {
		t.Errorf("期望 1.5, 得到 %v (%v)", f, err)
	}
}
