package backtest

import (
	"math"
	"time"
)

// DefaultPeriodsPerYear 日线年化周期数
const DefaultPeriodsPerYear = 252

// MetricsReport 回测指标
type MetricsReport struct {
	// 收益指标
	CumulativeReturn float64 `json:"cumulative_return"` // 累计收益率（小数）
	TotalReturn      float64 `json:"total_return"`      // 总盈亏金额 = 期末价值 - 初始资金
	FinalValue       float64 `json:"final_value"`       // 期末组合价值

	// 风险指标
	SharpeRatio float64 `json:"sharpe_ratio"` // 年化夏普比率，波动为0时为 NaN
	MaxDrawdown float64 `json:"max_drawdown"` // 最大回撤（<=0）

	// 交易指标
	NumTrades int     `json:"num_trades"` // 持仓变化单位数（多翻空计 2）
	WinRate   float64 `json:"win_rate"`   // 胜率（小数），无交易时为 NaN

	DataPoints int `json:"data_points"`

	Rolling *RollingMetrics `json:"rolling,omitempty"`
	Risk    RiskMetrics     `json:"risk"`
}

// RoundTrip 一段连续非零持仓
type RoundTrip struct {
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	Direction  int       `json:"direction"` // 进场时的方向
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	PnL        float64   `json:"pnl"` // 出场价 - 进场价（不区分方向）
	Open       bool      `json:"open"`
}

// TradeStats 交易统计
type TradeStats struct {
	NumTrades  int         `json:"num_trades"`
	WinRate    float64     `json:"win_rate"`
	RoundTrips []RoundTrip `json:"round_trips"`
}

// Returns 逐期简单收益率（丢弃首个未定义点）
func Returns(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	returns := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		returns[i-1] = values[i]/values[i-1] - 1
	}
	return returns
}

// CumulativeReturn 累计收益率
func CumulativeReturn(values []float64) (float64, error) {
	if len(values) < 2 {
		return 0, insufficientData("cumulative_return", 2, len(values))
	}
	return values[len(values)-1]/values[0] - 1, nil
}

// SharpeRatio 年化夏普比率
// 使用样本标准差；收益率标准差为 0 或仅一个收益率时返回 NaN
func SharpeRatio(values []float64, riskFreeRate float64, periodsPerYear int) (float64, error) {
	if len(values) < 2 {
		return 0, insufficientData("sharpe_ratio", 2, len(values))
	}
	if periodsPerYear <= 0 {
		return 0, invalidParam("periods_per_year", periodsPerYear, "must be > 0")
	}

	returns := Returns(values)
	if constant(returns) {
		return math.NaN(), nil
	}

	// 减去常数不改变标准差，按原始收益率计算
	m := mean(returns)
	sd := sampleStdDev(returns, m)
	if math.IsNaN(sd) || sd == 0 {
		return math.NaN(), nil
	}
	rf := riskFreeRate / float64(periodsPerYear)
	return math.Sqrt(float64(periodsPerYear)) * (m - rf) / sd, nil
}

// constant 所有值完全相同（含空序列）
func constant(values []float64) bool {
	for _, v := range values[min(1, len(values)):] {
		if v != values[0] {
			return false
		}
	}
	return true
}

// DrawdownSeries 每日相对历史最高点的回撤
func DrawdownSeries(values []float64) []float64 {
	drawdown := make([]float64, len(values))
	peak := math.Inf(-1)
	for i, v := range values {
		if v > peak {
			peak = v
		}
		drawdown[i] = (v - peak) / peak
	}
	return drawdown
}

// MaxDrawdown 最大回撤（最小的回撤值，0 表示从未低于前高）
func MaxDrawdown(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, insufficientData("max_drawdown", 1, 0)
	}
	worst := 0.0
	for _, dd := range DrawdownSeries(values) {
		if dd < worst {
			worst = dd
		}
	}
	return worst, nil
}

// TradeAccounting 统计交易次数与胜率
// 盈亏按 出场价-进场价 计算，不区分多空方向（空头盈利会被计为亏损）
func TradeAccounting(signal Signal, closes []float64) (TradeStats, error) {
	if len(closes) == 0 {
		return TradeStats{}, insufficientData("trade_accounting", 1, 0)
	}
	if len(signal) == 0 {
		return TradeStats{}, missingColumn("signal", "signal series is empty")
	}
	if len(signal) != len(closes) {
		return TradeStats{}, missingColumn("signal", "signal and close differ in length")
	}
	return tradeAccounting(HeldPosition(signal), closes, nil), nil
}

func tradeAccounting(held Position, closes []float64, dates []time.Time) TradeStats {
	stats := TradeStats{RoundTrips: make([]RoundTrip, 0)}

	prev := 0
	for _, pos := range held {
		stats.NumTrades += absInt(pos - prev)
		prev = pos
	}

	dateAt := func(i int) time.Time {
		if i < len(dates) {
			return dates[i]
		}
		return time.Time{}
	}

	inTrade := false
	var current RoundTrip
	for t, pos := range held {
		switch {
		case pos != 0 && !inTrade:
			inTrade = true
			current = RoundTrip{
				EntryDate:  dateAt(t),
				Direction:  pos,
				EntryPrice: closes[t],
			}
		case pos == 0 && inTrade:
			inTrade = false
			current.ExitDate = dateAt(t)
			current.ExitPrice = closes[t]
			current.PnL = current.ExitPrice - current.EntryPrice
			stats.RoundTrips = append(stats.RoundTrips, current)
		}
	}
	if inTrade {
		last := len(closes) - 1
		current.ExitDate = dateAt(last)
		current.ExitPrice = closes[last]
		current.PnL = current.ExitPrice - current.EntryPrice
		current.Open = true
		stats.RoundTrips = append(stats.RoundTrips, current)
	}

	if len(stats.RoundTrips) == 0 {
		stats.WinRate = math.NaN()
		return stats
	}
	wins := 0
	for _, rt := range stats.RoundTrips {
		if rt.PnL > 0 {
			wins++
		}
	}
	stats.WinRate = float64(wins) / float64(len(stats.RoundTrips))
	return stats
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStdDev 样本标准差（n-1），不足两个点时为 NaN
func sampleStdDev(values []float64, m float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	variance := 0.0
	for _, v := range values {
		diff := v - m
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)-1))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
