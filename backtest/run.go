package backtest

import (
	"math"
	"time"
)

// Params 回测参数
type Params struct {
	Fast            int     `json:"fast" yaml:"fast"`                         // 快线窗口
	Slow            int     `json:"slow" yaml:"slow"`                         // 慢线窗口
	InitialCash     float64 `json:"initial_cash" yaml:"initial_cash"`         // 初始资金
	TransactionCost float64 `json:"transaction_cost" yaml:"transaction_cost"` // 手续费率（例如 0.001）
	RiskFreeRate    float64 `json:"risk_free_rate" yaml:"risk_free_rate"`     // 年化无风险利率
	PeriodsPerYear  int     `json:"periods_per_year" yaml:"periods_per_year"` // 年化周期数，默认 252
	RollingWindow   int     `json:"rolling_window" yaml:"rolling_window"`     // 滚动指标窗口，0 表示不计算
}

// DefaultParams 默认参数（20/50 均线，10 万初始资金，千分之一手续费）
func DefaultParams() Params {
	return Params{
		Fast:            20,
		Slow:            50,
		InitialCash:     100000,
		TransactionCost: 0.001,
		PeriodsPerYear:  DefaultPeriodsPerYear,
		RollingWindow:   DefaultPeriodsPerYear,
	}
}

// Validate 校验参数
func (p Params) Validate() error {
	if p.Fast <= 0 {
		return invalidParam("fast", p.Fast, "must be > 0")
	}
	if p.Slow <= 0 {
		return invalidParam("slow", p.Slow, "must be > 0")
	}
	if p.Fast >= p.Slow {
		return invalidParam("fast", p.Fast, "fast window must be less than slow window")
	}
	if !(p.InitialCash > 0) || math.IsInf(p.InitialCash, 0) {
		return invalidParam("initial_cash", p.InitialCash, "must be > 0")
	}
	if p.TransactionCost < 0 || math.IsNaN(p.TransactionCost) {
		return invalidParam("transaction_cost", p.TransactionCost, "must be >= 0")
	}
	if p.PeriodsPerYear < 0 {
		return invalidParam("periods_per_year", p.PeriodsPerYear, "must be > 0")
	}
	if p.RollingWindow < 0 || p.RollingWindow == 1 {
		return invalidParam("rolling_window", p.RollingWindow, "must be 0 or >= 2")
	}
	return nil
}

func (p Params) periodsPerYear() int {
	if p.PeriodsPerYear == 0 {
		return DefaultPeriodsPerYear
	}
	return p.PeriodsPerYear
}

// Result 一次回测的完整输出
type Result struct {
	Symbol   string        `json:"symbol"`
	Params   Params        `json:"params"`
	FastMA   MovingAverage `json:"sma_fast"`
	SlowMA   MovingAverage `json:"sma_slow"`
	Signal   Signal        `json:"signal"`
	Ledger   *Ledger       `json:"ledger"`
	Metrics  MetricsReport `json:"metrics"`
	Trades   TradeStats    `json:"trades"`
	Warnings []string      `json:"warnings,omitempty"`
}

// Run 运行一次均线交叉回测：均线 → 信号 → 账本 → 指标
func Run(prices *PriceSeries, params Params) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := prices.Validate(); err != nil {
		return nil, err
	}

	fast, err := ComputeSMA(prices, params.Fast)
	if err != nil {
		return nil, err
	}
	slow, err := ComputeSMA(prices, params.Slow)
	if err != nil {
		return nil, err
	}

	signal, err := GenerateSignals(fast, slow)
	if err != nil {
		return nil, err
	}

	ledger, err := Simulate(prices, signal, params.InitialCash, params.TransactionCost)
	if err != nil {
		return nil, err
	}

	report, err := Analyze(ledger, params)
	if err != nil {
		return nil, err
	}

	trades := tradeAccounting(ledger.Positions(), prices.Closes, prices.Dates)
	report.NumTrades = trades.NumTrades
	report.WinRate = trades.WinRate

	result := &Result{
		Symbol:  prices.Symbol,
		Params:  params,
		FastMA:  fast,
		SlowMA:  slow,
		Signal:  signal,
		Ledger:  ledger,
		Metrics: report,
		Trades:  trades,
	}
	if report.Rolling != nil && prices.Len() <= params.RollingWindow {
		result.Warnings = append(result.Warnings, "insufficient data for rolling metrics")
	}
	return result, nil
}

// Analyze 由账本计算汇总指标（交易统计除外）
func Analyze(ledger *Ledger, params Params) (MetricsReport, error) {
	values := ledger.PortfolioValues()

	cumulative, err := CumulativeReturn(values)
	if err != nil {
		return MetricsReport{}, err
	}
	sharpe, err := SharpeRatio(values, params.RiskFreeRate, params.periodsPerYear())
	if err != nil {
		return MetricsReport{}, err
	}
	maxDD, err := MaxDrawdown(values)
	if err != nil {
		return MetricsReport{}, err
	}

	final := ledger.FinalValue()
	report := MetricsReport{
		CumulativeReturn: cumulative,
		TotalReturn:      final - params.InitialCash,
		FinalValue:       final,
		SharpeRatio:      sharpe,
		MaxDrawdown:      maxDD,
		DataPoints:       len(values),
		Risk:             CalculateRiskMetrics(values),
	}

	if params.RollingWindow >= 2 {
		rolling, err := ComputeRollingMetrics(values, params.RollingWindow, params.RiskFreeRate, params.periodsPerYear())
		if err != nil {
			return MetricsReport{}, err
		}
		rolling.Dates = make([]time.Time, len(ledger.Rows))
		for i, row := range ledger.Rows {
			rolling.Dates[i] = row.Date
		}
		report.Rolling = rolling
	}

	return report, nil
}
