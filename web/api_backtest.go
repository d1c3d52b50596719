package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"smabacktest/backtest"
	"smabacktest/config"
	"smabacktest/logger"
)

// BacktestRequest 单次回测请求，未填写的字段使用配置中的默认值
type BacktestRequest struct {
	Symbol          string   `json:"symbol"`
	Start           string   `json:"start"` // YYYY-MM-DD
	End             string   `json:"end"`   // YYYY-MM-DD，空表示今天
	Fast            int      `json:"fast"`
	Slow            int      `json:"slow"`
	InitialCash     float64  `json:"initial_cash"`
	TransactionCost *float64 `json:"transaction_cost"`
	RiskFreeRate    *float64 `json:"risk_free_rate"`
	RollingWindow   *int     `json:"rolling_window"`
	IncludeSeries   bool     `json:"include_series"` // 是否返回均线、信号与账本
}

// BacktestResponse 回测响应
type BacktestResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Start   string           `json:"start"`
	End     string           `json:"end"`
	Result  *backtest.Result `json:"result,omitempty"`
}

// GridRequest 网格搜索请求
type GridRequest struct {
	Symbol          string             `json:"symbol"`
	Start           string             `json:"start"`
	End             string             `json:"end"`
	Grid            *backtest.GridSpec `json:"grid"`
	Workers         int                `json:"workers"`
	Top             int                `json:"top"`
	InitialCash     float64            `json:"initial_cash"`
	TransactionCost *float64           `json:"transaction_cost"`
	RiskFreeRate    *float64           `json:"risk_free_rate"`
}

// GridResponse 网格搜索响应
type GridResponse struct {
	Success bool                  `json:"success"`
	Message string                `json:"message"`
	Total   int                   `json:"total"`
	Failed  int                   `json:"failed"`
	Results []backtest.GridResult `json:"results"`
}

// resolveRange 解析日期，空值取配置默认
func (a *API) resolveRange(cfg *config.Config, startStr, endStr string) (time.Time, time.Time, error) {
	defStart, defEnd, err := cfg.DateRange(a.now())
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, end := defStart, defEnd
	if startStr != "" {
		if start, err = time.Parse(config.DateLayout, startStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("开始日期格式错误: %s", startStr)
		}
	}
	if endStr != "" {
		if end, err = time.Parse(config.DateLayout, endStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("结束日期格式错误: %s", endStr)
		}
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("结束日期必须晚于开始日期")
	}
	return start, end, nil
}

func (req BacktestRequest) params(base backtest.Params) backtest.Params {
	p := base
	if req.Fast != 0 {
		p.Fast = req.Fast
	}
	if req.Slow != 0 {
		p.Slow = req.Slow
	}
	if req.InitialCash != 0 {
		p.InitialCash = req.InitialCash
	}
	if req.TransactionCost != nil {
		p.TransactionCost = *req.TransactionCost
	}
	if req.RiskFreeRate != nil {
		p.RiskFreeRate = *req.RiskFreeRate
	}
	if req.RollingWindow != nil {
		p.RollingWindow = *req.RollingWindow
	}
	return p
}

func symbolOrDefault(symbol string, cfg *config.Config) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return cfg.Data.Symbol
	}
	return symbol
}

// runBacktest 运行单次回测
func (a *API) runBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cfg := a.Config()
	params := req.params(cfg.Backtest)
	if err := params.Validate(); err != nil {
		respondError(c, err)
		return
	}
	start, end, err := a.resolveRange(cfg, req.Start, req.End)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	symbol := symbolOrDefault(req.Symbol, cfg)

	logger.Info("📊 开始回测: 标的=%s, 均线=%d/%d, 区间=%s 至 %s",
		symbol, params.Fast, params.Slow, start.Format(config.DateLayout), end.Format(config.DateLayout))

	prices, err := a.fetcher.Fetch(c.Request.Context(), symbol, start, end)
	if err != nil {
		logger.Error("❌ 获取历史数据失败: %v", err)
		respondError(c, err)
		return
	}

	begin := time.Now()
	result, err := backtest.Run(prices, params)
	if err != nil {
		a.metrics.RecordBacktest(symbol, time.Since(begin), 0, 0, err)
		logger.Warn("⚠️ 回测失败: %v", err)
		respondError(c, err)
		return
	}
	m := result.Metrics
	a.metrics.RecordBacktest(symbol, time.Since(begin), m.SharpeRatio, m.CumulativeReturn, nil)

	logger.Info("✅ 回测完成: 累计收益率=%.2f%%, 夏普比率=%.2f, 最大回撤=%.2f%%",
		m.CumulativeReturn*100, m.SharpeRatio, m.MaxDrawdown*100)

	if !req.IncludeSeries {
		result.FastMA, result.SlowMA, result.Signal, result.Ledger = nil, nil, nil, nil
	}

	c.JSON(http.StatusOK, BacktestResponse{
		Success: true,
		Message: "ok",
		Start:   prices.Start().Format(config.DateLayout),
		End:     prices.End().Format(config.DateLayout),
		Result:  result,
	})
}

// runGrid 网格搜索
func (a *API) runGrid(c *gin.Context) {
	var req GridRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}

	cfg := a.Config()
	spec := cfg.Grid.GridSpec
	if req.Grid != nil {
		spec = *req.Grid
	}
	if err := spec.Validate(); err != nil {
		respondError(c, err)
		return
	}
	base := BacktestRequest{
		InitialCash:     req.InitialCash,
		TransactionCost: req.TransactionCost,
		RiskFreeRate:    req.RiskFreeRate,
	}.params(cfg.Backtest)

	workers := req.Workers
	if workers <= 0 {
		workers = cfg.Grid.Workers
	}
	top := req.Top
	if top <= 0 {
		top = cfg.Grid.Top
	}

	start, end, err := a.resolveRange(cfg, req.Start, req.End)
	if err != nil {
		respondBadRequest(c, err)
		return
	}
	symbol := symbolOrDefault(req.Symbol, cfg)

	prices, err := a.fetcher.Fetch(c.Request.Context(), symbol, start, end)
	if err != nil {
		logger.Error("❌ 获取历史数据失败: %v", err)
		respondError(c, err)
		return
	}

	logger.Info("🔍 开始网格搜索: 标的=%s, 组合数=%d", symbol, len(spec.Pairs()))
	begin := time.Now()
	results, err := backtest.GridSearch(c.Request.Context(), prices, spec, base, workers, func(r backtest.GridResult) {
		a.metrics.RecordGridPair(symbol, r.Err)
	})
	a.metrics.RecordGridSearch(symbol, time.Since(begin))
	if err != nil {
		respondError(c, err)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("✅ 网格搜索完成: %d 组, 失败 %d, 耗时 %v", len(results), failed, time.Since(begin))

	if top < len(results) {
		results = results[:top]
	}
	c.JSON(http.StatusOK, GridResponse{
		Success: true,
		Message: "ok",
		Total:   len(spec.Pairs()),
		Failed:  failed,
		Results: results,
	})
}
