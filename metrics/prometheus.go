package metrics

import (
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// 回测指标
	backtestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabacktest_runs_total",
			Help: "Total number of backtest runs",
		},
		[]string{"symbol", "status"},
	)

	backtestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smabacktest_run_duration_seconds",
			Help:    "Backtest run duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"symbol"},
	)

	lastSharpeRatio = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smabacktest_last_sharpe_ratio",
			Help: "Sharpe ratio of the most recent backtest per symbol",
		},
		[]string{"symbol"},
	)

	lastCumulativeReturn = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "smabacktest_last_cumulative_return",
			Help: "Cumulative return of the most recent backtest per symbol",
		},
		[]string{"symbol"},
	)

	// 网格搜索指标
	gridPairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabacktest_grid_pairs_total",
			Help: "Total number of evaluated grid pairs",
		},
		[]string{"symbol", "status"},
	)

	gridDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smabacktest_grid_duration_seconds",
			Help:    "Grid search duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"symbol"},
	)

	// 数据获取指标
	dataFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabacktest_data_fetch_total",
			Help: "Total number of price downloads by source",
		},
		[]string{"source", "status"},
	)

	dataFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smabacktest_data_fetch_duration_seconds",
			Help:    "Price download duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"source"},
	)

	cacheLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabacktest_cache_lookup_total",
			Help: "Total number of price cache lookups",
		},
		[]string{"result"}, // hit, miss, stale
	)

	// 分布式锁指标
	lockAcquireTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabacktest_lock_acquire_total",
			Help: "Total number of lock acquisitions",
		},
		[]string{"status"},
	)

	// HTTP 接口指标
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smabacktest_http_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smabacktest_http_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 30.0},
		},
		[]string{"route"},
	)

	lockHoldDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "smabacktest_lock_hold_duration_seconds",
			Help:    "Lock hold duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
	)
)

// PrometheusMetrics Prometheus 指标收集器
type PrometheusMetrics struct{}

// NewPrometheusMetrics 创建 Prometheus 指标收集器
func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{}
}

// 回测相关指标记录

// RecordBacktest 记录一次回测，sharpe/cumulative 为 NaN 时不更新对应 gauge
func (pm *PrometheusMetrics) RecordBacktest(symbol string, duration time.Duration, sharpe, cumulative float64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	backtestRunsTotal.WithLabelValues(symbol, status).Inc()
	backtestDuration.WithLabelValues(symbol).Observe(duration.Seconds())
	if err != nil {
		return
	}
	if !math.IsNaN(sharpe) && !math.IsInf(sharpe, 0) {
		lastSharpeRatio.WithLabelValues(symbol).Set(sharpe)
	}
	if !math.IsNaN(cumulative) {
		lastCumulativeReturn.WithLabelValues(symbol).Set(cumulative)
	}
}

// RecordGridPair 记录网格中的一个组合
func (pm *PrometheusMetrics) RecordGridPair(symbol string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	gridPairsTotal.WithLabelValues(symbol, status).Inc()
}

// RecordGridSearch 记录一次完整网格搜索耗时
func (pm *PrometheusMetrics) RecordGridSearch(symbol string, duration time.Duration) {
	gridDuration.WithLabelValues(symbol).Observe(duration.Seconds())
}

// 数据相关指标记录

// RecordDataFetch 记录一次数据源下载
func (pm *PrometheusMetrics) RecordDataFetch(source string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	dataFetchTotal.WithLabelValues(source, status).Inc()
	dataFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// RecordCacheLookup 记录缓存查询结果（hit, miss, stale）
func (pm *PrometheusMetrics) RecordCacheLookup(result string) {
	cacheLookupTotal.WithLabelValues(result).Inc()
}

// 分布式锁相关指标记录

// RecordLockAcquire 记录锁获取
func (pm *PrometheusMetrics) RecordLockAcquire(status string) {
	lockAcquireTotal.WithLabelValues(status).Inc()
}

// RecordLockHoldDuration 记录锁持有时长
func (pm *PrometheusMetrics) RecordLockHoldDuration(duration time.Duration) {
	lockHoldDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest 记录一次 API 请求
func (pm *PrometheusMetrics) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// 全局实例
var globalPrometheusMetrics *PrometheusMetrics

// GetPrometheusMetrics 获取全局 Prometheus 指标收集器
func GetPrometheusMetrics() *PrometheusMetrics {
	once.Do(func() {
		globalPrometheusMetrics = NewPrometheusMetrics()
	})
	return globalPrometheusMetrics
}
