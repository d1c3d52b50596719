package metrics

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBacktest(t *testing.T) {
	pm := GetPrometheusMetrics()
	if pm != GetPrometheusMetrics() {
		t.Fatal("全局实例应该唯一")
	}

	before := testutil.ToFloat64(backtestRunsTotal.WithLabelValues("TEST_A", "success"))
	pm.RecordBacktest("TEST_A", time.Millisecond, 1.25, 0.1, nil)
	pm.RecordBacktest("TEST_A", time.Millisecond, math.NaN(), 0.2, nil)

	if got := testutil.ToFloat64(backtestRunsTotal.WithLabelValues("TEST_A", "success")); got != before+2 {
		t.Errorf("成功次数期望 %v, 得到 %v", before+2, got)
	}
	// NaN 夏普不覆盖上一次的值
	if got := testutil.ToFloat64(lastSharpeRatio.WithLabelValues("TEST_A")); got != 1.25 {
		t.Errorf("夏普 gauge 期望 1.25, 得到 %v", got)
	}
	if got := testutil.ToFloat64(lastCumulativeReturn.WithLabelValues("TEST_A")); got != 0.2 {
		t.Errorf("收益 gauge 期望 0.2, 得到 %v", got)
	}

	pm.RecordBacktest("TEST_A", time.Millisecond, 0, 0, errors.New("失败"))
	if got := testutil.ToFloat64(backtestRunsTotal.WithLabelValues("TEST_A", "error")); got != 1 {
		t.Errorf("失败次数期望 1, 得到 %v", got)
	}
}

func TestRecordDataFetchAndCache(t *testing.T) {
	pm := GetPrometheusMetrics()

	pm.RecordDataFetch("test_source", 10*time.Millisecond, nil)
	pm.RecordDataFetch("test_source", 10*time.Millisecond, errors.New("超时"))
	pm.RecordCacheLookup("hit")

	if got := testutil.ToFloat64(dataFetchTotal.WithLabelValues("test_source", "success")); got != 1 {
		t.Errorf("下载成功次数期望 1, 得到 %v", got)
	}
	if got := testutil.ToFloat64(dataFetchTotal.WithLabelValues("test_source", "error")); got != 1 {
		t.Errorf("下载失败次数期望 1, 得到 %v", got)
	}
	if got := testutil.ToFloat64(cacheLookupTotal.WithLabelValues("hit")); got < 1 {
		t.Errorf("缓存命中次数应至少为 1, 得到 %v", got)
	}
}

func TestRecordGridPair(t *testing.T) {
	pm := GetPrometheusMetrics()
	pm.RecordGridPair("TEST_G", nil)
	pm.RecordGridPair("TEST_G", nil)
	pm.RecordGridPair("TEST_G", errors.New("窗口过大"))

	if got := testutil.ToFloat64(gridPairsTotal.WithLabelValues("TEST_G", "success")); got != 2 {
		t.Errorf("网格成功组合期望 2, 得到 %v", got)
	}
	if got := testutil.ToFloat64(gridPairsTotal.WithLabelValues("TEST_G", "error")); got != 1 {
		t.Errorf("网格失败组合期望 1, 得到 %v", got)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	pm := GetPrometheusMetrics()
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/backtest", "200"))
	pm.RecordHTTPRequest("POST", "/api/backtest", 200, 10*time.Millisecond)
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/api/backtest", "200")); got != before+1 {
		t.Errorf("请求次数期望 %v, 得到 %v", before+1, got)
	}

	unmatched := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	pm.RecordHTTPRequest("GET", "", 404, time.Millisecond)
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != unmatched+1 {
		t.Errorf("未匹配路由应该记为 unmatched")
	}
}
