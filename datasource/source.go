// Package datasource 日线收盘价下载、清洗与缓存
package datasource

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"smabacktest/backtest"
)

// ErrNoData 数据源没有返回可用数据
var ErrNoData = errors.New("datasource: no data returned")

// Bar 单日收盘价
type Bar struct {
	Date  time.Time
	Close float64
}

// Source 日线数据源
type Source interface {
	// Name 数据源名称（stooq, binance, csv）
	Name() string
	// FetchDaily 获取 [start, end] 区间内的日线收盘价
	FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error)
}

// Normalize 清洗数据：按日期升序、同日去重（保留最后一条）、
// 用前值填充非正数或非有限的收盘价；首个有效价格之前的数据丢弃
func Normalize(bars []Bar) ([]Bar, error) {
	if len(bars) == 0 {
		return nil, ErrNoData
	}

	sorted := make([]Bar, len(bars))
	for i, b := range bars {
		sorted[i] = Bar{Date: truncateDay(b.Date), Close: b.Close}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	deduped := make([]Bar, 0, len(sorted))
	for _, b := range sorted {
		if n := len(deduped); n > 0 && deduped[n-1].Date.Equal(b.Date) {
			deduped[n-1] = b
			continue
		}
		deduped = append(deduped, b)
	}

	out := make([]Bar, 0, len(deduped))
	last := math.NaN()
	for _, b := range deduped {
		if validClose(b.Close) {
			last = b.Close
		} else if math.IsNaN(last) {
			continue
		}
		out = append(out, Bar{Date: b.Date, Close: last})
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func validClose(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// truncateDay 取 UTC 日期
func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// filterRange 保留 [start, end] 区间内的数据
func filterRange(bars []Bar, start, end time.Time) []Bar {
	start, end = truncateDay(start), truncateDay(end)
	out := bars[:0]
	for _, b := range bars {
		d := truncateDay(b.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// ToSeries 转换为回测使用的价格序列
func ToSeries(symbol string, bars []Bar) (*backtest.PriceSeries, error) {
	points := make([]backtest.PricePoint, len(bars))
	for i, b := range bars {
		points[i] = backtest.PricePoint{Date: b.Date, Close: b.Close}
	}
	return backtest.NewPriceSeries(symbol, points)
}
