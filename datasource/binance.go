package datasource

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"golang.org/x/time/rate"
)

// Binance 单次最多返回 1000 根K线
const binanceKlineLimit = 1000

// BinanceSource Binance 现货日线（公开接口，无需 API Key）
type BinanceSource struct {
	client  *binance.Client
	limiter *rate.Limiter
}

// NewBinanceSource 创建 Binance 数据源，baseURL 为空时使用官方地址
func NewBinanceSource(baseURL string, rps float64) *BinanceSource {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = strings.TrimSuffix(baseURL, "/")
	}
	if rps <= 0 {
		rps = 5
	}
	return &BinanceSource{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (b *BinanceSource) Name() string { return "binance" }

// FetchDaily 分页获取 1d K线，收盘价取 Close，日期取开盘时间
func (b *BinanceSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	startMs := truncateDay(start).UnixMilli()
	endMs := truncateDay(end).Add(24*time.Hour).UnixMilli() - 1

	bars := make([]Bar, 0, 512)
	for startMs <= endMs {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		klines, err := b.client.NewKlinesService().
			Symbol(symbol).
			Interval("1d").
			StartTime(startMs).
			EndTime(endMs).
			Limit(binanceKlineLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("获取历史K线失败: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			closePrice, err := strconv.ParseFloat(k.Close, 64)
			if err != nil {
				closePrice = 0
			}
			bars = append(bars, Bar{
				Date:  time.UnixMilli(k.OpenTime).UTC(),
				Close: closePrice,
			})
		}

		if len(klines) < binanceKlineLimit {
			break
		}
		startMs = klines[len(klines)-1].OpenTime + 1
	}

	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}
