package datasource

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"smabacktest/backtest"
	"smabacktest/database"
	"smabacktest/lock"
	"smabacktest/logger"
	"smabacktest/metrics"
)

// SourceOptions 数据源构造参数
type SourceOptions struct {
	StooqBaseURL   string
	BinanceBaseURL string
	CSVDir         string
	Timeout        time.Duration
	RateLimit      float64
}

// NewSources 按名称顺序创建数据源
func NewSources(names []string, opts SourceOptions) ([]Source, error) {
	sources := make([]Source, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(name) {
		case "stooq":
			sources = append(sources, NewStooqSource(opts.StooqBaseURL, opts.Timeout, opts.RateLimit))
		case "binance":
			sources = append(sources, NewBinanceSource(opts.BinanceBaseURL, opts.RateLimit))
		case "csv":
			sources = append(sources, NewCSVFileSource(opts.CSVDir))
		default:
			return nil, fmt.Errorf("不支持的数据源: %s", name)
		}
	}
	return sources, nil
}

// Fetcher 带数据库缓存的价格获取器
// 缓存按 symbol_start_end 精确匹配；未命中时持锁下载，避免多实例重复请求
type Fetcher struct {
	source  Source
	db      database.Database
	lock    lock.DistributedLock
	lockTTL time.Duration // 下载锁 TTL，持锁期间按 TTL/2 续期
	metrics *metrics.PrometheusMetrics
}

// NewFetcher 创建获取器，db 为 nil 时不使用缓存，locker 为 nil 时不加锁
func NewFetcher(source Source, db database.Database, locker lock.DistributedLock, lockTTL time.Duration) *Fetcher {
	if locker == nil {
		locker = lock.NewNopLock()
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Fetcher{
		source:  source,
		db:      db,
		lock:    locker,
		lockTTL: lockTTL,
		metrics: metrics.GetPrometheusMetrics(),
	}
}

// CacheKey 缓存键，例如 SPY_20150101_20241231
func CacheKey(symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s_%s_%s", strings.ToUpper(symbol), start.Format("20060102"), end.Format("20060102"))
}

// Fetch 获取 [start, end] 的日线价格序列
func (f *Fetcher) Fetch(ctx context.Context, symbol string, start, end time.Time) (*backtest.PriceSeries, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("标的代码不能为空")
	}
	start, end = truncateDay(start), truncateDay(end)
	if !end.After(start) {
		return nil, fmt.Errorf("结束日期必须晚于开始日期: %s - %s", start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	key := CacheKey(symbol, start, end)

	if f.db == nil {
		bars, _, err := f.download(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		return ToSeries(symbol, bars)
	}

	if bars, ok := f.loadCache(ctx, key); ok {
		logger.Info("✅ 从缓存加载: %s (%d 条)", key, len(bars))
		return ToSeries(symbol, bars)
	}

	held := time.Now()
	if err := f.lock.Lock(ctx, key, f.lockTTL); err != nil {
		f.metrics.RecordLockAcquire("error")
		return nil, fmt.Errorf("获取下载锁失败: %w", err)
	}
	f.metrics.RecordLockAcquire("success")
	defer func() {
		if err := f.lock.Unlock(context.Background(), key); err != nil && !errors.Is(err, lock.ErrNotHeld) {
			logger.Warn("⚠️ 释放下载锁失败: %v", err)
		}
		f.metrics.RecordLockHoldDuration(time.Since(held))
	}()
	stop := f.keepAlive(key)
	defer stop()

	// 等锁期间其他实例可能已写入缓存
	if bars, ok := f.loadCache(ctx, key); ok {
		logger.Info("✅ 从缓存加载: %s (%d 条)", key, len(bars))
		return ToSeries(symbol, bars)
	}

	logger.Info("⬇️ 下载 %s 日线 (%s 至 %s)", symbol, start.Format("2006-01-02"), end.Format("2006-01-02"))
	bars, sourceName, err := f.download(ctx, symbol, start, end)
	if err != nil {
		return nil, err
	}

	if err := f.saveCache(ctx, key, symbol, start, end, sourceName, bars); err != nil {
		logger.Warn("⚠️ 缓存保存失败: %v", err)
	} else {
		logger.Info("💾 已缓存: %s (%d 条)", key, len(bars))
	}
	return ToSeries(symbol, bars)
}

// keepAlive 持锁期间每半个 TTL 续期一次，下载耗时超过 TTL 时其他实例也不会重复下载
func (f *Fetcher) keepAlive(key string) (stop func()) {
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(f.lockTTL / 2)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := f.lock.Extend(context.Background(), key, f.lockTTL); err != nil {
					logger.Warn("⚠️ 下载锁续期失败: %s: %v", key, err)
					return
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
	}
}

func (f *Fetcher) download(ctx context.Context, symbol string, start, end time.Time) ([]Bar, string, error) {
	var (
		raw        []Bar
		sourceName string
		err        error
	)
	if fs, ok := f.source.(*FallbackSource); ok {
		raw, sourceName, err = fs.FetchWithSource(ctx, symbol, start, end)
	} else {
		begin := time.Now()
		raw, err = f.source.FetchDaily(ctx, symbol, start, end)
		sourceName = f.source.Name()
		f.metrics.RecordDataFetch(sourceName, time.Since(begin), err)
	}
	if err != nil {
		return nil, "", fmt.Errorf("获取 %s 数据失败: %w", symbol, err)
	}

	bars, err := Normalize(raw)
	if err != nil {
		return nil, "", fmt.Errorf("%s 数据为空: %w", symbol, err)
	}
	return bars, sourceName, nil
}

// loadCache 区间记录存在且价格数量不少于记录值时视为命中
func (f *Fetcher) loadCache(ctx context.Context, key string) ([]Bar, bool) {
	r, err := f.db.GetCachedRange(ctx, key)
	if err != nil {
		if !errors.Is(err, database.ErrNotFound) {
			logger.Warn("⚠️ 查询缓存失败: %v", err)
		}
		f.metrics.RecordCacheLookup("miss")
		return nil, false
	}

	start, end := r.Start, r.End
	rows, err := f.db.GetPriceBars(ctx, &database.PriceBarFilter{Symbol: r.Symbol, Start: &start, End: &end})
	if err != nil || len(rows) < r.Bars || len(rows) == 0 {
		f.metrics.RecordCacheLookup("stale")
		return nil, false
	}

	bars := make([]Bar, len(rows))
	for i, row := range rows {
		bars[i] = Bar{Date: row.Date.UTC(), Close: row.Close}
	}
	f.metrics.RecordCacheLookup("hit")
	return bars, true
}

func (f *Fetcher) saveCache(ctx context.Context, key, symbol string, start, end time.Time, source string, bars []Bar) error {
	rows := make([]*database.PriceBar, len(bars))
	for i, b := range bars {
		rows[i] = &database.PriceBar{Symbol: symbol, Date: b.Date, Close: b.Close, Source: source}
	}
	if err := f.db.SavePriceBars(ctx, rows); err != nil {
		return err
	}
	return f.db.SaveCachedRange(ctx, &database.CachedRange{
		CacheKey: key,
		Symbol:   symbol,
		Start:    start,
		End:      end,
		Source:   source,
		Bars:     len(bars),
	})
}

// ListCache 列出缓存区间
func (f *Fetcher) ListCache(ctx context.Context) ([]*database.CachedRange, error) {
	if f.db == nil {
		return []*database.CachedRange{}, nil
	}
	return f.db.ListCachedRanges(ctx)
}

// DeleteCache 删除缓存区间
func (f *Fetcher) DeleteCache(ctx context.Context, key string) error {
	if f.db == nil {
		return database.ErrNotFound
	}
	return f.db.DeleteCachedRange(ctx, key)
}
