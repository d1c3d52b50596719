package datasource

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smabacktest/logger"
	"smabacktest/metrics"
)

// FallbackSource 按顺序尝试多个数据源，返回第一个有数据的结果
type FallbackSource struct {
	sources []Source
}

func NewFallbackSource(sources ...Source) *FallbackSource {
	return &FallbackSource{sources: sources}
}

func (f *FallbackSource) Name() string { return "fallback" }

func (f *FallbackSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	bars, _, err := f.FetchWithSource(ctx, symbol, start, end)
	return bars, err
}

// FetchWithSource 同 FetchDaily，并返回实际提供数据的数据源名称
func (f *FallbackSource) FetchWithSource(ctx context.Context, symbol string, start, end time.Time) ([]Bar, string, error) {
	if len(f.sources) == 0 {
		return nil, "", fmt.Errorf("未配置数据源")
	}

	pm := metrics.GetPrometheusMetrics()
	var errs []error
	for _, src := range f.sources {
		begin := time.Now()
		bars, err := src.FetchDaily(ctx, symbol, start, end)
		if err == nil && len(bars) == 0 {
			err = ErrNoData
		}
		pm.RecordDataFetch(src.Name(), time.Since(begin), err)

		if err == nil {
			logger.Info("✅ 已从 %s 获取 %s 数据 (%d 条)", src.Name(), symbol, len(bars))
			return bars, src.Name(), nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		logger.Warn("⚠️ %s 获取 %s 失败: %v", src.Name(), symbol, err)
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return nil, "", fmt.Errorf("所有数据源均获取失败: %w", errors.Join(errs...))
}
