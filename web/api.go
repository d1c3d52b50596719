package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"smabacktest/backtest"
	"smabacktest/config"
	"smabacktest/database"
	"smabacktest/datasource"
	"smabacktest/metrics"
)

var (
	versionMu sync.RWMutex
	version   = "dev"
)

// SetVersion 设置 /health 返回的版本号
func SetVersion(v string) {
	versionMu.Lock()
	defer versionMu.Unlock()
	version = v
}

func getVersion() string {
	versionMu.RLock()
	defer versionMu.RUnlock()
	return version
}

// PriceFetcher 价格数据获取与缓存管理（datasource.Fetcher 实现）
type PriceFetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time) (*backtest.PriceSeries, error)
	ListCache(ctx context.Context) ([]*database.CachedRange, error)
	DeleteCache(ctx context.Context, key string) error
}

// API 回测接口，配置可热更新
type API struct {
	fetcher PriceFetcher
	metrics *metrics.PrometheusMetrics
	now     func() time.Time

	mu  sync.RWMutex
	cfg *config.Config
}

// NewAPI 创建接口
func NewAPI(cfg *config.Config, fetcher PriceFetcher) *API {
	return &API{
		fetcher: fetcher,
		metrics: metrics.GetPrometheusMetrics(),
		now:     time.Now,
		cfg:     cfg,
	}
}

// UpdateConfig 配置热更新回调（config.Watcher）
func (a *API) UpdateConfig(oldCfg, newCfg *config.Config) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg = newCfg
}

// Config 当前配置
func (a *API) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// statusForError 输入类错误返回 400，其余 500
func statusForError(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidParameter),
		errors.Is(err, backtest.ErrMissingColumn),
		errors.Is(err, backtest.ErrInsufficientData):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, datasource.ErrNoData):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorKey 错误对应的翻译 key
func errorKey(err error) string {
	switch {
	case errors.Is(err, backtest.ErrInvalidParameter):
		return "error.invalid_parameter"
	case errors.Is(err, backtest.ErrMissingColumn):
		return "error.missing_column"
	case errors.Is(err, backtest.ErrInsufficientData):
		return "error.insufficient_data"
	case errors.Is(err, database.ErrNotFound), errors.Is(err, datasource.ErrNoData):
		return "error.not_found"
	default:
		return "error.internal"
	}
}

// respondError 返回本地化的错误响应
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"message": T(c, errorKey(err)) + ": " + err.Error(),
	})
}

// respondBadRequest 请求体或查询参数格式错误
func respondBadRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": T(c, "error.bad_request") + ": " + err.Error(),
	})
}

// getHealth 健康检查
func getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": getVersion(),
	})
}
