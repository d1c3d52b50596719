package web

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 创建路由，logAll=true 时记录全部请求日志
func NewRouter(api *API, logAll bool) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(GinLoggerMiddleware(logAll))
	r.Use(I18nMiddleware())
	SetupRoutes(r, api)
	return r
}

// SetupRoutes 设置路由
func SetupRoutes(r *gin.Engine, api *API) {
	r.GET("/health", getHealth)

	// Prometheus metrics 端点（供 Prometheus 抓取）
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		backtestAPI := apiGroup.Group("/backtest")
		{
			backtestAPI.POST("", api.runBacktest)
			backtestAPI.POST("/grid", api.runGrid)
		}

		cacheAPI := apiGroup.Group("/cache")
		{
			cacheAPI.GET("", api.listCache)
			cacheAPI.DELETE("/:key", api.deleteCache)
		}
	}
}
