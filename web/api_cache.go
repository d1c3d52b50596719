package web

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smabacktest/logger"
)

// listCache 列出缓存区间
func (a *API) listCache(c *gin.Context) {
	ranges, err := a.fetcher.ListCache(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"caches":  ranges,
	})
}

// deleteCache 删除指定缓存
func (a *API) deleteCache(c *gin.Context) {
	key := c.Param("key")
	if err := a.fetcher.DeleteCache(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}
	logger.Info("🗑️ 已删除缓存: %s", key)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "ok",
	})
}
