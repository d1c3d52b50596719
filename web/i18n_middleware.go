package web

import (
	"strings"

	"github.com/gin-gonic/gin"

	smai18n "smabacktest/i18n"
)

// I18nMiddleware 解析 ?lang= 或 Accept-Language 并设置到上下文
func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		lang := c.Query("lang")
		if lang == "" {
			lang = parseAcceptLanguage(c.GetHeader("Accept-Language"))
		}
		c.Set("language", smai18n.Normalize(lang))
		c.Next()
	}
}

// parseAcceptLanguage 取优先级最高的语言
// 示例: "zh-CN,zh;q=0.9,en;q=0.8" -> "zh-CN"
func parseAcceptLanguage(acceptLang string) string {
	if acceptLang == "" {
		return smai18n.GetSystemLanguage()
	}
	first := strings.TrimSpace(strings.Split(acceptLang, ",")[0])
	if idx := strings.Index(first, ";"); idx != -1 {
		first = first[:idx]
	}
	return smai18n.Normalize(first)
}

// GetLanguage 从上下文获取语言
func GetLanguage(c *gin.Context) string {
	if lang, ok := c.Get("language"); ok {
		if l, ok := lang.(string); ok {
			return l
		}
	}
	return smai18n.GetSystemLanguage()
}

// T 翻译消息（从上下文获取语言）
func T(c *gin.Context, key string) string {
	return smai18n.TWithLang(GetLanguage(c), key)
}
