// Package report 回测结果输出：终端摘要、CSV 与 Markdown 报告
package report

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"smabacktest/i18n"
)

// notAvailable NaN 指标的显示文本
const notAvailable = "N/A"

func printer(lang string) *message.Printer {
	switch i18n.Normalize(lang) {
	case "zh-CN":
		return message.NewPrinter(language.SimplifiedChinese)
	default:
		return message.NewPrinter(language.AmericanEnglish)
	}
}

// money 金额取整并按千分位分组，例如 100,000
func money(p *message.Printer, v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return p.Sprintf("%d", int64(math.Round(v)))
}

// percent 小数转百分比，保留两位
func percent(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return fmt.Sprintf("%.2f%%", v*100)
}

func ratio(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return notAvailable
	}
	return fmt.Sprintf("%.2f", v)
}

// csvFloat CSV 中 NaN 写为空字符串
func csvFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return fmt.Sprintf("%g", v)
}
