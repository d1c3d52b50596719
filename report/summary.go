package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"smabacktest/backtest"
	"smabacktest/i18n"
)

const dateLayout = "2006-01-02"

// PrintHeader 打印回测参数
func PrintHeader(w io.Writer, symbol string, start, end time.Time, params backtest.Params, lang string) {
	p := printer(lang)
	fmt.Fprintln(w, i18n.TWithLang(lang, "summary.running", map[string]interface{}{"Symbol": symbol}))
	fmt.Fprintln(w, i18n.TWithLang(lang, "summary.date_range", map[string]interface{}{
		"Start": start.Format(dateLayout), "End": end.Format(dateLayout),
	}))
	fmt.Fprintln(w, i18n.TWithLang(lang, "summary.sma_pair", map[string]interface{}{"Fast": params.Fast, "Slow": params.Slow}))
	fmt.Fprintln(w, i18n.TWithLang(lang, "summary.initial_cash", map[string]interface{}{"Cash": money(p, params.InitialCash)}))
	fmt.Fprintln(w, i18n.TWithLang(lang, "summary.transaction_cost", map[string]interface{}{"Cost": fmt.Sprintf("%.4f", params.TransactionCost)}))
	fmt.Fprintln(w, strings.Repeat("-", 50))
}

// PrintSummary 打印单次回测的指标摘要
func PrintSummary(w io.Writer, result *backtest.Result, lang string) {
	p := printer(lang)
	m := result.Metrics

	rows := []struct {
		key   string
		value string
	}{
		{"metric.cumulative_return", percent(m.CumulativeReturn)},
		{"metric.sharpe_ratio", ratio(m.SharpeRatio)},
		{"metric.max_drawdown", percent(m.MaxDrawdown)},
		{"metric.final_value", "$" + money(p, m.FinalValue)},
		{"metric.total_return", "$" + money(p, m.TotalReturn)},
		{"metric.num_trades", fmt.Sprintf("%d", m.NumTrades)},
		{"metric.win_rate", percent(m.WinRate)},
		{"metric.data_points", fmt.Sprintf("%d", m.DataPoints)},
	}

	fmt.Fprintln(w, i18n.TWithLang(lang, "summary.results"))
	writeRows(w, lang, rows)

	if m.DataPoints >= 2 {
		fmt.Fprintln(w, i18n.TWithLang(lang, "risk.title"))
		fmt.Fprintf(w, "  VaR 95%%:  %s   CVaR 95%%: %s\n", percent(m.Risk.VaR95), percent(m.Risk.CVaR95))
		fmt.Fprintf(w, "  VaR 99%%:  %s   CVaR 99%%: %s\n", percent(m.Risk.VaR99), percent(m.Risk.CVaR99))
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "%s: %s\n", i18n.TWithLang(lang, "warning.prefix"), warning)
	}
}

func writeRows(w io.Writer, lang string, rows []struct {
	key   string
	value string
}) {
	labels := make([]string, len(rows))
	width := 0
	for i, r := range rows {
		labels[i] = i18n.TWithLang(lang, r.key) + ":"
		if n := len([]rune(labels[i])); n > width {
			width = n
		}
	}
	for i, r := range rows {
		pad := width - len([]rune(labels[i]))
		fmt.Fprintf(w, "  %s%s %s\n", labels[i], strings.Repeat(" ", pad), r.value)
	}
}

// GridLine 单个网格组合的进度行
func GridLine(r backtest.GridResult, lang string) string {
	if r.Err != nil {
		return i18n.TWithLang(lang, "grid.pair_error", map[string]interface{}{
			"Fast": r.Pair.Fast, "Slow": r.Pair.Slow, "Error": r.Err.Error(),
		})
	}
	return i18n.TWithLang(lang, "grid.pair", map[string]interface{}{
		"Fast":     r.Pair.Fast,
		"Slow":     r.Pair.Slow,
		"Return":   percent(r.Metrics.CumulativeReturn),
		"Sharpe":   ratio(r.Metrics.SharpeRatio),
		"Drawdown": percent(r.Metrics.MaxDrawdown),
	})
}

// PrintGridHeader 打印网格搜索开始信息
func PrintGridHeader(w io.Writer, symbol string, pairs int, lang string) {
	fmt.Fprintln(w, i18n.TWithLang(lang, "grid.running", map[string]interface{}{"Symbol": symbol}))
	fmt.Fprintln(w, i18n.TWithLang(lang, "grid.testing", map[string]interface{}{"Count": pairs}))
	fmt.Fprintln(w, strings.Repeat("-", 50))
}

// WriteGridTop 打印排名前 n 的组合（results 需已排序）
func WriteGridTop(w io.Writer, results []backtest.GridResult, n int, lang string) {
	top := backtest.Top(results, n)
	fmt.Fprintln(w)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w, i18n.TWithLang(lang, "grid.top", map[string]interface{}{"Count": n}))
	fmt.Fprintln(w, strings.Repeat("=", 50))
	for i, r := range top {
		fmt.Fprintf(w, "%d. %s\n", i+1, GridLine(r, lang))
	}
}
