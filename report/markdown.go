package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"smabacktest/backtest"
)

// maxReportTrips 报告中列出的最多持仓段数
const maxReportTrips = 20

// GenerateMarkdownReport 生成 Markdown 回测报告，返回文件路径
func GenerateMarkdownReport(dir string, result *backtest.Result) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	filename := fmt.Sprintf("sma_%d_%d_%s_%s.md",
		result.Params.Fast,
		result.Params.Slow,
		result.Symbol,
		time.Now().Format("2006-01-02_15-04-05"),
	)
	reportPath := filepath.Join(dir, filename)

	content, err := RenderMarkdown(result)
	if err != nil {
		return "", fmt.Errorf("渲染报告模板失败: %w", err)
	}
	if err := os.WriteFile(reportPath, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}
	return reportPath, nil
}

// reportData 报告模板数据
type reportData struct {
	Symbol         string
	Fast           int
	Slow           int
	GeneratedAt    string
	StartDate      string
	EndDate        string
	Days           int
	InitialCapital string
	FinalCapital   string
	CostRate       string

	CumulativeReturn string
	TotalReturn      string
	MaxDrawdown      string
	SharpeRatio      string
	Volatility       string
	RollingSharpe    string

	NumTrades  int
	WinRate    string
	RoundTrips []tripRow

	VaR95  string
	VaR99  string
	CVaR95 string
	CVaR99 string

	Warnings   []string
	Conclusion string
}

type tripRow struct {
	Entry     string
	Exit      string
	Direction string
	EntryPx   string
	ExitPx    string
	PnL       string
	Open      bool
}

func prepareReportData(result *backtest.Result) reportData {
	m := result.Metrics
	p := printer("en-US")
	rows := result.Ledger.Rows
	start, end := rows[0].Date, rows[len(rows)-1].Date

	trips := make([]tripRow, 0, len(result.Trades.RoundTrips))
	for i, rt := range result.Trades.RoundTrips {
		if i >= maxReportTrips {
			break
		}
		direction := "long"
		if rt.Direction < 0 {
			direction = "short"
		}
		trips = append(trips, tripRow{
			Entry:     rt.EntryDate.Format(dateLayout),
			Exit:      rt.ExitDate.Format(dateLayout),
			Direction: direction,
			EntryPx:   fmt.Sprintf("%.2f", rt.EntryPrice),
			ExitPx:    fmt.Sprintf("%.2f", rt.ExitPrice),
			PnL:       fmt.Sprintf("%.2f", rt.PnL),
			Open:      rt.Open,
		})
	}

	volatility, rollingSharpe := notAvailable, notAvailable
	if r := m.Rolling; r != nil && len(r.Volatility) > 0 {
		volatility = percent(r.Volatility[len(r.Volatility)-1])
		rollingSharpe = ratio(r.Sharpe[len(r.Sharpe)-1])
	}

	return reportData{
		Symbol:         result.Symbol,
		Fast:           result.Params.Fast,
		Slow:           result.Params.Slow,
		GeneratedAt:    time.Now().Format("2006-01-02 15:04:05"),
		StartDate:      start.Format(dateLayout),
		EndDate:        end.Format(dateLayout),
		Days:           int(end.Sub(start).Hours() / 24),
		InitialCapital: money(p, result.Params.InitialCash),
		FinalCapital:   money(p, m.FinalValue),
		CostRate:       fmt.Sprintf("%.4f", result.Params.TransactionCost),

		CumulativeReturn: percent(m.CumulativeReturn),
		TotalReturn:      money(p, m.TotalReturn),
		MaxDrawdown:      percent(m.MaxDrawdown),
		SharpeRatio:      ratio(m.SharpeRatio),
		Volatility:       volatility,
		RollingSharpe:    rollingSharpe,

		NumTrades:  m.NumTrades,
		WinRate:    percent(m.WinRate),
		RoundTrips: trips,

		VaR95:  percent(m.Risk.VaR95),
		VaR99:  percent(m.Risk.VaR99),
		CVaR95: percent(m.Risk.CVaR95),
		CVaR99: percent(m.Risk.CVaR99),

		Warnings:   result.Warnings,
		Conclusion: generateConclusion(m),
	}
}

// generateConclusion 按收益、回撤、夏普给出简评
func generateConclusion(m backtest.MetricsReport) string {
	var conclusions []string

	switch {
	case m.CumulativeReturn > 0.5:
		conclusions = append(conclusions, "✅ 策略表现优秀，累计收益率超过 50%")
	case m.CumulativeReturn > 0.2:
		conclusions = append(conclusions, "✅ 策略表现良好，累计收益率超过 20%")
	case m.CumulativeReturn > 0:
		conclusions = append(conclusions, "⚠️ 策略盈利，但收益率较低")
	default:
		conclusions = append(conclusions, "❌ 策略亏损，需要调整均线参数")
	}

	switch {
	case m.MaxDrawdown > -0.1:
		conclusions = append(conclusions, "✅ 风险控制良好，最大回撤小于 10%")
	case m.MaxDrawdown > -0.2:
		conclusions = append(conclusions, "⚠️ 风险适中，最大回撤在 10-20% 之间")
	default:
		conclusions = append(conclusions, "❌ 风险较高，最大回撤超过 20%")
	}

	switch {
	case math.IsNaN(m.SharpeRatio):
		conclusions = append(conclusions, "⚠️ 组合价值没有波动，夏普比率无定义")
	case m.SharpeRatio > 2:
		conclusions = append(conclusions, "✅ 风险调整收益优秀，夏普比率 > 2")
	case m.SharpeRatio > 1:
		conclusions = append(conclusions, "✅ 风险调整收益良好，夏普比率 > 1")
	case m.SharpeRatio > 0:
		conclusions = append(conclusions, "⚠️ 风险调整收益一般，夏普比率 < 1")
	default:
		conclusions = append(conclusions, "❌ 风险调整收益差，夏普比率为负")
	}

	if m.NumTrades == 0 {
		conclusions = append(conclusions, "⚠️ 回测期间没有发生交叉，未产生交易")
	}

	return strings.Join(conclusions, "\n\n")
}

const markdownTemplate = `# SMA {{.Fast}}/{{.Slow}} 均线交叉回测报告

生成时间: {{.GeneratedAt}}

## 执行摘要

- **标的**: {{.Symbol}}
- **回测期间**: {{.StartDate}} 至 {{.EndDate}} ({{.Days}} 天)
- **初始资金**: ${{.InitialCapital}}
- **期末价值**: ${{.FinalCapital}}
- **手续费率**: {{.CostRate}}
- **累计收益率**: {{.CumulativeReturn}}
- **最大回撤**: {{.MaxDrawdown}}
- **夏普比率**: {{.SharpeRatio}}

## 收益与风险

| 指标 | 数值 |
|------|------|
| 累计收益率 | {{.CumulativeReturn}} |
| 总盈亏 | ${{.TotalReturn}} |
| 最大回撤 | {{.MaxDrawdown}} |
| 夏普比率 | {{.SharpeRatio}} |
| 滚动波动率（最新） | {{.Volatility}} |
| 滚动夏普（最新） | {{.RollingSharpe}} |

## 交易指标

| 指标 | 数值 |
|------|------|
| 交易次数 | {{.NumTrades}} |
| 胜率 | {{.WinRate}} |

## 持仓段明细（前20段）

| 进场 | 出场 | 方向 | 进场价 | 出场价 | 价差 |
|------|------|------|------|------|------|
{{range .RoundTrips}}| {{.Entry}} | {{.Exit}}{{if .Open}} (持仓中){{end}} | {{.Direction}} | {{.EntryPx}} | {{.ExitPx}} | {{.PnL}} |
{{end}}

## 高级风险指标

| 指标 | 数值 | 说明 |
|------|------|------|
| VaR (95%) | {{.VaR95}} | 95% 置信度下的单日最大损失 |
| VaR (99%) | {{.VaR99}} | 99% 置信度下的单日最大损失 |
| CVaR (95%) | {{.CVaR95}} | 超过 VaR 的平均损失 |
| CVaR (99%) | {{.CVaR99}} | 超过 VaR 的平均损失 |
{{if .Warnings}}
## 警告
{{range .Warnings}}
- {{.}}{{end}}
{{end}}
## 结论

{{.Conclusion}}

---

*本报告由 smabacktest 自动生成*
`

var reportTemplate = template.Must(template.New("report").Parse(markdownTemplate))

// RenderMarkdown 渲染报告内容
func RenderMarkdown(result *backtest.Result) (string, error) {
	if result == nil || result.Ledger.Len() == 0 {
		return "", fmt.Errorf("回测结果为空")
	}
	var buf strings.Builder
	if err := reportTemplate.Execute(&buf, prepareReportData(result)); err != nil {
		return "", err
	}
	return buf.String(), nil
}
