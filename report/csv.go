package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"smabacktest/backtest"
)

// SummaryRow 结果 CSV 的一行
type SummaryRow struct {
	Symbol  string
	Start   time.Time
	End     time.Time
	Params  backtest.Params
	Metrics backtest.MetricsReport
}

var summaryHeader = []string{
	"ticker", "start_date", "end_date", "fast_sma", "slow_sma", "initial_cash", "transaction_cost",
	"cumulative_return", "sharpe_ratio", "max_drawdown", "final_value", "total_return",
	"num_trades", "win_rate", "data_points",
}

// SummaryFromResult 由单次回测结果构造汇总行
func SummaryFromResult(start, end time.Time, r *backtest.Result) SummaryRow {
	return SummaryRow{Symbol: r.Symbol, Start: start, End: end, Params: r.Params, Metrics: r.Metrics}
}

// SummaryFromGrid 由网格结果构造汇总行，失败的组合被跳过
func SummaryFromGrid(symbol string, start, end time.Time, base backtest.Params, results []backtest.GridResult) []SummaryRow {
	rows := make([]SummaryRow, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		params := base
		params.Fast, params.Slow = r.Pair.Fast, r.Pair.Slow
		rows = append(rows, SummaryRow{Symbol: symbol, Start: start, End: end, Params: params, Metrics: r.Metrics})
	}
	return rows
}

// WriteSummaryCSV 写入汇总 CSV（NaN 写为空）
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(summaryHeader); err != nil {
		return err
	}
	for _, r := range rows {
		m := r.Metrics
		record := []string{
			r.Symbol,
			r.Start.Format(dateLayout),
			r.End.Format(dateLayout),
			strconv.Itoa(r.Params.Fast),
			strconv.Itoa(r.Params.Slow),
			csvFloat(r.Params.InitialCash),
			csvFloat(r.Params.TransactionCost),
			csvFloat(m.CumulativeReturn),
			csvFloat(m.SharpeRatio),
			csvFloat(m.MaxDrawdown),
			csvFloat(m.FinalValue),
			csvFloat(m.TotalReturn),
			strconv.Itoa(m.NumTrades),
			csvFloat(m.WinRate),
			strconv.Itoa(m.DataPoints),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLedgerCSV 写入逐日账本
func WriteLedgerCSV(w io.Writer, ledger *backtest.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"date", "close", "position", "trade", "cost", "cash", "portfolio_value"}); err != nil {
		return err
	}
	for _, row := range ledger.Rows {
		record := []string{
			row.Date.Format(dateLayout),
			csvFloat(row.Close),
			strconv.Itoa(row.Position),
			strconv.Itoa(row.Trade),
			csvFloat(row.Cost),
			csvFloat(row.Cash),
			csvFloat(row.PortfolioValue),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveCSV 创建文件（含目录）并写入
func SaveCSV(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建输出目录失败: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("创建 CSV 文件失败: %w", err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("写入 CSV 文件失败: %w", err)
	}
	return file.Close()
}
