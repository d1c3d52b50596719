package datasource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CSVFileSource 本地 CSV 文件（{dir}/{SYMBOL}.csv，含 Date 与 Close 列）
type CSVFileSource struct {
	dir string
}

func NewCSVFileSource(dir string) *CSVFileSource {
	return &CSVFileSource{dir: dir}
}

func (c *CSVFileSource) Name() string { return "csv" }

func (c *CSVFileSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := c.resolve(symbol)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开 CSV 文件失败: %w", err)
	}
	defer f.Close()

	bars, err := parseDailyCSV(f)
	if err != nil {
		return nil, fmt.Errorf("解析 CSV 文件失败 (%s): %w", path, err)
	}
	bars = filterRange(bars, start, end)
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}

// resolve 依次尝试原样、大写、小写文件名
func (c *CSVFileSource) resolve(symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	for _, name := range []string{symbol, strings.ToUpper(symbol), strings.ToLower(symbol)} {
		path := filepath.Join(c.dir, name+".csv")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: 未找到 %s 的 CSV 文件 (%s)", ErrNoData, symbol, c.dir)
}
