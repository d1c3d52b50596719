package datasource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// StooqSource Stooq 日线 CSV 下载
type StooqSource struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewStooqSource 创建 Stooq 数据源，rps 为每秒请求数
func NewStooqSource(baseURL string, timeout time.Duration, rps float64) *StooqSource {
	if baseURL == "" {
		baseURL = "https://stooq.com"
	}
	if rps <= 0 {
		rps = 2
	}
	return &StooqSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (s *StooqSource) Name() string { return "stooq" }

// stooqSymbol 没有市场后缀的代码默认为美股（SPY → spy.us）
func stooqSymbol(symbol string) string {
	symbol = strings.ToLower(strings.TrimSpace(symbol))
	if strings.ContainsAny(symbol, ".^") {
		return symbol
	}
	return symbol + ".us"
}

// FetchDaily 下载日线，Stooq 对无效代码返回 "No data"
func (s *StooqSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("s", stooqSymbol(symbol))
	q.Set("d1", start.Format("20060102"))
	q.Set("d2", end.Format("20060102"))
	q.Set("i", "d")
	reqURL := s.baseURL + "/q/d/l/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求 Stooq 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("Stooq 返回状态码 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	bars, err := parseDailyCSV(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("解析 Stooq 数据失败 (%s): %w", symbol, err)
	}
	return filterRange(bars, start, end), nil
}

// parseDailyCSV 解析带表头的日线 CSV（需要 Date 与 Close 列，列顺序不限）
func parseDailyCSV(r io.Reader) ([]Bar, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoData
	}
	if err != nil {
		return nil, err
	}

	dateIdx, closeIdx := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			dateIdx = i
		case "close":
			closeIdx = i
		}
	}
	if dateIdx < 0 || closeIdx < 0 {
		if len(header) == 1 && strings.Contains(strings.ToLower(header[0]), "no data") {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("缺少 Date/Close 列: %v", header)
	}

	bars := make([]Bar, 0, 256)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(record) <= dateIdx || len(record) <= closeIdx {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("日期格式错误 %q: %w", record[dateIdx], err)
		}
		// 无法解析的收盘价记为 0，由 Normalize 前值填充
		closePrice, _ := strconv.ParseFloat(strings.TrimSpace(record[closeIdx]), 64)
		bars = append(bars, Bar{Date: date, Close: closePrice})
	}
	if len(bars) == 0 {
		return nil, ErrNoData
	}
	return bars, nil
}
