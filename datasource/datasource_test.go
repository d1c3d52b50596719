package datasource

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalize(t *testing.T) {
	bars := []Bar{
		{Date: date(2024, 1, 3), Close: 0},
		{Date: date(2024, 1, 1), Close: math.NaN()},
		{Date: date(2024, 1, 2), Close: 100},
		{Date: date(2024, 1, 4), Close: 104},
		{Date: date(2024, 1, 4), Close: 105},
		{Date: date(2024, 1, 5), Close: math.Inf(1)},
	}

	got, err := Normalize(bars)
	if err != nil {
		t.Fatalf("清洗失败: %v", err)
	}

	want := []Bar{
		{Date: date(2024, 1, 2), Close: 100},
		{Date: date(2024, 1, 3), Close: 100},
		{Date: date(2024, 1, 4), Close: 105},
		{Date: date(2024, 1, 5), Close: 105},
	}
	if len(got) != len(want) {
		t.Fatalf("期望 %d 条, 得到 %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if !got[i].Date.Equal(want[i].Date) || got[i].Close != want[i].Close {
			t.Errorf("第 %d 条期望 %v, 得到 %v", i, want[i], got[i])
		}
	}

	if _, err := Normalize([]Bar{{Date: date(2024, 1, 1), Close: -1}}); !errors.Is(err, ErrNoData) {
		t.Errorf("没有有效价格应该返回 ErrNoData, 得到 %v", err)
	}
	if _, err := Normalize(nil); !errors.Is(err, ErrNoData) {
		t.Errorf("空输入应该返回 ErrNoData, 得到 %v", err)
	}
}

func TestParseDailyCSV(t *testing.T) {
	data := "Date,Open,High,Low,Close,Volume\n2024-01-02,1,1,1,470.5,100\n2024-01-03,1,1,1,468.8,100\n"
	bars, err := parseDailyCSV(strings.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(bars) != 2 || bars[0].Close != 470.5 || !bars[1].Date.Equal(date(2024, 1, 3)) {
		t.Errorf("解析结果不正确: %v", bars)
	}

	if _, err := parseDailyCSV(strings.NewReader("No data")); !errors.Is(err, ErrNoData) {
		t.Errorf("No data 应该返回 ErrNoData, 得到 %v", err)
	}
	if _, err := parseDailyCSV(strings.NewReader("Date,Open\n2024-01-02,1\n")); err == nil {
		t.Error("缺少 Close 列应该报错")
	}
}

func TestStooqSource(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		if r.URL.Path != "/q/d/l/" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("s") == "none.us" {
			fmt.Fprint(w, "No data")
			return
		}
		fmt.Fprint(w, "Date,Open,High,Low,Close,Volume\n2023-12-29,1,1,1,475.31,1\n2024-01-02,1,1,1,472.65,1\n2024-01-03,1,1,1,468.79,1\n")
	}))
	defer server.Close()

	src := NewStooqSource(server.URL, 5*time.Second, 100)
	bars, err := src.FetchDaily(context.Background(), "SPY", date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("下载失败: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("应过滤区间外数据, 得到 %d 条", len(bars))
	}
	if bars[0].Close != 472.65 {
		t.Errorf("收盘价不正确: %v", bars[0].Close)
	}
	for _, want := range []string{"s=spy.us", "d1=20240101", "d2=20240131", "i=d"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("请求参数缺少 %s: %s", want, gotQuery)
		}
	}

	if _, err := src.FetchDaily(context.Background(), "NONE", date(2024, 1, 1), date(2024, 1, 31)); !errors.Is(err, ErrNoData) {
		t.Errorf("无效代码应该返回 ErrNoData, 得到 %v", err)
	}
}

func TestStooqSymbol(t *testing.T) {
	cases := map[string]string{"SPY": "spy.us", "cdr.pl": "cdr.pl", "^SPX": "^spx"}
	for in, want := range cases {
		if got := stooqSymbol(in); got != want {
			t.Errorf("stooqSymbol(%q) 期望 %s, 得到 %s", in, want, got)
		}
	}
}

func TestBinanceSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("symbol") != "BTCUSDT" || q.Get("interval") != "1d" {
			http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
			return
		}
		day := int64(24 * time.Hour / time.Millisecond)
		open := date(2024, 1, 1).UnixMilli()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[
			[%d,"42000.0","43000.0","41000.0","42500.5","10.0",%d,"0",1,"0","0","0"],
			[%d,"42500.5","45000.0","42000.0","44100.0","10.0",%d,"0",1,"0","0","0"]
		]`, open, open+day-1, open+day, open+2*day-1)
	}))
	defer server.Close()

	src := NewBinanceSource(server.URL, 100)
	bars, err := src.FetchDaily(context.Background(), "btcusdt", date(2024, 1, 1), date(2024, 1, 2))
	if err != nil {
		t.Fatalf("下载失败: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("期望 2 条, 得到 %d", len(bars))
	}
	if bars[0].Close != 42500.5 || !bars[1].Date.Equal(date(2024, 1, 2)) {
		t.Errorf("K线转换不正确: %v", bars)
	}
}

func TestCSVFileSource(t *testing.T) {
	dir := t.TempDir()
	content := "Date,Close\n2024-01-02,10\n2024-01-03,11\n2024-02-01,12\n"
	if err := os.WriteFile(filepath.Join(dir, "ABC.csv"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	src := NewCSVFileSource(dir)
	bars, err := src.FetchDaily(context.Background(), "abc", date(2024, 1, 1), date(2024, 1, 31))
	if err != nil {
		t.Fatalf("读取失败: %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("期望 2 条, 得到 %d", len(bars))
	}

	if _, err := src.FetchDaily(context.Background(), "XYZ", date(2024, 1, 1), date(2024, 1, 31)); !errors.Is(err, ErrNoData) {
		t.Errorf("缺少文件应该返回 ErrNoData, 得到 %v", err)
	}
}

// fakeSource 测试用数据源
type fakeSource struct {
	name  string
	bars  []Bar
	err   error
	delay time.Duration
	mu    sync.Mutex
	calls int
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) FetchDaily(ctx context.Context, symbol string, start, end time.Time) ([]Bar, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return append([]Bar(nil), f.bars...), nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func sampleBars(n int) []Bar {
	bars := make([]Bar, n)
	for i := range bars {
		bars[i] = Bar{Date: date(2024, 1, 1).AddDate(0, 0, i), Close: 100 + float64(i)}
	}
	return bars
}

func TestFallbackSource(t *testing.T) {
	failing := &fakeSource{name: "stooq", err: errors.New("连接超时")}
	empty := &fakeSource{name: "binance"}
	good := &fakeSource{name: "csv", bars: sampleBars(3)}

	fs := NewFallbackSource(failing, empty, good)
	bars, name, err := fs.FetchWithSource(context.Background(), "SPY", date(2024, 1, 1), date(2024, 1, 3))
	if err != nil {
		t.Fatalf("回退失败: %v", err)
	}
	if name != "csv" || len(bars) != 3 {
		t.Errorf("应该由 csv 提供数据, 得到 %s (%d 条)", name, len(bars))
	}
	if failing.Calls() != 1 || empty.Calls() != 1 {
		t.Error("应该依次尝试每个数据源")
	}

	_, err = NewFallbackSource(failing, empty).FetchDaily(context.Background(), "SPY", date(2024, 1, 1), date(2024, 1, 3))
	if err == nil || !errors.Is(err, ErrNoData) {
		t.Errorf("全部失败时应该返回合并错误, 得到 %v", err)
	}
}

func TestFetcherWithoutCache(t *testing.T) {
	src := &fakeSource{name: "csv", bars: sampleBars(5)}
	f := NewFetcher(src, nil, nil, 0)

	series, err := f.Fetch(context.Background(), "spy", date(2024, 1, 1), date(2024, 1, 5))
	if err != nil {
		t.Fatal(err)
	}
	if series.Symbol != "SPY" || series.Len() != 5 {
		t.Errorf("价格序列不正确: %s %d", series.Symbol, series.Len())
	}

	if _, err := f.Fetch(context.Background(), "SPY", date(2024, 1, 5), date(2024, 1, 1)); err == nil {
		t.Error("结束日期早于开始日期应该报错")
	}
}

func TestCacheKey(t *testing.T) {
	if got := CacheKey("spy", date(2015, 1, 1), date(2024, 12, 31)); got != "SPY_20150101_20241231" {
		t.Errorf("缓存键不正确: %s", got)
	}
}
