package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"smabacktest/backtest"
	"smabacktest/config"
	"smabacktest/database"
	"smabacktest/datasource"
	"smabacktest/i18n"
	"smabacktest/lock"
	"smabacktest/logger"
	"smabacktest/metrics"
	"smabacktest/report"
	"smabacktest/utils"
	"smabacktest/web"
)

// Version 版本号
var Version = "1.0.0"

// cliOptions 命令行参数
type cliOptions struct {
	configPath string
	ticker     string
	start      string
	end        string
	fast       int
	slow       int
	cash       float64
	cost       float64
	grid       bool
	fastRange  string
	slowRange  string
	csvDir     string
	output     string
	ledger     string
	report     bool
	lang       string
	serve      bool
	noCache    bool
	debug      bool
	version    bool

	// 命令行显式设置过的参数
	set map[string]bool
}

func parseFlags(args []string) (*cliOptions, error) {
	opts := &cliOptions{set: make(map[string]bool)}
	fs := flag.NewFlagSet("smabacktest", flag.ContinueOnError)
	fs.StringVar(&opts.configPath, "config", "config.yaml", "配置文件路径")
	fs.StringVar(&opts.ticker, "ticker", "", "标的代码（默认 SPY）")
	fs.StringVar(&opts.start, "start", "", "开始日期 YYYY-MM-DD")
	fs.StringVar(&opts.end, "end", "", "结束日期 YYYY-MM-DD（默认今天）")
	fs.IntVar(&opts.fast, "fast", 0, "快线窗口（默认 20）")
	fs.IntVar(&opts.slow, "slow", 0, "慢线窗口（默认 50）")
	fs.Float64Var(&opts.cash, "cash", 0, "初始资金（默认 100000）")
	fs.Float64Var(&opts.cost, "cost", 0, "手续费率（默认 0.001）")
	fs.BoolVar(&opts.grid, "grid", false, "运行网格搜索")
	fs.StringVar(&opts.fastRange, "fast-range", "", "网格快线区间 min,max（默认 10,30）")
	fs.StringVar(&opts.slowRange, "slow-range", "", "网格慢线区间 min,max（默认 50,200）")
	fs.StringVar(&opts.csvDir, "csv", "", "从本地 CSV 目录读取价格（{dir}/{TICKER}.csv）")
	fs.StringVar(&opts.output, "output", "", "结果汇总 CSV 输出路径")
	fs.StringVar(&opts.ledger, "ledger", "", "账本 CSV 输出路径（单次回测）")
	fs.BoolVar(&opts.report, "report", false, "生成 Markdown 报告")
	fs.StringVar(&opts.lang, "lang", "", "输出语言 en-US / zh-CN")
	fs.BoolVar(&opts.serve, "serve", false, "启动 HTTP API 服务")
	fs.BoolVar(&opts.noCache, "no-cache", false, "不使用数据库缓存")
	fs.BoolVar(&opts.debug, "debug", false, "Debug 模式（日志写入文件，Gin 全量请求日志）")
	fs.BoolVar(&opts.version, "version", false, "显示版本号")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, nil
}

// loadConfig 读取配置文件，文件不存在时使用默认配置
func loadConfig(path string) (*config.Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.DefaultConfig(), false, nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// applyFlags 命令行参数覆盖配置
func applyFlags(cfg *config.Config, opts *cliOptions) error {
	if opts.set["ticker"] {
		cfg.Data.Symbol = opts.ticker
	}
	if opts.set["start"] {
		cfg.Data.Start = opts.start
	}
	if opts.set["end"] {
		cfg.Data.End = opts.end
	}
	if opts.set["fast"] {
		cfg.Backtest.Fast = opts.fast
	}
	if opts.set["slow"] {
		cfg.Backtest.Slow = opts.slow
	}
	if opts.set["cash"] {
		cfg.Backtest.InitialCash = opts.cash
	}
	if opts.set["cost"] {
		cfg.Backtest.TransactionCost = opts.cost
	}
	if opts.set["fast-range"] {
		lo, hi, err := utils.ParseIntRange(opts.fastRange)
		if err != nil {
			return fmt.Errorf("-fast-range: %w", err)
		}
		cfg.Grid.FastMin, cfg.Grid.FastMax = lo, hi
	}
	if opts.set["slow-range"] {
		lo, hi, err := utils.ParseIntRange(opts.slowRange)
		if err != nil {
			return fmt.Errorf("-slow-range: %w", err)
		}
		cfg.Grid.SlowMin, cfg.Grid.SlowMax = lo, hi
	}
	if opts.set["csv"] {
		cfg.Data.CSVDir = opts.csvDir
		cfg.Data.Sources = []string{"csv"}
	}
	if opts.set["output"] {
		cfg.Output.CSV = opts.output
	}
	if opts.set["ledger"] {
		cfg.Output.Ledger = opts.ledger
	}
	if opts.report {
		cfg.Output.Report = true
	}
	if opts.set["lang"] {
		cfg.Output.Language = opts.lang
	}
	if opts.noCache {
		cfg.Data.UseCache = false
	}
	if opts.serve {
		cfg.Web.Enabled = true
	}
	if opts.debug {
		cfg.System.LogLevel = "DEBUG"
	}
	return cfg.Validate()
}

// app 一次运行共享的依赖
type app struct {
	cfg     *config.Config
	fetcher *datasource.Fetcher
	db      database.Database
	locker  lock.DistributedLock
	metrics *metrics.PrometheusMetrics
	out     io.Writer
	lang    string
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	sources, err := datasource.NewSources(cfg.Data.Sources, datasource.SourceOptions{
		StooqBaseURL:   cfg.Data.Stooq.BaseURL,
		BinanceBaseURL: cfg.Data.Binance.BaseURL,
		CSVDir:         cfg.Data.CSVDir,
		Timeout:        time.Duration(cfg.Data.Timeout) * time.Second,
		RateLimit:      cfg.Data.RateLimit,
	})
	if err != nil {
		return nil, err
	}
	var source datasource.Source = datasource.NewFallbackSource(sources...)
	if len(sources) == 1 {
		source = sources[0]
	}

	a := &app{
		cfg:     cfg,
		metrics: metrics.GetPrometheusMetrics(),
		out:     os.Stdout,
		lang:    i18n.Normalize(cfg.Output.Language),
	}

	if cfg.Data.UseCache {
		db, err := database.NewDatabase(&database.Config{
			Type:            cfg.Database.Type,
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
			LogLevel:        cfg.Database.LogLevel,
		})
		if err != nil {
			logger.Warn("⚠️ 初始化价格缓存失败: %v，将直接下载数据", err)
		} else {
			a.db = db
			logger.Info("✅ 价格缓存已初始化 (%s)", cfg.Database.Type)
		}
	}

	lockTTL := time.Duration(cfg.DistributedLock.DefaultTTL) * time.Second
	locker, err := lock.NewDistributedLock(&lock.Config{
		Enabled: cfg.DistributedLock.Enabled,
		Type:    cfg.DistributedLock.Type,
		Prefix:  cfg.DistributedLock.Prefix,
		Redis: lock.RedisConfig{
			Addr:     cfg.DistributedLock.Redis.Addr,
			Password: cfg.DistributedLock.Redis.Password,
			DB:       cfg.DistributedLock.Redis.DB,
			PoolSize: cfg.DistributedLock.Redis.PoolSize,
		},
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("初始化分布式锁失败: %w", err)
	}
	if pinger, ok := locker.(interface{ Ping(context.Context) error }); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := pinger.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("⚠️ 分布式锁不可用: %v，使用进程内锁", err)
			locker.Close()
			locker = lock.NewLocalLock()
		} else {
			logger.Info("🔒 分布式锁已启用 (%s)", cfg.DistributedLock.Type)
		}
	}
	a.locker = locker
	a.fetcher = datasource.NewFetcher(source, a.db, locker, lockTTL)
	return a, nil
}

func (a *app) close() {
	if a.locker != nil {
		a.locker.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warn("⚠️ 关闭数据库失败: %v", err)
		}
	}
}

// runSingle 单次回测
func (a *app) runSingle(ctx context.Context) error {
	start, end, err := a.cfg.DateRange(utils.Today())
	if err != nil {
		return err
	}
	symbol := a.cfg.Data.Symbol
	params := a.cfg.Backtest

	report.PrintHeader(a.out, symbol, start, end, params, a.lang)

	prices, err := a.fetcher.Fetch(ctx, symbol, start, end)
	if err != nil {
		return err
	}

	begin := time.Now()
	result, err := backtest.Run(prices, params)
	a.metrics.RecordBacktest(symbol, time.Since(begin), metricOrZero(result, true), metricOrZero(result, false), err)
	if err != nil {
		return err
	}

	report.PrintSummary(a.out, result, a.lang)

	if path := a.cfg.Output.CSV; path != "" {
		row := report.SummaryFromResult(start, end, result)
		if err := report.SaveCSV(path, func(w io.Writer) error {
			return report.WriteSummaryCSV(w, []report.SummaryRow{row})
		}); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "\n"+i18n.TWithLang(a.lang, "output.saved", map[string]interface{}{"Path": path}))
	}
	if path := a.cfg.Output.Ledger; path != "" {
		if err := report.SaveCSV(path, func(w io.Writer) error {
			return report.WriteLedgerCSV(w, result.Ledger)
		}); err != nil {
			return err
		}
		logger.Info("📈 账本已保存: %s", path)
	}
	if a.cfg.Output.Report {
		path, err := report.GenerateMarkdownReport(a.cfg.Output.Dir, result)
		if err != nil {
			logger.Warn("⚠️ 生成报告失败: %v", err)
		} else {
			fmt.Fprintln(a.out, i18n.TWithLang(a.lang, "output.report_saved", map[string]interface{}{"Path": path}))
		}
	}
	return nil
}

func metricOrZero(r *backtest.Result, sharpe bool) float64 {
	if r == nil {
		return 0
	}
	if sharpe {
		return r.Metrics.SharpeRatio
	}
	return r.Metrics.CumulativeReturn
}

// runGrid 网格搜索
func (a *app) runGrid(ctx context.Context) error {
	start, end, err := a.cfg.DateRange(utils.Today())
	if err != nil {
		return err
	}
	symbol := a.cfg.Data.Symbol
	spec := a.cfg.Grid.GridSpec

	report.PrintGridHeader(a.out, symbol, len(spec.Pairs()), a.lang)

	prices, err := a.fetcher.Fetch(ctx, symbol, start, end)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	begin := time.Now()
	results, err := backtest.GridSearch(ctx, prices, spec, a.cfg.Backtest, a.cfg.Grid.Workers, func(r backtest.GridResult) {
		a.metrics.RecordGridPair(symbol, r.Err)
		mu.Lock()
		fmt.Fprintln(a.out, report.GridLine(r, a.lang))
		mu.Unlock()
	})
	a.metrics.RecordGridSearch(symbol, time.Since(begin))
	if err != nil {
		return err
	}
	logger.Debug("网格搜索完成: %d 组, 耗时 %v", len(results), time.Since(begin))

	report.WriteGridTop(a.out, results, a.cfg.Grid.Top, a.lang)

	if path := a.cfg.Output.CSV; path != "" {
		rows := report.SummaryFromGrid(symbol, start, end, a.cfg.Backtest, results)
		if err := report.SaveCSV(path, func(w io.Writer) error {
			return report.WriteSummaryCSV(w, rows)
		}); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "\n"+i18n.TWithLang(a.lang, "output.saved", map[string]interface{}{"Path": path}))
	}
	return nil
}

// serve 启动 HTTP API，配置文件存在时热更新
func (a *app) serve(ctx context.Context, configPath string, fileExists bool) error {
	api := web.NewAPI(a.cfg, a.fetcher)
	web.SetVersion(Version)

	if err := logger.InitWebLogger(); err != nil {
		logger.Warn("⚠️ 初始化 Web 日志失败: %v", err)
	}

	if fileExists {
		watcher, err := config.NewWatcher(configPath, a.cfg)
		if err != nil {
			logger.Warn("⚠️ 创建配置监听器失败: %v", err)
		} else {
			watcher.OnUpdate(api.UpdateConfig)
			watcher.OnUpdate(func(oldCfg, newCfg *config.Config) {
				logger.SetLevel(logger.ParseLogLevel(newCfg.System.LogLevel))
				logger.Info("🔄 配置已重新加载: %s", configPath)
			})
			if err := watcher.Start(ctx); err != nil {
				logger.Warn("⚠️ 启动配置监听失败: %v", err)
			} else {
				defer watcher.Stop()
				go func() {
					for err := range watcher.Errors() {
						logger.Warn("⚠️ 配置重新加载失败: %v", err)
					}
				}()
			}
		}
	}

	server := web.NewWebServer(a.cfg, api)
	if err := server.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("⏹️ 收到退出信号，正在关闭...")
	return nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if opts.version {
		fmt.Printf("SMA Crossover Backtester\n")
		fmt.Printf("Version: %s\n", Version)
		return
	}

	cfg, fileExists, err := loadConfig(opts.configPath)
	if err != nil {
		logger.Fatalf("❌ 加载配置失败: %v", err)
	}
	if err := applyFlags(cfg, opts); err != nil {
		logger.Fatalf("❌ 参数错误: %v", err)
	}

	if err := utils.SetLocation(cfg.System.Timezone); err != nil {
		logger.Warn("⚠️ 时区设置失败: %v", err)
	}
	logger.SetLocation(utils.Location())
	logger.SetLevel(logger.ParseLogLevel(cfg.System.LogLevel))
	defer logger.Close()

	if err := i18n.Init(cfg.Output.Language); err != nil {
		logger.Warn("⚠️ 加载翻译失败: %v", err)
	}
	if fileExists {
		logger.Debug("已加载配置文件: %s", opts.configPath)
	} else if opts.set["config"] {
		logger.Warn("⚠️ 配置文件 %s 不存在，使用默认配置", opts.configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		logger.Fatalf("❌ 初始化失败: %v", err)
	}
	defer a.close()

	switch {
	case opts.serve:
		err = a.serve(ctx, opts.configPath, fileExists)
	case opts.grid:
		err = a.runGrid(ctx)
	default:
		err = a.runSingle(ctx)
	}
	if err != nil {
		a.close()
		logger.Close()
		fmt.Fprintf(os.Stderr, "Error: %s\n", strings.TrimSpace(err.Error()))
		os.Exit(1)
	}
}
