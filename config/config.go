package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"smabacktest/backtest"
)

// DateLayout 配置与命令行使用的日期格式
const DateLayout = "2006-01-02"

// Config 回测系统配置
type Config struct {
	// 单次回测参数
	Backtest backtest.Params `yaml:"backtest" json:"backtest"`

	// 网格搜索
	Grid struct {
		backtest.GridSpec `yaml:",inline"`
		Workers           int `yaml:"workers" json:"workers"` // 并行数，0 表示 CPU 核数
		Top               int `yaml:"top" json:"top"`         // 输出前 N 名，默认 5
	} `yaml:"grid" json:"grid"`

	// 行情数据
	Data struct {
		Symbol    string   `yaml:"symbol" json:"symbol"`         // 默认标的
		Start     string   `yaml:"start" json:"start"`           // 开始日期 YYYY-MM-DD
		End       string   `yaml:"end" json:"end"`               // 结束日期，空表示今天
		Sources   []string `yaml:"sources" json:"sources"`       // 数据源优先级: stooq, binance, csv
		CSVDir    string   `yaml:"csv_dir" json:"csv_dir"`       // 本地 CSV 目录（csv 数据源）
		RateLimit float64  `yaml:"rate_limit" json:"rate_limit"` // 每秒请求数，默认 2
		Timeout   int      `yaml:"timeout" json:"timeout"`       // 单次请求超时（秒），默认 30
		UseCache  bool     `yaml:"use_cache" json:"use_cache"`   // 是否使用数据库缓存

		Stooq struct {
			BaseURL string `yaml:"base_url" json:"base_url"`
		} `yaml:"stooq" json:"stooq"`

		Binance struct {
			BaseURL string `yaml:"base_url" json:"base_url"` // 为空使用官方地址
		} `yaml:"binance" json:"binance"`
	} `yaml:"data" json:"data"`

	// 数据库配置（价格缓存）
	Database struct {
		Type            string `yaml:"type" json:"type"`                           // sqlite, postgres, mysql，默认 sqlite
		DSN             string `yaml:"dsn" json:"dsn"`                             // 默认 ./data/smabacktest.db
		MaxOpenConns    int    `yaml:"max_open_conns" json:"max_open_conns"`       // 默认 10
		MaxIdleConns    int    `yaml:"max_idle_conns" json:"max_idle_conns"`       // 默认 5
		ConnMaxLifetime int    `yaml:"conn_max_lifetime" json:"conn_max_lifetime"` // 秒，默认 3600
		LogLevel        string `yaml:"log_level" json:"log_level"`                 // silent, error, warn, info
	} `yaml:"database" json:"database"`

	// 分布式锁（多实例共享缓存时避免重复下载）
	DistributedLock struct {
		Enabled    bool   `yaml:"enabled" json:"enabled"`
		Type       string `yaml:"type" json:"type"`               // 目前只支持 redis
		Prefix     string `yaml:"prefix" json:"prefix"`           // 默认 "smabacktest:lock:"
		DefaultTTL int    `yaml:"default_ttl" json:"default_ttl"` // 下载锁 TTL（秒），默认 30，持锁期间自动续期

		Redis struct {
			Addr     string `yaml:"addr" json:"addr"`
			Password string `yaml:"password" json:"password"`
			DB       int    `yaml:"db" json:"db"`
			PoolSize int    `yaml:"pool_size" json:"pool_size"`
		} `yaml:"redis" json:"redis"`
	} `yaml:"distributed_lock" json:"distributed_lock"`

	// 输出
	Output struct {
		Dir      string `yaml:"dir" json:"dir"`           // 报告目录，默认 ./reports
		CSV      string `yaml:"csv" json:"csv"`           // 结果汇总 CSV 路径（可选）
		Ledger   string `yaml:"ledger" json:"ledger"`     // 账本 CSV 路径（可选）
		Report   bool   `yaml:"report" json:"report"`     // 是否生成 Markdown 报告
		Language string `yaml:"language" json:"language"` // 汇总语言 en-US / zh-CN
	} `yaml:"output" json:"output"`

	// Web 服务
	Web struct {
		Enabled bool   `yaml:"enabled" json:"enabled"`
		Host    string `yaml:"host" json:"host"` // 默认 0.0.0.0
		Port    int    `yaml:"port" json:"port"` // 默认 8080
	} `yaml:"web" json:"web"`

	System struct {
		LogLevel string `yaml:"log_level" json:"log_level"`
		Timezone string `yaml:"timezone" json:"timezone"` // 如 "Asia/Shanghai"
	} `yaml:"system" json:"system"`
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Backtest = backtest.DefaultParams()
	cfg.Grid.GridSpec = backtest.DefaultGridSpec()
	cfg.Data.Symbol = "SPY"
	cfg.Data.Start = "2015-01-01"
	cfg.Data.UseCache = true
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}
	return LoadConfigFromBytes(data)
}

// LoadConfigFromBytes 从字节数组加载配置，未填写的字段使用默认值
func LoadConfigFromBytes(data []byte) (*Config, error) {
	cfg := &Config{}
	cfg.Backtest = backtest.DefaultParams()
	cfg.Grid.GridSpec = backtest.DefaultGridSpec()
	cfg.Data.UseCache = true

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %v", err)
	}
	return nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.Backtest.PeriodsPerYear == 0 {
		c.Backtest.PeriodsPerYear = backtest.DefaultPeriodsPerYear
	}
	if err := c.Backtest.Validate(); err != nil {
		return err
	}
	if err := c.Grid.GridSpec.Validate(); err != nil {
		return err
	}
	if c.Grid.Workers < 0 {
		return fmt.Errorf("网格并行数不能为负数")
	}
	if c.Grid.Top <= 0 {
		c.Grid.Top = 5
	}

	// 数据
	c.Data.Symbol = strings.ToUpper(strings.TrimSpace(c.Data.Symbol))
	if c.Data.Symbol == "" {
		c.Data.Symbol = "SPY"
	}
	if c.Data.Start == "" {
		c.Data.Start = "2015-01-01"
	}
	start, err := time.Parse(DateLayout, c.Data.Start)
	if err != nil {
		return fmt.Errorf("开始日期格式错误 (data.start): %v", err)
	}
	if c.Data.End != "" {
		end, err := time.Parse(DateLayout, c.Data.End)
		if err != nil {
			return fmt.Errorf("结束日期格式错误 (data.end): %v", err)
		}
		if !end.After(start) {
			return fmt.Errorf("结束日期必须晚于开始日期")
		}
	}
	if len(c.Data.Sources) == 0 {
		c.Data.Sources = []string{"stooq", "binance"}
	}
	for i, s := range c.Data.Sources {
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case "stooq", "binance", "csv":
		default:
			return fmt.Errorf("不支持的数据源: %s", s)
		}
		c.Data.Sources[i] = s
	}
	if c.Data.CSVDir == "" {
		c.Data.CSVDir = "./data/csv"
	}
	if c.Data.RateLimit <= 0 {
		c.Data.RateLimit = 2
	}
	if c.Data.Timeout <= 0 {
		c.Data.Timeout = 30
	}
	if c.Data.Stooq.BaseURL == "" {
		c.Data.Stooq.BaseURL = "https://stooq.com"
	}

	// 数据库
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	switch c.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("不支持的数据库类型: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		if c.Database.Type != "sqlite" {
			return fmt.Errorf("数据库 %s 必须配置 dsn", c.Database.Type)
		}
		c.Database.DSN = "./data/smabacktest.db"
	}
	if c.Database.MaxOpenConns <= 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns <= 0 {
		c.Database.MaxIdleConns = 5
	}
	if c.Database.ConnMaxLifetime <= 0 {
		c.Database.ConnMaxLifetime = 3600
	}
	if c.Database.LogLevel == "" {
		c.Database.LogLevel = "error"
	}

	// 分布式锁，默认不启用
	if c.DistributedLock.Type == "" {
		c.DistributedLock.Type = "redis"
	}
	if c.DistributedLock.Prefix == "" {
		c.DistributedLock.Prefix = "smabacktest:lock:"
	}
	if c.DistributedLock.DefaultTTL <= 0 {
		c.DistributedLock.DefaultTTL = 30
	}
	if c.DistributedLock.Redis.Addr == "" {
		c.DistributedLock.Redis.Addr = "localhost:6379"
	}
	if c.DistributedLock.Redis.PoolSize <= 0 {
		c.DistributedLock.Redis.PoolSize = 10
	}

	// 输出
	if c.Output.Dir == "" {
		c.Output.Dir = "./reports"
	}
	if c.Output.Language == "" {
		c.Output.Language = "en-US"
	}

	// Web
	if c.Web.Host == "" {
		c.Web.Host = "0.0.0.0"
	}
	if c.Web.Port == 0 {
		c.Web.Port = 8080
	}
	if c.Web.Port < 0 || c.Web.Port > 65535 {
		return fmt.Errorf("Web 端口不合法: %d", c.Web.Port)
	}

	// 系统
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.Timezone != "" {
		if _, err := time.LoadLocation(c.System.Timezone); err != nil {
			return fmt.Errorf("时区不合法 (system.timezone): %v", err)
		}
	}

	return nil
}

// Location 返回配置的时区，未配置时为 UTC
func (c *Config) Location() *time.Location {
	if c.System.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.System.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DateRange 解析数据起止日期，end 为空时取 now 所在日期
func (c *Config) DateRange(now time.Time) (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, c.Data.Start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("开始日期格式错误: %v", err)
	}
	if c.Data.End == "" {
		y, m, d := now.Date()
		return start, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	end, err := time.Parse(DateLayout, c.Data.End)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("结束日期格式错误: %v", err)
	}
	return start, end, nil
}
