package main

import (
	"path/filepath"
	"testing"
)

func TestApplyFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-ticker", "qqq", "-fast", "10", "-slow", "30", "-cost", "0", "-fast-range", "5,15", "-no-cache"})
	if err != nil {
		t.Fatalf("解析参数失败: %v", err)
	}
	cfg, found, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || found {
		t.Fatalf("配置文件不存在时应使用默认配置: found=%v err=%v", found, err)
	}

	if err := applyFlags(cfg, opts); err != nil {
		t.Fatalf("应用参数失败: %v", err)
	}
	if cfg.Data.Symbol != "QQQ" {
		t.Errorf("期望标的 QQQ, 得到 %s", cfg.Data.Symbol)
	}
	if cfg.Backtest.Fast != 10 || cfg.Backtest.Slow != 30 || cfg.Backtest.TransactionCost != 0 {
		t.Errorf("回测参数未覆盖: %+v", cfg.Backtest)
	}
	if cfg.Backtest.InitialCash != 100000 {
		t.Errorf("未设置的参数应保留默认值, 得到 %v", cfg.Backtest.InitialCash)
	}
	if cfg.Grid.FastMin != 5 || cfg.Grid.FastMax != 15 || cfg.Grid.SlowMin != 50 {
		t.Errorf("网格区间不正确: %+v", cfg.Grid.GridSpec)
	}
	if cfg.Data.UseCache {
		t.Error("-no-cache 应关闭缓存")
	}
}

func TestApplyFlagsInvalid(t *testing.T) {
	opts, err := parseFlags([]string{"-fast", "50", "-slow", "20"})
	if err != nil {
		t.Fatal(err)
	}
	cfg, _, _ := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err := applyFlags(cfg, opts); err == nil {
		t.Error("快线大于慢线应该报错")
	}

	if _, err := parseFlags([]string{"-fast", "abc"}); err == nil {
		t.Error("非数字窗口应该报错")
	}
}
