package utils

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DateLayout 命令行日期格式
const DateLayout = "2006-01-02"

var (
	locationMu sync.RWMutex
	// globalLocation 用于计算“今天”的时区
	globalLocation = time.UTC
)

// SetLocation 设置全局时区，空字符串表示 UTC
func SetLocation(name string) error {
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		// 部分精简系统没有时区数据库
		if name == "UTC+8" || name == "Asia/Shanghai" {
			loc = time.FixedZone("UTC+8", 8*60*60)
		} else {
			return err
		}
	}
	locationMu.Lock()
	globalLocation = loc
	locationMu.Unlock()
	return nil
}

// Location 当前全局时区
func Location() *time.Location {
	locationMu.RLock()
	defer locationMu.RUnlock()
	return globalLocation
}

// Today 配置时区下的今天，返回 UTC 零点
func Today() time.Time {
	return DayOf(time.Now().In(Location()))
}

// DayOf 取 t 所在日期的 UTC 零点
func DayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("日期格式错误 %q，应为 YYYY-MM-DD", s)
	}
	return t, nil
}

// ParseIntRange 解析 "10,30"、"10-30"、"10:30" 或 "10 30" 形式的区间
func ParseIntRange(s string) (int, int, error) {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ',' || r == '-' || r == ':' || r == ' '
	})
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("区间格式错误 %q，应为 min,max", s)
	}
	lo, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("区间下限不是整数: %q", fields[0])
	}
	hi, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("区间上限不是整数: %q", fields[1])
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("区间上限小于下限: %d > %d", lo, hi)
	}
	return lo, hi, nil
}
