package database

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("database: record not found")

// Database 价格缓存数据库接口
type Database interface {
	// 日线价格
	SavePriceBars(ctx context.Context, bars []*PriceBar) error
	GetPriceBars(ctx context.Context, filter *PriceBarFilter) ([]*PriceBar, error)

	// 缓存区间
	SaveCachedRange(ctx context.Context, r *CachedRange) error
	GetCachedRange(ctx context.Context, key string) (*CachedRange, error)
	ListCachedRanges(ctx context.Context) ([]*CachedRange, error)
	DeleteCachedRange(ctx context.Context, key string) error

	// 健康检查
	Ping(ctx context.Context) error

	// 关闭连接
	Close() error
}

// 数据模型

// PriceBar 单日收盘价，(symbol, date) 唯一
type PriceBar struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Symbol    string    `gorm:"uniqueIndex:idx_symbol_date;size:50" json:"symbol"`
	Date      time.Time `gorm:"uniqueIndex:idx_symbol_date" json:"date"`
	Close     float64   `json:"close"`
	Source    string    `gorm:"size:20" json:"source"` // stooq, binance, csv
	CreatedAt time.Time `json:"created_at"`
}

// CachedRange 已缓存的下载区间（键为 symbol_start_end）
type CachedRange struct {
	CacheKey  string    `gorm:"primaryKey;column:cache_key;size:128" json:"key"`
	Symbol    string    `gorm:"index;size:50" json:"symbol"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Source    string    `gorm:"size:20" json:"source"`
	Bars      int       `json:"bars"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PriceBarFilter 价格查询条件
type PriceBarFilter struct {
	Symbol string
	Start  *time.Time
	End    *time.Time
	Limit  int
}
