package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormDatabase GORM 数据库实现
type GormDatabase struct {
	db *gorm.DB
}

// DBConfig 数据库配置
type DBConfig struct {
	Type            string        // sqlite, postgres, mysql
	DSN             string        // 数据源名称
	MaxOpenConns    int           // 最大打开连接数
	MaxIdleConns    int           // 最大空闲连接数
	ConnMaxLifetime time.Duration // 连接最大生命周期
	LogLevel        string        // 日志级别: silent, error, warn, info
}

// 批量写入大小
const saveBatchSize = 500

// NewGormDatabase 创建 GORM 数据库实例并自动迁移
func NewGormDatabase(config *DBConfig) (*GormDatabase, error) {
	var dialector gorm.Dialector

	switch config.Type {
	case "sqlite":
		dialector = sqlite.Open(config.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(config.DSN)
	case "mysql":
		dialector = mysql.Open(config.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", config.Type)
	}

	logLevel := logger.Silent
	switch config.LogLevel {
	case "error":
		logLevel = logger.Error
	case "warn":
		logLevel = logger.Warn
	case "info":
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if config.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	}

	if err := db.AutoMigrate(&PriceBar{}, &CachedRange{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	return &GormDatabase{db: db}, nil
}

// SavePriceBars 批量写入价格，(symbol, date) 冲突时覆盖收盘价
func (g *GormDatabase) SavePriceBars(ctx context.Context, bars []*PriceBar) error {
	if len(bars) == 0 {
		return nil
	}
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "symbol"}, {Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"close", "source"}),
		}).
		CreateInBatches(bars, saveBatchSize).Error
}

// GetPriceBars 按日期升序查询价格
func (g *GormDatabase) GetPriceBars(ctx context.Context, filter *PriceBarFilter) ([]*PriceBar, error) {
	query := g.db.WithContext(ctx).Model(&PriceBar{})

	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.Start != nil {
		query = query.Where("date >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("date <= ?", *filter.End)
	}

	query = query.Order("date ASC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var bars []*PriceBar
	if err := query.Find(&bars).Error; err != nil {
		return nil, err
	}
	return bars, nil
}

// SaveCachedRange 保存缓存区间（存在则更新）
func (g *GormDatabase) SaveCachedRange(ctx context.Context, r *CachedRange) error {
	return g.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(r).Error
}

// GetCachedRange 查询缓存区间，不存在时返回 ErrNotFound
func (g *GormDatabase) GetCachedRange(ctx context.Context, key string) (*CachedRange, error) {
	var r CachedRange
	err := g.db.WithContext(ctx).Where("cache_key = ?", key).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListCachedRanges 列出所有缓存区间
func (g *GormDatabase) ListCachedRanges(ctx context.Context) ([]*CachedRange, error) {
	var ranges []*CachedRange
	if err := g.db.WithContext(ctx).Order("symbol ASC, start ASC").Find(&ranges).Error; err != nil {
		return nil, err
	}
	return ranges, nil
}

// DeleteCachedRange 删除缓存区间及区间内的价格
// 与之重叠的其他区间会因价格数量不足而在下次读取时重新下载
func (g *GormDatabase) DeleteCachedRange(ctx context.Context, key string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r CachedRange
		err := tx.Where("cache_key = ?", key).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		if err := tx.Where("symbol = ? AND date >= ? AND date <= ?", r.Symbol, r.Start, r.End).
			Delete(&PriceBar{}).Error; err != nil {
			return err
		}
		return tx.Where("cache_key = ?", key).Delete(&CachedRange{}).Error
	})
}

// Ping 健康检查
func (g *GormDatabase) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接
func (g *GormDatabase) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
