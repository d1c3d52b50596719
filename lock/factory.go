package lock

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Config 分布式锁配置
// 锁的 TTL 由调用方在 Lock/Extend 时传入（价格下载见 datasource.Fetcher）
type Config struct {
	Enabled bool
	Type    string // redis, none；未启用时使用进程内锁
	Prefix  string // Redis 键前缀
	Redis   RedisConfig
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// NewDistributedLock 根据配置创建锁实例
// 未启用时返回进程内锁（单实例模式）
func NewDistributedLock(config *Config) (DistributedLock, error) {
	if !config.Enabled {
		return NewLocalLock(), nil
	}

	switch config.Type {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
			PoolSize: config.Redis.PoolSize,
		})
		return NewRedisLock(client, config.Prefix), nil

	case "none":
		return NewNopLock(), nil

	default:
		return nil, fmt.Errorf("unsupported lock type: %s", config.Type)
	}
}
