package cache

import (
	"context"
	"time"
)

// Cache 登录 token 与资料读取结果的缓存
//
// 实现需要并发安全。expiration<=0 表示使用实现的默认过期时间（redis 为不过期）。
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	Clear(ctx context.Context) error
	Close() error
}

type Config struct {
	Type  string `env:"CACHE_TYPE"` // local|gocache|redis
	Redis RedisConfig
	Local LocalConfig
}

type RedisConfig struct {
	Addr         string        `env:"REDIS_ADDR"`
	Password     string        `env:"REDIS_PASSWORD"`
	DB           int           `env:"REDIS_DB"`
	Prefix       string        `env:"REDIS_PREFIX"`
	PoolSize     int           `env:"REDIS_POOL_SIZE"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"`
}

type LocalConfig struct {
	MaxSize           int           `env:"LOCAL_CACHE_MAX_SIZE"` // 仅 local 使用
	DefaultExpiration time.Duration `env:"LOCAL_CACHE_DEFAULT_EXPIRATION"`
	CleanupInterval   time.Duration `env:"LOCAL_CACHE_CLEANUP_INTERVAL"` // 仅 gocache 使用
}
