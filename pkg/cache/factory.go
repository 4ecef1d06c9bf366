package cache

import (
	"strings"

	"MoodCapture/pkg/errors"
)

const (
	TypeLocal   = "local"
	TypeGoCache = "gocache"
	TypeRedis   = "redis"
)

// NewCache 按 CACHE_TYPE 选择实现；多实例部署需要 redis 才能共享 token
func NewCache(config Config) (Cache, error) {
	switch t := strings.ToLower(strings.TrimSpace(config.Type)); t {
	case "", TypeLocal:
		return NewLocalCache(config.Local), nil
	case TypeGoCache:
		return NewGoCache(config.Local), nil
	case TypeRedis:
		c, err := NewRedisCache(config.Redis)
		if err != nil {
			return nil, errors.WrapKind(errors.KindStorageFault, err, "open redis cache")
		}
		return c, nil
	default:
		return nil, errors.WithKindf(errors.KindValidationFailed, "unsupported cache type %q", config.Type)
	}
}
