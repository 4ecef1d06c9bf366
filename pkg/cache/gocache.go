package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// janitorCache go-cache 实现，过期项由后台 janitor 按 CleanupInterval 回收，没有容量上限
type janitorCache struct {
	items *gocache.Cache
}

func NewGoCache(config LocalConfig) Cache {
	return &janitorCache{items: gocache.New(config.DefaultExpiration, config.CleanupInterval)}
}

func (jc *janitorCache) Get(_ context.Context, key string) (interface{}, bool) {
	return jc.items.Get(key)
}

func (jc *janitorCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = gocache.DefaultExpiration
	}
	jc.items.Set(key, value, expiration)
	return nil
}

func (jc *janitorCache) Delete(_ context.Context, key string) error {
	jc.items.Delete(key)
	return nil
}

func (jc *janitorCache) Exists(_ context.Context, key string) bool {
	_, ok := jc.items.Get(key)
	return ok
}

func (jc *janitorCache) Clear(context.Context) error {
	jc.items.Flush()
	return nil
}

func (jc *janitorCache) Close() error { return nil }
