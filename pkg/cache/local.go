package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// lruCache 单进程默认实现：容量满时淘汰最久未用的项，
// 过期时间按项记录，读取时检查
type lruCache struct {
	ttl   time.Duration
	items *expirable.LRU[string, entry]
}

type entry struct {
	value    interface{}
	deadline time.Time // 零值表示不过期
}

func (e entry) live(now time.Time) bool {
	return e.deadline.IsZero() || now.Before(e.deadline)
}

func NewLocalCache(config LocalConfig) Cache {
	size := config.MaxSize
	if size <= 0 {
		size = 1000
	}
	return &lruCache{
		ttl:   config.DefaultExpiration,
		items: expirable.NewLRU[string, entry](size, nil, 0),
	}
}

func (c *lruCache) Get(_ context.Context, key string) (interface{}, bool) {
	e, ok := c.items.Get(key)
	if !ok {
		return nil, false
	}
	if !e.live(time.Now()) {
		c.items.Remove(key)
		return nil, false
	}
	return e.value, true
}

func (c *lruCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	if expiration <= 0 {
		expiration = c.ttl
	}
	e := entry{value: value}
	if expiration > 0 {
		e.deadline = time.Now().Add(expiration)
	}
	c.items.Add(key, e)
	return nil
}

func (c *lruCache) Delete(_ context.Context, key string) error {
	c.items.Remove(key)
	return nil
}

func (c *lruCache) Exists(ctx context.Context, key string) bool {
	_, ok := c.Get(ctx, key)
	return ok
}

func (c *lruCache) Clear(context.Context) error {
	c.items.Purge()
	return nil
}

func (c *lruCache) Close() error { return nil }
