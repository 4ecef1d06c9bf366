package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache 多个实例共享 token 时使用；所有键带 Prefix，值以 JSON 存储
type redisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(config RedisConfig) (Cache, error) {
	opts := &redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", config.Addr, err)
	}

	prefix := config.Prefix
	if prefix == "" {
		prefix = "moodcapture:"
	}
	return &redisCache{client: client, prefix: prefix}, nil
}

func (rc *redisCache) key(k string) string { return rc.prefix + k }

// Get 数字以 float64 返回，调用方用 cast 转换
func (rc *redisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := rc.client.Get(ctx, rc.key(key)).Bytes()
	if err != nil {
		return nil, false
	}
	var v interface{}
	if json.Unmarshal(raw, &v) != nil {
		return string(raw), true
	}
	return v, true
}

func (rc *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %q: %w", key, err)
	}
	if expiration < 0 {
		expiration = 0
	}
	return rc.client.Set(ctx, rc.key(key), raw, expiration).Err()
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, rc.key(key)).Err()
}

func (rc *redisCache) Exists(ctx context.Context, key string) bool {
	n, err := rc.client.Exists(ctx, rc.key(key)).Result()
	return err == nil && n > 0
}

// Clear 只删除本服务前缀下的键，不影响同库的其他数据
func (rc *redisCache) Clear(ctx context.Context) error {
	iter := rc.client.Scan(ctx, 0, rc.prefix+"*", 200).Iterator()
	batch := make([]string, 0, 200)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := rc.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return rc.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (rc *redisCache) Close() error {
	return rc.client.Close()
}
