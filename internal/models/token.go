package models

import (
	"context"
	"time"

	"MoodCapture/pkg/cache"
	"MoodCapture/pkg/errors"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

const tokenKeyPrefix = "token:"

// TokenStore 不透明的 bearer token，存放在缓存中，过期即失效
type TokenStore struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewTokenStore(c cache.Cache, ttl time.Duration) *TokenStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStore{cache: c, ttl: ttl}
}

func (s *TokenStore) Issue(ctx context.Context, userID uint) (string, error) {
	token := uuid.NewString()
	if err := s.cache.Set(ctx, tokenKeyPrefix+token, userID, s.ttl); err != nil {
		return "", errors.WrapKind(errors.KindStorageFault, err, "store token")
	}
	return token, nil
}

// Resolve 未知或过期的 token 返回 ErrUnauthorized
func (s *TokenStore) Resolve(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, errors.ErrUnauthorized
	}
	v, ok := s.cache.Get(ctx, tokenKeyPrefix+token)
	if !ok {
		return 0, errors.ErrUnauthorized
	}
	id, err := cast.ToUintE(v)
	if err != nil || id == 0 {
		return 0, errors.ErrUnauthorized
	}
	return id, nil
}

func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, tokenKeyPrefix+token)
}

func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}
