package middleware

import (
	"context"
	"net/http"
	"strings"

	"MoodCapture/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
)

const (
	ContextUserID = "user_id"
	ContextToken  = "token"
)

// TokenResolver 将 bearer token 解析为用户 id
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (uint, error)
}

// BearerToken 取 Authorization: Bearer <token>
func BearerToken(c *gin.Context) string {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// AuthRequired 校验身份，失败直接 401，后续 handler 不会执行
func AuthRequired(resolver TokenResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "Missing bearer token"})
			return
		}
		uid, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil || uid == 0 {
			msg := "Invalid or expired token"
			if err != nil && !errors.Is(err, errors.ErrUnauthorized) {
				msg = "Server error"
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": msg})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": msg})
			return
		}
		c.Set(ContextUserID, uid)
		c.Set(ContextToken, token)
		c.Next()
	}
}

// CurrentUserID 取 AuthRequired 写入的用户 id，未登录为 0
func CurrentUserID(c *gin.Context) uint {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0
	}
	return cast.ToUint(v)
}
