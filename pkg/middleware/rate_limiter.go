package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig 提交限流配置
//
// Rate 使用 limiter 的格式，例如 "30-M"；Routes 按路由模板覆盖速率。
// Identifier 为 "user" 时按登录用户计数，未登录的请求退回到客户端 IP。
type RateLimiterConfig struct {
	Rate       string            `json:"rate"`
	Routes     map[string]string `json:"routes"`
	Identifier string            `json:"identifier"` // user|ip
	AddHeaders bool              `json:"add_headers"`
}

// MetricsObserver metrics.Metrics 实现了它
type MetricsObserver interface {
	OnAllow(route string, key string)
	OnDeny(route string, key string)
}

type RateLimiter struct {
	cfg      RateLimiterConfig
	store    limiter.Store
	observer MetricsObserver

	mu     sync.Mutex
	byRate map[string]*limiter.Limiter
}

// NewRateLimiter store 为 nil 时使用进程内存
func NewRateLimiter(cfg RateLimiterConfig, store limiter.Store) *RateLimiter {
	if store == nil {
		store = memory.NewStore()
	}
	if cfg.Rate == "" {
		cfg.Rate = "30-M"
	}
	return &RateLimiter{cfg: cfg, store: store, byRate: make(map[string]*limiter.Limiter)}
}

func (l *RateLimiter) WithObserver(observer MetricsObserver) *RateLimiter {
	l.observer = observer
	return l
}

// Middleware 必须挂在 AuthRequired 之后才能按用户计数
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		key := l.keyOf(c)

		lim, err := l.limiterFor(route)
		if err != nil {
			c.Next()
			return
		}
		state, err := lim.Get(c, key)
		if err != nil {
			// 存储故障时放行
			c.Next()
			return
		}

		if l.cfg.AddHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(state.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(state.Remaining, 10))
			c.Header("X-RateLimit-Reset", strconv.Itoa(secondsUntil(state.Reset)))
		}
		if state.Reached {
			if l.observer != nil {
				l.observer.OnDeny(route, key)
			}
			c.Header("Retry-After", strconv.Itoa(secondsUntil(state.Reset)))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":    http.StatusTooManyRequests,
				"message": "Too Many Requests",
			})
			return
		}
		if l.observer != nil {
			l.observer.OnAllow(route, key)
		}
		c.Next()
	}
}

func (l *RateLimiter) keyOf(c *gin.Context) string {
	if l.cfg.Identifier == "user" {
		if v, ok := c.Get(ContextUserID); ok {
			if id := cast.ToUint(v); id != 0 {
				return "user:" + cast.ToString(id)
			}
		}
	}
	return "ip:" + c.ClientIP()
}

// limiterFor 同一速率的路由共享一个 limiter
func (l *RateLimiter) limiterFor(route string) (*limiter.Limiter, error) {
	formatted := l.cfg.Rate
	if r, ok := l.cfg.Routes[route]; ok && r != "" {
		formatted = r
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.byRate[formatted]; ok {
		return lim, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, err
	}
	lim := limiter.New(l.store, rate)
	l.byRate[formatted] = lim
	return lim, nil
}

func secondsUntil(unix int64) int {
	s := int(time.Until(time.Unix(unix, 0)).Seconds())
	if s < 0 {
		return 0
	}
	return s
}
