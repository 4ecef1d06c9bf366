package handlers

import (
	"time"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/cache"
	"MoodCapture/pkg/config"
	"MoodCapture/pkg/i18n"
	"MoodCapture/pkg/metrics"
	"MoodCapture/pkg/middleware"
	stores "MoodCapture/pkg/storage"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

// Deps 除数据库外 handler 需要的依赖
type Deps struct {
	Store   stores.Store
	Cache   cache.Cache
	Metrics *metrics.Metrics
	I18n    *i18n.I18nSupport
}

type Handlers struct {
	db      *gorm.DB
	cfg     *config.Config
	store   stores.Store
	cache   cache.Cache
	tokens  *models.TokenStore
	metrics *metrics.Metrics
	i18n    *i18n.I18nSupport
	limiter *middleware.RateLimiter
	now     func() time.Time

	profileLoads singleflight.Group
}

func NewHandlers(db *gorm.DB, cfg *config.Config, deps Deps) *Handlers {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics(nil)
	}
	rl := middleware.RateLimiterConfig{
		Rate:       cfg.RateLimit,
		Identifier: "user",
		AddHeaders: true,
	}
	if cfg.LoginRateLimit != "" {
		rl.Routes = map[string]string{cfg.APIPrefix + "/auth/login": cfg.LoginRateLimit}
	}
	limiter := middleware.NewRateLimiter(rl, nil).WithObserver(deps.Metrics)

	return &Handlers{
		db:      db,
		cfg:     cfg,
		store:   deps.Store,
		cache:   deps.Cache,
		tokens:  models.NewTokenStore(deps.Cache, cfg.TokenTTL),
		metrics: deps.Metrics,
		i18n:    deps.I18n,
		limiter: limiter,
		now:     time.Now,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(metrics.MonitorMiddleware(h.metrics))
	engine.Use(middleware.LanguageMiddleware(h.cfg.LanguageDefault))

	r := engine.Group(h.cfg.APIPrefix)

	// Register System Module Routes
	h.registerSystemRoutes(r)

	// Register Business Module Routes
	h.registerAuthRoutes(r)
	h.registerProfileRoutes(r)
	h.registerMoodRoutes(r)

	engine.GET(h.cfg.UploadPrefix+"/:name", h.handleGetUpload)
	engine.HEAD(h.cfg.UploadPrefix+"/:name", h.handleGetUpload)
	if h.cfg.MonitorPrefix != "" {
		engine.GET(h.cfg.MonitorPrefix, h.metrics.Handler())
	}
}

// User Module
func (h *Handlers) registerAuthRoutes(r *gin.RouterGroup) {
	auth := r.Group("auth")
	{
		auth.POST("/signup", h.handleUserSignup)

		auth.POST("/login", h.limiter.Middleware(), h.handleUserSignin)

		auth.POST("/logout", middleware.AuthRequired(h.tokens), h.handleUserLogout)

		auth.GET("/info", middleware.AuthRequired(h.tokens), h.handleUserInfo)
	}
}

func (h *Handlers) registerProfileRoutes(r *gin.RouterGroup) {
	profile := r.Group("profile")
	profile.Use(middleware.AuthRequired(h.tokens))
	{
		profile.GET("", h.handleGetProfile)

		profile.POST("", h.handleSaveProfile)
	}
	r.GET("profile/schema", h.handleProfileSchema)
}

func (h *Handlers) registerMoodRoutes(r *gin.RouterGroup) {
	// 鉴权在最前，未登录的请求不会触碰存储
	r.POST("mood", middleware.AuthRequired(h.tokens), h.limiter.Middleware(), h.handleCreateMood)
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.GET("/health", h.HealthCheck)
	}
}

func (h *Handlers) t(c *gin.Context, key string, data map[string]interface{}) string {
	return h.i18n.T(middleware.Lang(c), key, data)
}
