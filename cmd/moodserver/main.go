package main

import (
	"context"
	stderrors "errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "MoodCapture/internal/handler"
	"MoodCapture/internal/models"
	"MoodCapture/internal/tasks"
	"MoodCapture/pkg/backup"
	"MoodCapture/pkg/cache"
	"MoodCapture/pkg/config"
	"MoodCapture/pkg/i18n"
	"MoodCapture/pkg/logger"
	"MoodCapture/pkg/metrics"
	"MoodCapture/pkg/scheduler"
	stores "MoodCapture/pkg/storage"
	"MoodCapture/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	if err := config.Load(); err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg := config.GlobalConfig
	gin.SetMode(cfg.Mode)

	// 2. 日志
	if err := logger.Init(cfg.Log, cfg.Mode); err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("server exited", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	// 3. 数据库
	db, err := util.OpenDatabase(cfg.DBDriver, cfg.DSN, cfg.Mode == gin.DebugMode)
	if err != nil {
		return err
	}
	if err := models.AutoMigrate(db); err != nil {
		return err
	}

	// 4. 存储与缓存
	store, err := stores.New(cfg.Storage)
	if err != nil {
		return err
	}
	c, err := cache.NewCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer c.Close()

	m := metrics.NewMetrics(nil)
	bundle, err := i18n.NewI18nSupport(cfg.LanguageDefault)
	if err != nil {
		return err
	}

	// 5. 路由
	engine := gin.New()
	engine.Use(logger.GinLogger(), logger.GinRecovery())
	engine.MaxMultipartMemory = cfg.MaxUploadBytes()
	h := handlers.NewHandlers(db, cfg, handlers.Deps{Store: store, Cache: c, Metrics: m, I18n: bundle})
	h.Register(engine)

	// 6. 定时任务
	cr := scheduler.NewCron(time.Local)
	sweeper := &tasks.Sweeper{DB: db, Store: store, Metrics: m, Grace: cfg.SweepGrace}
	if err := sweeper.Register(cr, cfg.SweepSchedule); err != nil {
		return err
	}
	if cfg.BackupEnabled {
		err := backup.Register(cr, db, backup.Options{
			Driver:   cfg.DBDriver,
			Dir:      cfg.BackupPath,
			Schedule: cfg.BackupSchedule,
			Keep:     cfg.BackupKeep,
		})
		if err != nil {
			return err
		}
	}
	cr.Start()
	defer cr.Stop()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage.Driver), zap.Bool("ingest_strict", cfg.IngestStrict))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// 7. 优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
