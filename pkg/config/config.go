package config

import (
	"log"
	"os"
	"time"

	"MoodCapture/pkg/cache"
	"MoodCapture/pkg/logger"
	stores "MoodCapture/pkg/storage"
	"MoodCapture/pkg/util"
)

type Config struct {
	DBDriver        string `env:"DB_DRIVER"`
	DSN             string `env:"DSN"`
	Log             logger.LogConfig
	Storage         stores.Config
	Cache           cache.Config
	Addr            string        `env:"ADDR"`
	Mode            string        `env:"MODE"`
	APIPrefix       string        `env:"API_PREFIX"`
	UploadPrefix    string        `env:"UPLOAD_PREFIX"`
	MonitorPrefix   string        `env:"MONITOR_PREFIX"`
	MaxUploadMB     int64         `env:"MAX_UPLOAD_MB"`
	IngestStrict    bool          `env:"INGEST_STRICT"`
	TokenTTL        time.Duration `env:"TOKEN_TTL"`
	RateLimit       string        `env:"RATE_LIMIT"`
	LoginRateLimit  string        `env:"LOGIN_RATE_LIMIT"`
	LanguageEnabled bool          `env:"LANGUAGE_ENABLED"`
	LanguageDefault string        `env:"LANGUAGE_DEFAULT"`
	BackupEnabled   bool          `env:"BACKUP_ENABLED"`
	BackupPath      string        `env:"BACKUP_PATH"`
	BackupSchedule  string        `env:"BACKUP_SCHEDULE"`
	BackupKeep      int           `env:"BACKUP_KEEP"`
	SweepSchedule   string        `env:"SWEEP_SCHEDULE"`
	SweepGrace      time.Duration `env:"SWEEP_GRACE"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = FromEnv()
	return nil
}

// FromEnv 从当前环境变量构造配置，缺省值在这里统一补齐
func FromEnv() *Config {
	return &Config{
		DBDriver:       util.GetEnvDefault("DB_DRIVER", "sqlite"),
		DSN:            util.GetEnvDefault("DSN", "mood.db"),
		Addr:           util.GetEnvDefault("ADDR", ":5000"),
		Mode:           util.GetEnvDefault("MODE", "release"),
		APIPrefix:      util.GetEnvDefault("API_PREFIX", "/api"),
		UploadPrefix:   util.GetEnvDefault("UPLOAD_PREFIX", "/uploads"),
		MonitorPrefix:  util.GetEnvDefault("MONITOR_PREFIX", "/metrics"),
		MaxUploadMB:    util.GetIntEnvDefault("MAX_UPLOAD_MB", 32),
		IngestStrict:   util.GetBoolEnv("INGEST_STRICT"),
		TokenTTL:       util.GetDurationEnv("TOKEN_TTL", 24*time.Hour),
		RateLimit:      util.GetEnvDefault("RATE_LIMIT", "30-M"),
		LoginRateLimit: util.GetEnvDefault("LOGIN_RATE_LIMIT", "10-M"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Storage: stores.Config{
			Driver:    util.GetEnvDefault("STORAGE_DRIVER", stores.DriverLocal),
			UploadDir: util.GetEnvDefault("UPLOAD_DIR", "uploads"),
			BaseURL:   util.GetEnvDefault("UPLOAD_PREFIX", "/uploads"),
			Minio: stores.MinioConfig{
				Endpoint:  util.GetEnv("MINIO_ENDPOINT"),
				AccessKey: util.GetEnv("MINIO_ACCESS_KEY"),
				SecretKey: util.GetEnv("MINIO_SECRET_KEY"),
				Bucket:    util.GetEnv("MINIO_BUCKET"),
				UseSSL:    util.GetBoolEnv("MINIO_USE_SSL"),
			},
			Cos: stores.CosConfig{
				BucketURL: util.GetEnv("COS_BUCKET_URL"),
				SecretID:  util.GetEnv("COS_SECRET_ID"),
				SecretKey: util.GetEnv("COS_SECRET_KEY"),
			},
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:     util.GetEnvDefault("REDIS_ADDR", "localhost:6379"),
				Password: util.GetEnv("REDIS_PASSWORD"),
				DB:       int(util.GetIntEnv("REDIS_DB")),
				Prefix:   util.GetEnvDefault("REDIS_PREFIX", "moodcapture:"),
				PoolSize: int(util.GetIntEnvDefault("REDIS_POOL_SIZE", 10)),
			},
			Local: cache.LocalConfig{
				MaxSize:           int(util.GetIntEnvDefault("LOCAL_CACHE_MAX_SIZE", 10000)),
				DefaultExpiration: util.GetDurationEnv("LOCAL_CACHE_DEFAULT_EXPIRATION", 5*time.Minute),
				CleanupInterval:   util.GetDurationEnv("LOCAL_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			},
		},
		LanguageEnabled: util.GetBoolEnv("LANGUAGE_ENABLED"),
		LanguageDefault: util.GetEnvDefault("LANGUAGE_DEFAULT", "en"),
		BackupEnabled:   util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:      util.GetEnvDefault("BACKUP_PATH", "backups"),
		BackupSchedule:  util.GetEnvDefault("BACKUP_SCHEDULE", "0 3 * * *"),
		BackupKeep:      int(util.GetIntEnvDefault("BACKUP_KEEP", 7)),
		SweepSchedule:   util.GetEnvDefault("SWEEP_SCHEDULE", "@hourly"),
		SweepGrace:      util.GetDurationEnv("SWEEP_GRACE", time.Hour),
	}
}

// MaxUploadBytes 单次请求体上限
func (c *Config) MaxUploadBytes() int64 {
	if c.MaxUploadMB <= 0 {
		return 32 << 20
	}
	return c.MaxUploadMB << 20
}
