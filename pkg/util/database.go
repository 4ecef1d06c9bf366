package util

import (
	"strings"
	"time"

	"MoodCapture/pkg/logger"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenDatabase driver 取 sqlite|mysql|pg，其他值按 sqlite 处理。
// SQL 日志写入全局 zap，debug 时输出每条语句。
func OpenDatabase(driver, dsn string, debug bool) (*gorm.DB, error) {
	level := gormlogger.Warn
	if debug {
		level = gormlogger.Info
	}
	sqlLog := gormlogger.New(zap.NewStdLog(logger.Lg.Named("gorm")), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialectorFor(driver, dsn), &gorm.Config{Logger: sqlLog})
	if err != nil {
		return nil, err
	}
	if driver == "mysql" || driver == "pg" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}

func dialectorFor(driver, dsn string) gorm.Dialector {
	switch driver {
	case "mysql":
		return mysql.Open(dsn)
	case "pg":
		return postgres.Open(dsn)
	}
	if dsn == "" {
		dsn = "file::memory:"
	}
	// 并发提交时等待写锁而不是立刻报 SQLITE_BUSY
	if !strings.Contains(dsn, "_pragma=busy_timeout") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)"
	}
	return sqlite.Open(dsn)
}
