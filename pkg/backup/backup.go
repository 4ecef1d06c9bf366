package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"MoodCapture/pkg/logger"
	"MoodCapture/pkg/scheduler"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const filePrefix = "mood_backup_"

// Options 备份配置
type Options struct {
	Driver   string
	Dir      string
	Schedule string
	Keep     int // 保留最近 N 份，<=0 不清理
}

// Register 把备份任务挂到调度器上
func Register(cr *scheduler.Cron, db *gorm.DB, opts Options) error {
	if opts.Driver != "sqlite" {
		logger.Warn("backup skipped: only sqlite is supported", zap.String("driver", opts.Driver))
		return nil
	}
	_, err := cr.AddWithCtx("backup", opts.Schedule, func(ctx context.Context) {
		dst, err := ExecuteBackup(ctx, db, opts.Dir, time.Now())
		if err != nil {
			logger.Warn("Backup failed", zap.Error(err))
			return
		}
		logger.Info("Backup completed successfully", zap.String("file", dst))
		if opts.Keep > 0 {
			if err := Prune(opts.Dir, opts.Keep); err != nil {
				logger.Warn("Backup prune failed", zap.Error(err))
			}
		}
	})
	return err
}

// ExecuteBackup 使用 VACUUM INTO 生成一致的 sqlite 快照
func ExecuteBackup(ctx context.Context, db *gorm.DB, dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}
	dst := filepath.Join(dir, fmt.Sprintf("%s%s.db", filePrefix, now.Format("20060102_150405")))
	if _, err := os.Stat(dst); err == nil {
		return "", fmt.Errorf("backup already exists: %s", dst)
	}
	if err := db.WithContext(ctx).Exec("VACUUM INTO ?", dst).Error; err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", dst, err)
	}
	return dst, nil
}

// Prune 只保留最新的 keep 份备份
func Prune(dir string, keep int) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), filePrefix) {
			names = append(names, e.Name())
		}
	}
	if len(names) <= keep {
		return nil
	}
	// 文件名带时间戳，字典序即时间序
	sort.Strings(names)
	for _, name := range names[:len(names)-keep] {
		if err := os.Remove(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
