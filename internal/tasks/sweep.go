package tasks

import (
	"context"
	"time"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/logger"
	"MoodCapture/pkg/metrics"
	"MoodCapture/pkg/scheduler"
	stores "MoodCapture/pkg/storage"
	"MoodCapture/pkg/util"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sweepBatch = 500

// Sweeper 清理没有任何心情记录引用的上传文件
type Sweeper struct {
	DB      *gorm.DB
	Store   stores.Store
	Metrics *metrics.Metrics
	Grace   time.Duration // 比 Grace 新的文件可能属于进行中的请求，跳过
}

// Register 挂到调度器
func (s *Sweeper) Register(cr *scheduler.Cron, schedule string) error {
	_, err := cr.AddWithCtx("upload-sweep", schedule, func(ctx context.Context) {
		n, err := s.Run(ctx, time.Now())
		if err != nil {
			logger.Warn("upload sweep failed", zap.Error(err), zap.Int("removed", n))
			return
		}
		if n > 0 {
			logger.Info("upload sweep finished", zap.Int("removed", n))
		}
	})
	return err
}

// Run 执行一次清理，返回删除的文件数
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	objects, err := s.Store.List(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := now.Add(-s.Grace)
	var candidates []string
	for _, obj := range objects {
		field := util.FieldOf(obj.Key)
		if field != "mood_audio" && field != "mood_image" {
			continue
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		candidates = append(candidates, obj.Key)
	}

	removed := 0
	for start := 0; start < len(candidates); start += sweepBatch {
		end := min(start+sweepBatch, len(candidates))
		batch := candidates[start:end]

		referenced, err := models.ReferencedUploads(s.DB.WithContext(ctx), batch)
		if err != nil {
			s.record(removed)
			return removed, err
		}
		for _, key := range batch {
			if referenced[key] {
				continue
			}
			if err := ctx.Err(); err != nil {
				s.record(removed)
				return removed, err
			}
			if err := s.Store.Delete(ctx, key); err != nil {
				logger.Warn("sweep delete failed", zap.String("key", key), zap.Error(err))
				continue
			}
			removed++
		}
	}
	s.record(removed)
	return removed, nil
}

func (s *Sweeper) record(n int) {
	if s.Metrics != nil && n > 0 {
		s.Metrics.RecordSweep(n)
	}
}
