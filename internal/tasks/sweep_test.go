package tasks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"MoodCapture/internal/models"
	"MoodCapture/pkg/metrics"
	stores "MoodCapture/pkg/storage"

	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSweepFixture(t *testing.T) (*gorm.DB, *stores.LocalStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))
	return db, stores.NewLocalStore(t.TempDir(), "/uploads")
}

func writeUpload(t *testing.T, store *stores.LocalStore, key string, mtime time.Time) {
	t.Helper()
	require.NoError(t, store.Write(context.Background(), key, strings.NewReader("data"), 4, ""))
	require.NoError(t, os.Chtimes(filepath.Join(store.Dir, key), mtime, mtime))
}

func TestSweepRemovesOnlyOldUnreferencedUploads(t *testing.T) {
	db, store := newSweepFixture(t)
	now := time.Now()
	old := now.Add(-2 * time.Hour)

	writeUpload(t, store, "mood_audio-1-1.webm", old) // 有引用
	writeUpload(t, store, "mood_image-1-2.jpg", old)  // 孤儿
	writeUpload(t, store, "mood_image-1-3.jpg", now)  // 太新
	writeUpload(t, store, "notes.txt", old)           // 非上传文件

	audio := "mood_audio-1-1.webm"
	require.NoError(t, models.CreateMoodRecord(db, &models.MoodRecord{UserID: 1, Text: "x", AudioRef: &audio}))

	m := metrics.NewMetrics(prometheus.NewRegistry())
	s := &Sweeper{DB: db, Store: store, Metrics: m, Grace: time.Hour}
	n, err := s.Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	left, err := store.List(context.Background())
	require.NoError(t, err)
	var keys []string
	for _, o := range left {
		keys = append(keys, o.Key)
	}
	assert.ElementsMatch(t, []string{"mood_audio-1-1.webm", "mood_image-1-3.jpg", "notes.txt"}, keys)
}

func TestSweepEmptyStore(t *testing.T) {
	db, store := newSweepFixture(t)
	s := &Sweeper{DB: db, Store: store, Grace: time.Hour}
	n, err := s.Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}
