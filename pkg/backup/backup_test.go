package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type note struct {
	ID   uint
	Body string
}

func TestExecuteBackupProducesReadableCopy(t *testing.T) {
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "src.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&note{}))
	require.NoError(t, db.Create(&note{Body: "calm"}).Error)

	dst, err := ExecuteBackup(context.Background(), db, filepath.Join(dir, "backups"), time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "mood_backup_20240501_030000.db", filepath.Base(dst))

	copyDB, err := gorm.Open(sqlite.Open(dst), &gorm.Config{})
	require.NoError(t, err)
	var got note
	require.NoError(t, copyDB.First(&got).Error)
	assert.Equal(t, "calm", got.Body)
}

func TestPruneKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for _, ts := range []string{"20240101_000000", "20240102_000000", "20240103_000000"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, filePrefix+ts+".db"), nil, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated.txt"), nil, 0o644))

	require.NoError(t, Prune(dir, 2))

	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		filePrefix + "20240102_000000.db",
		filePrefix + "20240103_000000.db",
		"unrelated.txt",
	}, names)
}
