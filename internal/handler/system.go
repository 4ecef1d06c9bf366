package handlers

import (
	"net/http"
	"os"

	stores "MoodCapture/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/disk"
)

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	out := gin.H{"status": "healthy", "storage": h.cfg.Storage.Driver}

	// 本地存储时附带上传目录所在卷的剩余空间
	if h.cfg.Storage.Driver == "" || h.cfg.Storage.Driver == stores.DriverLocal {
		if usage, err := disk.UsageWithContext(c.Request.Context(), uploadVolume(h.cfg.Storage.UploadDir)); err == nil {
			out["upload_volume"] = gin.H{
				"path":         usage.Path,
				"free_bytes":   usage.Free,
				"used_percent": usage.UsedPercent,
			}
		}
	}

	c.JSON(http.StatusOK, out)
}

// uploadVolume 目录尚未创建时退回当前目录
func uploadVolume(dir string) string {
	if dir == "" {
		return "."
	}
	if _, err := os.Stat(dir); err != nil {
		return "."
	}
	return dir
}
