package stores

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	DriverLocal = "local"
	DriverMinio = "minio"
	DriverCos   = "cos"
)

// ErrNotFound 对象不存在
var ErrNotFound = errors.New("object not found")

// Store 上传文件的存储后端，key 为单层文件名
type Store interface {
	Read(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context) ([]ObjectInfo, error)
	PublicURL(key string) string
}

type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

type Config struct {
	Driver    string `env:"STORAGE_DRIVER"`
	UploadDir string `env:"UPLOAD_DIR"`
	BaseURL   string `env:"UPLOAD_PREFIX"`
	Minio     MinioConfig
	Cos       CosConfig
}

// New 按驱动名创建存储
func New(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverLocal:
		return NewLocalStore(cfg.UploadDir, cfg.BaseURL), nil
	case DriverMinio:
		return NewMinioStore(cfg.Minio)
	case DriverCos:
		return NewCosStore(cfg.Cos)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", cfg.Driver)
	}
}
