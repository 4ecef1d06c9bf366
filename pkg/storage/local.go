package stores

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"MoodCapture/pkg/util"
)

// LocalStore 本地磁盘存储，所有文件平铺在同一个目录
type LocalStore struct {
	Dir     string
	BaseURL string

	once    sync.Once
	initErr error
}

func NewLocalStore(dir, baseURL string) *LocalStore {
	if dir == "" {
		dir = "uploads"
	}
	return &LocalStore{Dir: dir, BaseURL: baseURL}
}

// ensureDir 首次写入时创建目录
func (l *LocalStore) ensureDir() error {
	l.once.Do(func() {
		l.initErr = os.MkdirAll(l.Dir, 0o755)
	})
	if l.initErr != nil {
		return l.initErr
	}
	// 目录可能在运行期间被删除
	if _, err := os.Stat(l.Dir); errors.Is(err, os.ErrNotExist) {
		return os.MkdirAll(l.Dir, 0o755)
	}
	return nil
}

func (l *LocalStore) path(key string) (string, error) {
	if !util.IsFlatName(key) {
		return "", ErrNotFound
	}
	return filepath.Join(l.Dir, key), nil
}

func (l *LocalStore) Read(_ context.Context, key string) (io.ReadCloser, int64, error) {
	p, err := l.path(key)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}
	return f, st.Size(), nil
}

// Write 先写临时文件再 rename，读者不会看到写了一半的文件
func (l *LocalStore) Write(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := l.ensureDir(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(l.Dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, p)
}

func (l *LocalStore) Delete(_ context.Context, key string) error {
	p, err := l.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *LocalStore) Exists(_ context.Context, key string) (bool, error) {
	p, err := l.path(key)
	if err != nil {
		return false, nil
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (l *LocalStore) List(_ context.Context) ([]ObjectInfo, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]ObjectInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ObjectInfo{Key: e.Name(), Size: info.Size(), LastModified: info.ModTime()})
	}
	return out, nil
}

func (l *LocalStore) PublicURL(key string) string {
	base := strings.TrimRight(l.BaseURL, "/")
	if base == "" {
		base = "/uploads"
	}
	return base + "/" + key
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
