package stores

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type CosConfig struct {
	BucketURL string `env:"COS_BUCKET_URL"` // https://<bucket>-<appid>.cos.<region>.myqcloud.com
	SecretID  string `env:"COS_SECRET_ID"`
	SecretKey string `env:"COS_SECRET_KEY"`
}

// CosStore 腾讯云 COS 存储
type CosStore struct {
	base string
	cli  *cos.Client
}

func NewCosStore(cfg CosConfig) (*CosStore, error) {
	u, err := url.Parse(cfg.BucketURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid COS_BUCKET_URL: %q", cfg.BucketURL)
	}
	cli := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})
	return &CosStore{base: strings.TrimRight(cfg.BucketURL, "/"), cli: cli}, nil
}

func (s *CosStore) Read(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	resp, err := s.cli.Object.Get(ctx, key, nil)
	if err != nil {
		if cos.IsNotFoundError(err) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	return resp.Body, resp.ContentLength, nil
}

func (s *CosStore) Write(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	if size > 0 {
		opt.ObjectPutHeaderOptions.ContentLength = size
	}
	_, err := s.cli.Object.Put(ctx, key, r, opt)
	return err
}

func (s *CosStore) Delete(ctx context.Context, key string) error {
	_, err := s.cli.Object.Delete(ctx, key)
	if err != nil && cos.IsNotFoundError(err) {
		return nil
	}
	return err
}

func (s *CosStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.cli.Object.IsExist(ctx, key)
}

func (s *CosStore) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	marker := ""
	for {
		res, _, err := s.cli.Bucket.Get(ctx, &cos.BucketGetOptions{Marker: marker, MaxKeys: 1000})
		if err != nil {
			return nil, err
		}
		for _, obj := range res.Contents {
			mod, _ := time.Parse(time.RFC3339, obj.LastModified)
			out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size, LastModified: mod})
		}
		if !res.IsTruncated {
			return out, nil
		}
		marker = res.NextMarker
	}
}

func (s *CosStore) PublicURL(key string) string {
	return s.base + "/" + key
}
