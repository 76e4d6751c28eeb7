package blobstore

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOConfig MinIO 对象存储配置
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"` // 例如 localhost:9000
	AccessKey string `yaml:"-"`        // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`        // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
	PublicURL string `yaml:"public_url"` // 非空时引用为公开 URL，下载走重定向
}

// MinIO 对象存储后端
//
// 引用形式：默认是对象 key "<category>/<unix毫秒>-<文件名>"；
// 配置了 PublicURL 时为 "<PublicURL>/<key>"，下载端据此重定向。
type MinIO struct {
	mc        *minio.Client
	bucket    string
	publicURL string
}

var _ Store = (*MinIO)(nil)

// NewMinIO 创建 MinIO 存储并确保 bucket 存在
func NewMinIO(ctx context.Context, cfg MinIOConfig) (*MinIO, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("minio access_key and secret_key are required")
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "portfolio-portal"
	}

	m := &MinIO{mc: mc, bucket: bucket, publicURL: strings.TrimSuffix(cfg.PublicURL, "/")}
	if err := m.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MinIO) ensureBucket(ctx context.Context) error {
	exists, err := m.mc.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.mc.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
		log.Printf("[blobstore] Created bucket: %s", m.bucket)
	}
	return nil
}

func (m *MinIO) Put(ctx context.Context, category, originalName string, r io.Reader, size int64, contentType string) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("%s/%d-%s", category, time.Now().UnixMilli(), SanitizeName(originalName))
	_, err := m.mc.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if m.publicURL != "" {
		return m.publicURL + "/" + key, nil
	}
	return key, nil
}

func (m *MinIO) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key := m.refToKey(ref)
	obj, err := m.mc.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	// 验证对象存在（GetObject 不会立即返回错误）
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	return obj, nil
}

func (m *MinIO) Delete(ctx context.Context, ref string) error {
	return m.mc.RemoveObject(ctx, m.bucket, m.refToKey(ref), minio.RemoveObjectOptions{})
}

// refToKey 将引用还原为对象 key（剥离公开 URL 前缀）
func (m *MinIO) refToKey(ref string) string {
	if m.publicURL != "" {
		return strings.TrimPrefix(strings.TrimPrefix(ref, m.publicURL), "/")
	}
	return ref
}
