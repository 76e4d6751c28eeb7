package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Local 本地磁盘存储
//
// 目录结构：<baseDir>/<category>/<unix毫秒>-<规整文件名>
// 引用即磁盘路径。
type Local struct {
	baseDir string
}

var _ Store = (*Local)(nil)

// NewLocal 创建本地存储并确保分类目录存在
func NewLocal(baseDir string) (*Local, error) {
	for _, category := range []string{CategoryAssignments, CategoryFeedback, CategoryResources} {
		if err := os.MkdirAll(filepath.Join(baseDir, category), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir %s: %w", category, err)
		}
	}
	return &Local{baseDir: baseDir}, nil
}

func (l *Local) Put(ctx context.Context, category, originalName string, r io.Reader, size int64, contentType string) (string, error) {
	name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), SanitizeName(originalName))
	path := filepath.Join(l.baseDir, category, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func (l *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	return os.Open(ref)
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	err := os.Remove(ref)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
