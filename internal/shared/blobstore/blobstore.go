// Package blobstore 文件字节存储抽象
//
// 两种实现：本地磁盘（开发/单机）与 MinIO 对象存储（持久化部署），
// 启动时由配置选定一次。业务层只面向 Store 契约编程，
// 唯一允许的后端感知是通过 IsURL 判断引用是否为可重定向的 URL。
package blobstore

import (
	"context"
	"io"
	"strings"
)

// 存储分类，对应上传入口
const (
	CategoryAssignments = "assignments"
	CategoryFeedback    = "feedback"
	CategoryResources   = "resources"
)

// Store 字节存储契约
type Store interface {
	// Put 存入一个文件，返回存储引用（本地路径、对象 key 或 URL）
	Put(ctx context.Context, category, originalName string, r io.Reader, size int64, contentType string) (string, error)

	// Open 按引用取回文件内容，调用方负责关闭返回的 ReadCloser
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete 按引用删除文件。尽力而为：失败由调用方记录日志，不得中断主流程
	Delete(ctx context.Context, ref string) error
}

// IsURL 引用是否为可直接重定向的 URL
func IsURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// SanitizeName 规整原始文件名：空白替换为下划线，去除路径分隔符
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		name = "file"
	}
	return name
}
