package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutOpenDelete(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir)
	require.NoError(t, err)

	// 分类目录已创建
	for _, category := range []string{CategoryAssignments, CategoryFeedback, CategoryResources} {
		info, err := os.Stat(filepath.Join(dir, category))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	ctx := context.Background()
	content := []byte("evidence bytes \x00\xff")
	ref, err := l.Put(ctx, CategoryAssignments, "my evidence.pdf", bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, filepath.Join(dir, CategoryAssignments)))
	// 文件名被规整，不含空格
	assert.NotContains(t, filepath.Base(ref), " ")

	rc, err := l.Open(ctx, ref)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, got)

	require.NoError(t, l.Delete(ctx, ref))
	_, err = l.Open(ctx, ref)
	assert.Error(t, err)

	// 删除不存在的引用不报错
	assert.NoError(t, l.Delete(ctx, ref))
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://cdn.example.org/file.pdf"))
	assert.True(t, IsURL("http://cdn.example.org/file.pdf"))
	assert.False(t, IsURL("/uploads/assignments/file.pdf"))
	assert.False(t, IsURL("assignments/1700000000-file.pdf"))
	assert.False(t, IsURL(""))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"evidence.pdf", "evidence.pdf"},
		{"my evidence.pdf", "my_evidence.pdf"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{`notes\draft.txt`, "notes_draft.txt"},
		{"", "file"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}
