package model

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	MimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MimeXLS  = "application/vnd.ms-excel"
)

// FileHandle 用户选择的文件（不透明引用，创建后不做局部修改）
type FileHandle struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`

	open func() (io.ReadCloser, error)
}

// NewFileHandle 创建文件引用，open 每次调用返回新的读取流
func NewFileHandle(name, mimeType string, size int64, open func() (io.ReadCloser, error)) *FileHandle {
	return &FileHandle{
		ID:       uuid.NewString(),
		Name:     name,
		Size:     size,
		MimeType: mimeType,
		open:     open,
	}
}

// FileFromBytes 基于内存数据创建文件引用
func FileFromBytes(name, mimeType string, data []byte) *FileHandle {
	return NewFileHandle(name, mimeType, int64(len(data)), func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FileFromPath 基于本地路径创建文件引用（内容在上传时才读取）
func FileFromPath(path string) (*FileHandle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	return NewFileHandle(name, MimeTypeFor(name), info.Size(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// Open 打开文件内容
func (f *FileHandle) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, fmt.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

// TypeLabel 类型显示（无 MIME 时显示 Excel）
func (f *FileHandle) TypeLabel() string {
	if f.MimeType == "" {
		return "Excel"
	}
	return f.MimeType
}

// MimeTypeFor 根据扩展名推断 MIME
func MimeTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx":
		return MimeXLSX
	case ".xls":
		return MimeXLS
	}
	return ""
}
