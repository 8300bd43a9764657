package util

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatFileSize 文件大小：不足 1024 KB 显示 KB，否则显示 MB，两位小数
func FormatFileSize(size int64) string {
	kb := float64(size) / 1024
	if kb < 1024 {
		return fmt.Sprintf("%.2f KB", kb)
	}
	return fmt.Sprintf("%.2f MB", kb/1024)
}

// HumanBytes 日志中使用的大小（KiB/MiB）
func HumanBytes(size int64) string {
	if size < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(size))
}
