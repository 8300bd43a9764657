// Package workbook 用 excelize 快速检查上传的工作簿能否打开。
package workbook

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kai657/po-adjustment/internal/model"
)

// ErrEmptyWorkbook 工作簿没有任何 sheet
var ErrEmptyWorkbook = errors.New("workbook has no sheets")

// SheetInfo 单个 sheet 概况
type SheetInfo struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Headers []string `json:"headers"`
}

// Info 工作簿概况
type Info struct {
	Sheets []SheetInfo `json:"sheets"`
}

// First 第一个 sheet
func (i *Info) First() SheetInfo {
	if i == nil || len(i.Sheets) == 0 {
		return SheetInfo{}
	}
	return i.Sheets[0]
}

// Probe 打开工作簿并统计各 sheet 行数与表头
func Probe(r io.Reader) (*Info, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	info := &Info{Sheets: make([]SheetInfo, 0, len(sheets))}
	for _, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		si := SheetInfo{Name: name, Rows: len(rows)}
		if len(rows) > 0 {
			for _, h := range rows[0] {
				si.Headers = append(si.Headers, strings.TrimSpace(h))
			}
		}
		info.Sheets = append(info.Sheets, si)
	}
	return info, nil
}

// ProbeFile 检查文件引用的内容
func ProbeFile(fh *model.FileHandle) (*Info, error) {
	rc, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return Probe(rc)
}
