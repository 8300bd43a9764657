// Package exporter 把结果页的差异交叉表导出为 .xlsx。
package exporter

import (
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kai657/po-adjustment/internal/results"
)

// sheet 名称
const (
	SheetGap     = "差异分析"
	SheetSummary = "汇总"
)

// HighlightFill 高亮单元格底色
const HighlightFill = "FFC7CE"

// ErrNoGapTable 结果中没有差异表
var ErrNoGapTable = errors.New("no gap table to export")

// Options 导出选项
type Options struct {
	Progress func(ProgressEvent)
}

type styles struct {
	header    int
	highlight int
	number    int
}

// ExportGap 生成差异分析工作簿：两行表头（分组标题合并 + 日期），每个 SKU 一行，
// 高亮单元格使用红色底色；行列顺序与结果页一致
func ExportGap(view results.View, opts Options) (*excelize.File, error) {
	if view.Gap == nil {
		return nil, ErrNoGapTable
	}
	table := view.Gap

	f := excelize.NewFile()
	ok := false
	defer func() {
		if !ok {
			_ = f.Close()
		}
	}()

	reportProgress(opts.Progress, 5, "创建工作簿")
	if err := f.SetSheetName("Sheet1", SheetGap); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	reportProgress(opts.Progress, 15, "写入表头")
	if err := writeGapHeader(f, table, st); err != nil {
		return nil, err
	}

	total := len(table.Rows)
	for i, row := range table.Rows {
		if err := writeGapRow(f, i+3, row, st); err != nil {
			return nil, err
		}
		if total > 0 && (i+1)%50 == 0 {
			reportProgress(opts.Progress, 15+70*(i+1)/total, fmt.Sprintf("写入数据 %d/%d", i+1, total))
		}
	}
	reportProgress(opts.Progress, 85, "写入数据完成")

	if err := f.SetPanes(SheetGap, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      2,
		TopLeftCell: "B3",
		ActivePane:  "bottomRight",
	}); err != nil {
		return nil, fmt.Errorf("freeze panes: %w", err)
	}
	if err := f.SetColWidth(SheetGap, "A", "A", 18); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	reportProgress(opts.Progress, 90, "写入汇总")
	if err := writeSummarySheet(f, view, st); err != nil {
		return nil, err
	}

	f.SetActiveSheet(0)
	reportProgress(opts.Progress, 100, "导出完成")
	ok = true
	return f, nil
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error

	st.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return st, fmt.Errorf("create header style: %w", err)
	}
	st.highlight, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{HighlightFill}, Pattern: 1},
	})
	if err != nil {
		return st, fmt.Errorf("create highlight style: %w", err)
	}
	st.number, err = f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return st, fmt.Errorf("create number style: %w", err)
	}
	return st, nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func writeGapHeader(f *excelize.File, t *results.GapTable, st styles) error {
	if err := f.SetCellValue(SheetGap, "A1", "SKU"); err != nil {
		return err
	}
	if err := f.MergeCell(SheetGap, "A1", "A2"); err != nil {
		return fmt.Errorf("merge sku header: %w", err)
	}

	col := 2
	for _, g := range t.Groups {
		if len(g.Dates) == 0 {
			continue
		}
		start := cellName(col, 1)
		if err := f.SetCellValue(SheetGap, start, g.Label); err != nil {
			return err
		}
		if len(g.Dates) > 1 {
			if err := f.MergeCell(SheetGap, start, cellName(col+len(g.Dates)-1, 1)); err != nil {
				return fmt.Errorf("merge group %s: %w", g.Key, err)
			}
		}
		for i, d := range g.Dates {
			if err := f.SetCellValue(SheetGap, cellName(col+i, 2), d); err != nil {
				return err
			}
		}
		col += len(g.Dates)
	}

	return f.SetCellStyle(SheetGap, "A1", cellName(max(col-1, 1), 2), st.header)
}

func writeGapRow(f *excelize.File, rowNum int, r results.GapRow, st styles) error {
	values := make([]any, 0, 1+len(r.Gap)+len(r.Schedule)+len(r.PO))
	values = append(values, r.SKU)
	for _, c := range r.Gap {
		values = append(values, c.Value)
	}
	for _, v := range r.Schedule {
		values = append(values, v)
	}
	for _, v := range r.PO {
		values = append(values, v)
	}
	if err := f.SetSheetRow(SheetGap, cellName(1, rowNum), &values); err != nil {
		return fmt.Errorf("write row %s: %w", r.SKU, err)
	}
	if len(values) > 1 {
		if err := f.SetCellStyle(SheetGap, cellName(2, rowNum), cellName(len(values), rowNum), st.number); err != nil {
			return err
		}
	}
	for i, c := range r.Gap {
		if !c.Highlight {
			continue
		}
		cell := cellName(2+i, rowNum)
		if err := f.SetCellStyle(SheetGap, cell, cell, st.highlight); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, view results.View, st styles) error {
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("create summary sheet: %w", err)
	}

	s := view.Summary
	g := view.Gap
	rows := [][]any{
		{"指标", "数值"},
		{"处理SKU数", s.SKUCount},
		{"原始总偏差", s.OriginalTotal},
		{"优化后总偏差", s.OptimizedTotal},
		{"偏差改善", s.Improvement},
		{"改善率", results.FormatRate(s.ImprovementRate)},
		{"SKU总数", g.Stats.SKUCount},
		{"日期数", g.DateCount},
		{"总差异", g.Stats.TotalGap},
		{"绝对差异", g.Stats.AbsTotalGap},
		{"最大差异", g.Stats.MaxGap},
		{"最小差异", g.Stats.MinGap},
		{"高亮阈值", g.Threshold},
		{"高亮单元格数", g.HighlightCount()},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(SheetSummary, cellName(1, i+1), &row); err != nil {
			return fmt.Errorf("write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", st.header); err != nil {
		return err
	}
	return f.SetColWidth(SheetSummary, "A", "A", 16)
}
