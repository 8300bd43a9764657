package results

import (
	"fmt"
	"math"
	"sort"

	"github.com/kai657/po-adjustment/internal/model"
)

// DefaultHighlightPercentile 高亮阈值取非零绝对差异的第 70 百分位（即 top 30%）
const DefaultHighlightPercentile = 70

// Percentile 最近秩百分位：升序排序后取 ceil(p/100*n)-1；空集合返回 0
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// HighlightThreshold 整个差异网格中非零绝对值的百分位
func HighlightThreshold(grid [][]float64, p float64) float64 {
	var abs []float64
	for _, row := range grid {
		for _, v := range row {
			if a := math.Abs(v); a > 0 {
				abs = append(abs, a)
			}
		}
	}
	return Percentile(abs, p)
}

// Sign 单元格符号分类
type Sign string

const (
	SignPositive Sign = "positive"
	SignNegative Sign = "negative"
	SignZero     Sign = "zero"
)

// Cell 差异单元格
type Cell struct {
	Value     float64 `json:"value"`
	Sign      Sign    `json:"sign"`
	Highlight bool    `json:"highlight"`
}

// ClassifyCell 只取决于数值与阈值，与位置无关
func ClassifyCell(value, threshold float64) Cell {
	c := Cell{Value: value, Sign: SignZero}
	switch {
	case value > 0:
		c.Sign = SignPositive
	case value < 0:
		c.Sign = SignNegative
	}
	if a := math.Abs(value); a > 0 && a >= threshold {
		c.Highlight = true
	}
	return c
}

// Class CSS 类名，例如 "negative highlight"
func (c Cell) Class() string {
	if c.Highlight {
		return string(c.Sign) + " highlight"
	}
	return string(c.Sign)
}

// Text 显示文本
func (c Cell) Text() string {
	return FormatNumber(c.Value)
}

// ColumnGroup 列分组（差异、排程目标、PO 汇总），每组覆盖全部日期
type ColumnGroup struct {
	Key   string   `json:"key"`
	Label string   `json:"label"`
	Dates []string `json:"dates"`
}

// GapRow 一个 SKU 的三段数据
type GapRow struct {
	SKU      string    `json:"sku"`
	Gap      []Cell    `json:"gap"`
	Schedule []float64 `json:"schedule"`
	PO       []float64 `json:"po"`
}

// GapTable 差异交叉表
type GapTable struct {
	Stats     model.GapStats `json:"stats"`
	DateCount int            `json:"dateCount"`
	Threshold float64        `json:"threshold"`
	Groups    []ColumnGroup  `json:"groups"`
	Rows      []GapRow       `json:"rows"`
}

// BuildGapTable 生成差异交叉表；行列顺序与服务端一致，不做排序
func BuildGapTable(m *model.GapMatrix, percentile float64) (*GapTable, error) {
	if m == nil {
		return nil, fmt.Errorf("gap matrix is nil")
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gap matrix: %w", err)
	}

	threshold := HighlightThreshold(m.GapValues, percentile)
	dates := []string(m.Dates)

	table := &GapTable{
		Stats:     m.Stats,
		DateCount: m.DateCount(),
		Threshold: threshold,
		Groups: []ColumnGroup{
			{Key: "gap", Label: "GAP差异", Dates: dates},
			{Key: "schedule", Label: "排程目标", Dates: dates},
			{Key: "po", Label: "PO汇总结果", Dates: dates},
		},
		Rows: make([]GapRow, 0, len(m.SKUs)),
	}

	for i, sku := range m.SKUs {
		row := GapRow{
			SKU:      sku,
			Gap:      make([]Cell, len(dates)),
			Schedule: m.ScheduleValues[i],
			PO:       m.POValues[i],
		}
		for j, v := range m.GapValues[i] {
			row.Gap[j] = ClassifyCell(v, threshold)
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// HighlightCount 高亮单元格数量
func (t *GapTable) HighlightCount() int {
	n := 0
	for _, r := range t.Rows {
		for _, c := range r.Gap {
			if c.Highlight {
				n++
			}
		}
	}
	return n
}
