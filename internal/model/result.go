package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// 产物角色（files 映射的 key）
const (
	FileOptimizedPO     = "optimized_po"
	FileReport          = "report"
	FileComparisonChart = "comparison_chart"
	FileDeviationChart  = "deviation_chart"
	FileGapAnalysis     = "gap_analysis"
)

// ResultPayload 优化结果（接收后不可变，整体替换旧结果）
type ResultPayload struct {
	Timestamp   string            `json:"timestamp,omitempty"`
	Summary     []SkuSummary      `json:"summary"`
	GapAnalysis *GapMatrix        `json:"gap_analysis,omitempty"`
	Files       map[string]string `json:"files"`
}

// File 获取产物文件名
func (r *ResultPayload) File(role string) (string, bool) {
	if r == nil || r.Files == nil {
		return "", false
	}
	name, ok := r.Files[role]
	return name, ok && name != ""
}

// SummaryField 单个 SKU 汇总字段（保留服务端顺序）
type SummaryField struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// SkuSummary 单个 SKU 的汇总统计
type SkuSummary struct {
	SKU                     string
	OriginalDeviationTotal  *float64 // 原始总偏差，缺失为 nil
	OptimizedDeviationTotal *float64 // 优化后总偏差，缺失为 nil
	Fields                  []SummaryField
}

var (
	skuKeys          = []string{"SKU", "sku"}
	originalDevKeys  = []string{"原始总偏差", "originalDeviationTotal", "original_deviation_total"}
	optimizedDevKeys = []string{"优化后总偏差", "optimizedDeviationTotal", "optimized_deviation_total"}
)

func keyIn(key string, keys []string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Original 原始总偏差（缺失按 0）
func (s SkuSummary) Original() float64 {
	if s.OriginalDeviationTotal == nil {
		return 0
	}
	return *s.OriginalDeviationTotal
}

// Optimized 优化后总偏差（缺失按 0）
func (s SkuSummary) Optimized() float64 {
	if s.OptimizedDeviationTotal == nil {
		return 0
	}
	return *s.OptimizedDeviationTotal
}

// UnmarshalJSON 按顺序读取对象字段，识别中英文偏差字段
func (s *SkuSummary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("sku summary: expected object, got %v", tok)
	}

	out := SkuSummary{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("sku summary field %q: %w", key, err)
		}
		if n, ok := value.(json.Number); ok {
			if f, err := n.Float64(); err == nil {
				value = f
			}
		}
		out.Fields = append(out.Fields, SummaryField{Key: key, Value: value})

		switch {
		case keyIn(key, skuKeys):
			out.SKU = scalarString(value)
		case keyIn(key, originalDevKeys):
			if f, ok := value.(float64); ok {
				out.OriginalDeviationTotal = &f
			}
		case keyIn(key, optimizedDevKeys):
			if f, ok := value.(float64); ok {
				out.OptimizedDeviationTotal = &f
			}
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = out
	return nil
}

// MarshalJSON 按原始字段顺序输出
func (s SkuSummary) MarshalJSON() ([]byte, error) {
	fields := s.Fields
	if len(fields) == 0 {
		fields = append(fields, SummaryField{Key: "SKU", Value: s.SKU})
		if s.OriginalDeviationTotal != nil {
			fields = append(fields, SummaryField{Key: originalDevKeys[0], Value: *s.OriginalDeviationTotal})
		}
		if s.OptimizedDeviationTotal != nil {
			fields = append(fields, SummaryField{Key: optimizedDevKeys[0], Value: *s.OptimizedDeviationTotal})
		}
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return fmt.Sprint(v)
}

// StringList 字符串列表，兼容服务端返回的数字（pandas 索引可能是整数）
type StringList []string

// UnmarshalJSON 接受字符串、数字、null 混合数组
func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw []any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	out := make(StringList, 0, len(raw))
	for _, v := range raw {
		if n, ok := v.(json.Number); ok {
			out = append(out, n.String())
			continue
		}
		out = append(out, scalarString(v))
	}
	*l = out
	return nil
}

// GapStats 差异统计
type GapStats struct {
	SKUCount     int      `json:"sku_count"`
	DateCount    int      `json:"date_count,omitempty"`
	WeekCount    int      `json:"week_count,omitempty"`
	TotalGap     float64  `json:"total_gap"`
	AbsTotalGap  float64  `json:"abs_total_gap"`
	MaxGap       float64  `json:"max_gap"`
	MinGap       float64  `json:"min_gap"`
	AvgGap       *float64 `json:"avg_gap,omitempty"`
	PositiveGaps *float64 `json:"positive_gaps,omitempty"`
	NegativeGaps *float64 `json:"negative_gaps,omitempty"`
}

// GapMatrix 差异矩阵（SKU × 日期），三个网格形状一致
type GapMatrix struct {
	SKUs           StringList  `json:"skus"`
	Dates          StringList  `json:"dates"`
	GapValues      [][]float64 `json:"gap_values"`
	ScheduleValues [][]float64 `json:"schedule_values"`
	POValues       [][]float64 `json:"po_values"`
	Stats          GapStats    `json:"stats"`
}

// DateCount 日期列数：date_count，其次 week_count，最后按 dates 长度
func (m *GapMatrix) DateCount() int {
	if m.Stats.DateCount > 0 {
		return m.Stats.DateCount
	}
	if m.Stats.WeekCount > 0 {
		return m.Stats.WeekCount
	}
	return len(m.Dates)
}

// Validate 校验三个网格与 skus/dates 维度一致
func (m *GapMatrix) Validate() error {
	grids := []struct {
		name string
		grid [][]float64
	}{
		{"gap_values", m.GapValues},
		{"schedule_values", m.ScheduleValues},
		{"po_values", m.POValues},
	}
	for _, g := range grids {
		if len(g.grid) != len(m.SKUs) {
			return fmt.Errorf("%s has %d rows, want %d", g.name, len(g.grid), len(m.SKUs))
		}
		for i, row := range g.grid {
			if len(row) != len(m.Dates) {
				return fmt.Errorf("%s row %d has %d columns, want %d", g.name, i, len(row), len(m.Dates))
			}
		}
	}
	return nil
}
