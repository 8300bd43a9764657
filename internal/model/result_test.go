package model

import (
	"encoding/json"
	"testing"
)

func TestSkuSummary_UnmarshalChineseKeys(t *testing.T) {
	t.Parallel()

	raw := `{"SKU":"A-100","周数":4,"原始总偏差":120,"优化后总偏差":30,"改善百分比":"75.00%"}`
	var s SkuSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.SKU != "A-100" {
		t.Fatalf("sku = %q", s.SKU)
	}
	if s.Original() != 120 || s.Optimized() != 30 {
		t.Fatalf("deviation = %v/%v, want 120/30", s.Original(), s.Optimized())
	}

	wantKeys := []string{"SKU", "周数", "原始总偏差", "优化后总偏差", "改善百分比"}
	if len(s.Fields) != len(wantKeys) {
		t.Fatalf("fields = %d, want %d", len(s.Fields), len(wantKeys))
	}
	for i, k := range wantKeys {
		if s.Fields[i].Key != k {
			t.Fatalf("field %d = %q, want %q", i, s.Fields[i].Key, k)
		}
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Fatalf("marshal order changed:\n got: %s\nwant: %s", out, raw)
	}
}

func TestSkuSummary_MissingDeviationIsZero(t *testing.T) {
	t.Parallel()

	cases := []string{
		`{"SKU":"B"}`,
		`{"SKU":"B","原始总偏差":null,"优化后总偏差":"N/A"}`,
	}
	for _, raw := range cases {
		var s SkuSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if s.OriginalDeviationTotal != nil || s.OptimizedDeviationTotal != nil {
			t.Fatalf("%s: deviation should be absent", raw)
		}
		if s.Original() != 0 || s.Optimized() != 0 {
			t.Fatalf("%s: absent deviation should read as 0", raw)
		}
	}
}

func TestSkuSummary_EnglishKeys(t *testing.T) {
	t.Parallel()

	var s SkuSummary
	if err := json.Unmarshal([]byte(`{"sku":7,"originalDeviationTotal":10.5,"optimized_deviation_total":2}`), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.SKU != "7" || s.Original() != 10.5 || s.Optimized() != 2 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestStringList_AcceptsNumbers(t *testing.T) {
	t.Parallel()

	var l StringList
	if err := json.Unmarshal([]byte(`["X1", 1002, 3.5, null]`), &l); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []string{"X1", "1002", "3.5", ""}
	for i := range want {
		if l[i] != want[i] {
			t.Fatalf("item %d = %q, want %q", i, l[i], want[i])
		}
	}
}

func TestGapMatrix_Validate(t *testing.T) {
	t.Parallel()

	m := &GapMatrix{
		SKUs:           StringList{"A", "B"},
		Dates:          StringList{"2025-01-06", "2025-01-13"},
		GapValues:      [][]float64{{1, 2}, {3, 4}},
		ScheduleValues: [][]float64{{1, 2}, {3, 4}},
		POValues:       [][]float64{{1, 2}, {3, 4}},
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("valid matrix rejected: %v", err)
	}
	if m.DateCount() != 2 {
		t.Fatalf("date count = %d, want 2", m.DateCount())
	}

	m.POValues = [][]float64{{1, 2}, {3}}
	if err := m.Validate(); err == nil {
		t.Fatalf("ragged po_values should be rejected")
	}
}

func TestGapMatrix_DateCountFallsBackToWeekCount(t *testing.T) {
	t.Parallel()

	m := &GapMatrix{Dates: StringList{"w1", "w2", "w3"}, Stats: GapStats{WeekCount: 5}}
	if m.DateCount() != 5 {
		t.Fatalf("date count = %d, want 5", m.DateCount())
	}
}

func TestOptimizeResponse_GapAnalysisAbsent(t *testing.T) {
	t.Parallel()

	raw := `{"success":true,"data":{"summary":[],"files":{"optimized_po":"po.xlsx","report":"r.xlsx","comparison_chart":"c.png"}}}`
	var resp OptimizeResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Data.GapAnalysis != nil {
		t.Fatalf("gap analysis should be absent")
	}
	if name, ok := resp.Data.File(FileGapAnalysis); ok {
		t.Fatalf("gap analysis file should be absent, got %q", name)
	}
	if name, _ := resp.Data.File(FileComparisonChart); name != "c.png" {
		t.Fatalf("comparison chart = %q", name)
	}
}

func TestOptimizeParams_Validate(t *testing.T) {
	t.Parallel()

	if err := (OptimizeParams{PriorityWeeks: 0, MaxWorkers: 1}).Validate(); err != nil {
		t.Fatalf("boundary params rejected: %v", err)
	}
	if err := (OptimizeParams{PriorityWeeks: -1, MaxWorkers: 0}).Validate(); err == nil {
		t.Fatalf("invalid params accepted")
	}
}
