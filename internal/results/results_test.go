package results

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/kai657/po-adjustment/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestPercentile(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 70, 0},
		{"empty p0", []float64{}, 0, 0},
		{"single", []float64{5}, 70, 5},
		{"one to ten", []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 70, 7},
		{"unsorted input", []float64{10, 1, 9, 2, 8, 3, 7, 4, 6, 5}, 70, 7},
		{"p100", []float64{3, 1, 2}, 100, 3},
		{"p0 clamps to first", []float64{3, 1, 2}, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Percentile(tc.values, tc.p); got != tc.want {
				t.Fatalf("Percentile(%v, %v) = %v, want %v", tc.values, tc.p, got, tc.want)
			}
		})
	}
}

func TestPercentile_DoesNotSortInput(t *testing.T) {
	t.Parallel()

	in := []float64{3, 1, 2}
	Percentile(in, 70)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestHighlightThreshold_ExcludesZeros(t *testing.T) {
	t.Parallel()

	grid := [][]float64{{0, 0, -4}, {2, 0, 1}}
	// 非零绝对值 [1,2,4]，ceil(2.1)-1 = 2
	if got := HighlightThreshold(grid, 70); got != 4 {
		t.Fatalf("threshold = %v, want 4", got)
	}
	if got := HighlightThreshold([][]float64{{0, 0}}, 70); got != 0 {
		t.Fatalf("all-zero threshold = %v, want 0", got)
	}
}

func TestClassifyCell(t *testing.T) {
	t.Parallel()

	cases := []struct {
		value     float64
		threshold float64
		want      string
	}{
		{0, 2, "zero"},
		{0, 0, "zero"},
		{-3, 2, "negative highlight"},
		{1, 2, "positive"},
		{2, 2, "positive highlight"},
		{-0.5, 0, "negative highlight"},
	}
	for _, tc := range cases {
		if got := ClassifyCell(tc.value, tc.threshold).Class(); got != tc.want {
			t.Errorf("ClassifyCell(%v, %v) = %q, want %q", tc.value, tc.threshold, got, tc.want)
		}
	}
}

func TestImprovementRate(t *testing.T) {
	t.Parallel()

	if got := ImprovementRate(0, 123); got != 0 {
		t.Fatalf("rate with zero original = %v, want 0", got)
	}
	if got := ImprovementRate(0, 0); math.IsNaN(got) || got != 0 {
		t.Fatalf("rate 0/0 = %v, want 0", got)
	}
	if got := ImprovementRate(200, 50); got != 75 {
		t.Fatalf("rate = %v, want 75", got)
	}
}

func TestSummarize_MissingValuesAreZero(t *testing.T) {
	t.Parallel()

	stats := Summarize([]model.SkuSummary{
		{SKU: "A", OriginalDeviationTotal: f64(150), OptimizedDeviationTotal: f64(30)},
		{SKU: "B", OriginalDeviationTotal: f64(50)},
		{SKU: "C"},
	})
	if stats.SKUCount != 3 || stats.OriginalTotal != 200 || stats.OptimizedTotal != 30 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.Improvement != 170 || stats.ImprovementRate != 85 || stats.Icon != "🎉" {
		t.Fatalf("unexpected improvement: %+v", stats)
	}

	empty := Summarize(nil)
	if !empty.Empty || empty.ImprovementRate != 0 || empty.Icon != "📊" {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestImprovementIcon(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{75: "🎉", 50: "✅", 31: "✅", 30: "📈", 10.5: "📈", 10: "📊", -5: "📊"}
	for rate, want := range cases {
		if got := ImprovementIcon(rate); got != want {
			t.Errorf("ImprovementIcon(%v) = %s, want %s", rate, got, want)
		}
	}
}

func sampleMatrix() *model.GapMatrix {
	return &model.GapMatrix{
		SKUs:           model.StringList{"Z-9", "A-1"},
		Dates:          model.StringList{"2025-01-13", "2025-01-06", "2024-12-30"},
		GapValues:      [][]float64{{10, -3, 0}, {0, 1, -8}},
		ScheduleValues: [][]float64{{100, 50, 0}, {20, 40, 8}},
		POValues:       [][]float64{{90, 53, 0}, {20, 39, 16}},
		Stats:          model.GapStats{SKUCount: 2, DateCount: 3, TotalGap: 0, AbsTotalGap: 22, MaxGap: 10, MinGap: -8},
	}
}

func TestBuildGapTable_PreservesOrder(t *testing.T) {
	t.Parallel()

	table, err := BuildGapTable(sampleMatrix(), DefaultHighlightPercentile)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	// 非零绝对值 [1,3,8,10]，ceil(2.8)-1 = 2 -> 8
	if table.Threshold != 8 {
		t.Fatalf("threshold = %v, want 8", table.Threshold)
	}
	if len(table.Groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(table.Groups))
	}
	for _, g := range table.Groups {
		if strings.Join(g.Dates, ",") != "2025-01-13,2025-01-06,2024-12-30" {
			t.Fatalf("group %s dates reordered: %v", g.Key, g.Dates)
		}
	}
	if table.Rows[0].SKU != "Z-9" || table.Rows[1].SKU != "A-1" {
		t.Fatalf("rows reordered: %s, %s", table.Rows[0].SKU, table.Rows[1].SKU)
	}

	want := [][]string{
		{"positive highlight", "negative", "zero"},
		{"zero", "positive", "negative highlight"},
	}
	for i, row := range table.Rows {
		for j, c := range row.Gap {
			if c.Class() != want[i][j] {
				t.Errorf("cell (%d,%d) = %q, want %q", i, j, c.Class(), want[i][j])
			}
		}
	}
	if table.HighlightCount() != 2 {
		t.Fatalf("highlights = %d, want 2", table.HighlightCount())
	}
}

func TestBuildGapTable_RejectsMismatchedShape(t *testing.T) {
	t.Parallel()

	m := sampleMatrix()
	m.ScheduleValues = m.ScheduleValues[:1]
	if _, err := BuildGapTable(m, DefaultHighlightPercentile); err == nil {
		t.Fatalf("mismatched grids should be rejected")
	}
}

func samplePayload() *model.ResultPayload {
	return &model.ResultPayload{
		Summary: []model.SkuSummary{
			{SKU: "A", OriginalDeviationTotal: f64(200), OptimizedDeviationTotal: f64(50)},
		},
		GapAnalysis: sampleMatrix(),
		Files: map[string]string{
			model.FileOptimizedPO:     "po.xlsx",
			model.FileReport:          "report.xlsx",
			model.FileComparisonChart: "cmp.png",
			model.FileDeviationChart:  "dev.png",
			model.FileGapAnalysis:     "gap.xlsx",
		},
	}
}

func TestRender_AllFeatures(t *testing.T) {
	t.Parallel()

	r := NewRenderer(Features{EnableGapAnalysis: true, EnableDeviationChart: true}, nil)
	view := r.Render(samplePayload())

	if view.Summary.ImprovementRate != 75 {
		t.Fatalf("rate = %v", view.Summary.ImprovementRate)
	}
	if view.Gap == nil {
		t.Fatalf("gap table missing")
	}
	if len(view.Charts) != 2 || view.Charts[1].PreviewURL != "/api/preview/dev.png" {
		t.Fatalf("charts = %+v", view.Charts)
	}
	if len(view.Downloads) != 3 || view.Downloads[0].DownloadURL != "/api/download/po.xlsx" {
		t.Fatalf("downloads = %+v", view.Downloads)
	}
	if view.GapDownload == nil || view.GapDownload.Filename != "gap.xlsx" {
		t.Fatalf("gap download = %+v", view.GapDownload)
	}
}

func TestRender_FeaturesOff(t *testing.T) {
	t.Parallel()

	view := NewRenderer(Features{}, nil).Render(samplePayload())
	if view.Gap != nil || view.GapDownload != nil {
		t.Fatalf("gap analysis rendered while disabled")
	}
	if len(view.Charts) != 1 || view.Charts[0].Role != model.FileComparisonChart {
		t.Fatalf("charts = %+v", view.Charts)
	}
}

func TestRender_GapAnalysisAbsent(t *testing.T) {
	t.Parallel()

	payload := samplePayload()
	payload.GapAnalysis = nil
	delete(payload.Files, model.FileGapAnalysis)

	view := NewRenderer(Features{EnableGapAnalysis: true}, nil).Render(payload)
	if view.Gap != nil || len(view.Warnings) != 0 {
		t.Fatalf("absent gap analysis should be skipped silently: %+v", view)
	}
	if view.Summary.SKUCount != 1 || len(view.Downloads) != 3 {
		t.Fatalf("summary/downloads missing: %+v", view)
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, view); err != nil {
		t.Fatalf("render html: %v", err)
	}
	html := buf.String()
	if strings.Contains(html, "gap-table") {
		t.Fatalf("gap table rendered without data")
	}
	if !strings.Contains(html, "75.00%") || !strings.Contains(html, "/api/download/report.xlsx") {
		t.Fatalf("summary or artifact links missing:\n%s", html)
	}
}

func TestRender_BadGapMatrixWarns(t *testing.T) {
	t.Parallel()

	payload := samplePayload()
	payload.GapAnalysis.POValues = nil

	view := NewRenderer(Features{EnableGapAnalysis: true}, nil).Render(payload)
	if view.Gap != nil || len(view.Warnings) != 1 {
		t.Fatalf("mismatched matrix should be skipped with warning: %+v", view.Warnings)
	}
}

func TestRender_NilPayloadAndEmptySummary(t *testing.T) {
	t.Parallel()

	view := NewRenderer(Features{EnableGapAnalysis: true}, nil).Render(nil)
	if !view.Summary.Empty || view.Gap != nil {
		t.Fatalf("unexpected view for nil payload: %+v", view)
	}

	var buf bytes.Buffer
	if err := RenderHTML(&buf, view); err != nil {
		t.Fatalf("render html: %v", err)
	}
	if !strings.Contains(buf.String(), "0.00%") {
		t.Fatalf("empty summary should render zero cards:\n%s", buf.String())
	}
}

func TestRenderHTML_GapTable(t *testing.T) {
	t.Parallel()

	view := NewRenderer(Features{EnableGapAnalysis: true}, nil).Render(samplePayload())
	var buf bytes.Buffer
	if err := RenderHTML(&buf, view); err != nil {
		t.Fatalf("render html: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`colspan="3" class="section-header">GAP差异`,
		`class="positive highlight">10`,
		`class="negative highlight">-8`,
		`<td class="sku-cell">Z-9</td>`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
	if strings.Index(html, "Z-9") > strings.Index(html, "A-1") {
		t.Errorf("row order not preserved")
	}
}

func TestRenderText(t *testing.T) {
	t.Parallel()

	view := NewRenderer(Features{EnableGapAnalysis: true}, nil).Render(samplePayload())
	var buf bytes.Buffer
	if err := RenderText(&buf, view); err != nil {
		t.Fatalf("render text: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"75.00%", "GAP差异", "2025-01-13", "Z-9", "/api/download/gap.xlsx"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q", want)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{
		0:         "0",
		-0.0001:   "0",
		1234.5:    "1,234.5",
		-1234567:  "-1,234,567",
		1.23456:   "1.235",
		math.NaN(): "-",
	}
	for v, want := range cases {
		if got := FormatNumber(v); got != want {
			t.Errorf("FormatNumber(%v) = %q, want %q", v, got, want)
		}
	}
}
