package results

import (
	"log/slog"
	"net/url"

	"github.com/kai657/po-adjustment/internal/model"
)

// Features 结果页功能开关（不同版本的页面统一为一份配置）
type Features struct {
	EnableGapAnalysis    bool `json:"enableGapAnalysis" toml:"enable_gap_analysis"`
	EnableDeviationChart bool `json:"enableDeviationChart" toml:"enable_deviation_chart"`
}

// Artifact 服务端生成的产物链接
type Artifact struct {
	Role        string `json:"role"`
	Label       string `json:"label"`
	Filename    string `json:"filename"`
	PreviewURL  string `json:"previewUrl,omitempty"`
	DownloadURL string `json:"downloadUrl"`
}

// View 结果页数据
type View struct {
	Summary     SummaryStats `json:"summary"`
	Gap         *GapTable    `json:"gap,omitempty"`
	Charts      []Artifact   `json:"charts"`
	Downloads   []Artifact   `json:"downloads"`
	GapDownload *Artifact    `json:"gapDownload,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// PreviewPath 图片预览地址
func PreviewPath(filename string) string {
	return "/api/preview/" + url.PathEscape(filename)
}

// DownloadPath 下载地址
func DownloadPath(filename string) string {
	return "/api/download/" + url.PathEscape(filename)
}

// Renderer 结果渲染器
type Renderer struct {
	features   Features
	percentile float64
	logger     *slog.Logger
}

// NewRenderer 创建渲染器
func NewRenderer(features Features, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		features:   features,
		percentile: DefaultHighlightPercentile,
		logger:     logger,
	}
}

// Features 当前功能开关
func (r *Renderer) Features() Features {
	return r.features
}

// Render 生成结果页；缺失的 gap_analysis/summary 视为合法缺省，不返回错误
func (r *Renderer) Render(payload *model.ResultPayload) View {
	view := View{Charts: []Artifact{}, Downloads: []Artifact{}}
	if payload == nil {
		view.Summary = Summarize(nil)
		return view
	}

	view.Summary = Summarize(payload.Summary)

	if r.features.EnableGapAnalysis && payload.GapAnalysis != nil {
		table, err := BuildGapTable(payload.GapAnalysis, r.percentile)
		if err != nil {
			r.logger.Warn("skip gap analysis render", "error", err)
			view.Warnings = append(view.Warnings, "差异分析数据不完整，已跳过差异表")
		} else {
			view.Gap = table
		}
	}

	view.Charts = r.charts(payload)
	view.Downloads = downloads(payload)
	if r.features.EnableGapAnalysis {
		if name, ok := payload.File(model.FileGapAnalysis); ok {
			view.GapDownload = &Artifact{
				Role:        model.FileGapAnalysis,
				Label:       "📋 差异分析表",
				Filename:    name,
				DownloadURL: DownloadPath(name),
			}
		}
	}
	return view
}

func (r *Renderer) charts(payload *model.ResultPayload) []Artifact {
	roles := []struct {
		role  string
		label string
		on    bool
	}{
		{model.FileComparisonChart, "📈 数量对比图", true},
		{model.FileDeviationChart, "📉 偏差对比图", r.features.EnableDeviationChart},
	}

	out := []Artifact{}
	for _, c := range roles {
		if !c.on {
			continue
		}
		name, ok := payload.File(c.role)
		if !ok {
			continue
		}
		out = append(out, Artifact{
			Role:        c.role,
			Label:       c.label,
			Filename:    name,
			PreviewURL:  PreviewPath(name),
			DownloadURL: DownloadPath(name),
		})
	}
	return out
}

func downloads(payload *model.ResultPayload) []Artifact {
	roles := []struct {
		role  string
		label string
	}{
		{model.FileOptimizedPO, "📄 优化后PO清单"},
		{model.FileReport, "📊 详细对比报告"},
		{model.FileComparisonChart, "📈 数量对比图"},
	}

	out := []Artifact{}
	for _, d := range roles {
		name, ok := payload.File(d.role)
		if !ok {
			continue
		}
		out = append(out, Artifact{
			Role:        d.role,
			Label:       d.label,
			Filename:    name,
			DownloadURL: DownloadPath(name),
		})
	}
	return out
}
