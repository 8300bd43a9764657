package results

import "github.com/kai657/po-adjustment/internal/model"

// SummaryStats 优化效果汇总
type SummaryStats struct {
	SKUCount        int     `json:"skuCount"`
	OriginalTotal   float64 `json:"originalTotal"`   // 原始总偏差
	OptimizedTotal  float64 `json:"optimizedTotal"`  // 优化后总偏差
	Improvement     float64 `json:"improvement"`     // 偏差改善
	ImprovementRate float64 `json:"improvementRate"` // 改善率（%）
	Icon            string  `json:"icon"`
	Empty           bool    `json:"empty"` // 无 summary 数据
}

// Summarize 汇总所有 SKU 的偏差；缺失值按 0 计
func Summarize(summary []model.SkuSummary) SummaryStats {
	stats := SummaryStats{SKUCount: len(summary), Empty: len(summary) == 0}
	for _, s := range summary {
		stats.OriginalTotal += s.Original()
		stats.OptimizedTotal += s.Optimized()
	}
	stats.Improvement = stats.OriginalTotal - stats.OptimizedTotal
	stats.ImprovementRate = ImprovementRate(stats.OriginalTotal, stats.OptimizedTotal)
	stats.Icon = ImprovementIcon(stats.ImprovementRate)
	return stats
}

// ImprovementRate 改善率；原始偏差不大于 0 时为 0
func ImprovementRate(original, optimized float64) float64 {
	if original <= 0 {
		return 0
	}
	return (original - optimized) / original * 100
}

// ImprovementIcon 按改善率选择图标
func ImprovementIcon(rate float64) string {
	switch {
	case rate > 50:
		return "🎉"
	case rate > 30:
		return "✅"
	case rate > 10:
		return "📈"
	}
	return "📊"
}
