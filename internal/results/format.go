package results

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// FormatNumber 千分位，最多保留 3 位小数
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	v = math.Round(v*1000) / 1000
	if v == 0 {
		v = 0 // 避免输出 -0
	}
	return humanize.Commaf(v)
}

// FormatRate 百分比，两位小数
func FormatRate(rate float64) string {
	return fmt.Sprintf("%.2f%%", rate)
}
