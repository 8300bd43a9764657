package results

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	positiveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2f9e44"))
	negativeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#c92a2a"))
	zeroStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#868e96"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("#FFC7CE"))
	warningStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e67700"))
)

func cellStyle(c Cell) lipgloss.Style {
	var s lipgloss.Style
	switch c.Sign {
	case SignPositive:
		s = positiveStyle
	case SignNegative:
		s = negativeStyle
	default:
		s = zeroStyle
	}
	if c.Highlight {
		s = s.Inherit(highlightStyle)
	}
	return s
}

// RenderText 终端输出结果
func RenderText(w io.Writer, view View) error {
	var b strings.Builder

	b.WriteString(headerStyle.Render("📈 优化效果汇总"))
	b.WriteString("\n")
	s := view.Summary
	fmt.Fprintf(&b, "  处理SKU数:    %d\n", s.SKUCount)
	fmt.Fprintf(&b, "  原始总偏差:   %s\n", FormatNumber(s.OriginalTotal))
	fmt.Fprintf(&b, "  优化后总偏差: %s\n", FormatNumber(s.OptimizedTotal))
	fmt.Fprintf(&b, "  改善率:       %s %s\n", s.Icon, FormatRate(s.ImprovementRate))
	if s.Empty {
		b.WriteString("  (无汇总数据)\n")
	}

	if view.Gap != nil {
		b.WriteString("\n")
		writeGapText(&b, view.Gap)
	}

	for _, warn := range view.Warnings {
		b.WriteString(warningStyle.Render("! " + warn))
		b.WriteString("\n")
	}

	if len(view.Charts) > 0 || len(view.Downloads) > 0 || view.GapDownload != nil {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("产物"))
		b.WriteString("\n")
		for _, c := range view.Charts {
			fmt.Fprintf(&b, "  %s  %s\n", c.Label, c.PreviewURL)
		}
		for _, d := range view.Downloads {
			fmt.Fprintf(&b, "  %s  %s\n", d.Label, d.DownloadURL)
		}
		if d := view.GapDownload; d != nil {
			fmt.Fprintf(&b, "  %s  %s\n", d.Label, d.DownloadURL)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

type textCell struct {
	text  string
	style *lipgloss.Style
}

func writeGapText(b *strings.Builder, t *GapTable) {
	b.WriteString(headerStyle.Render("📋 差异分析表"))
	b.WriteString("\n")
	fmt.Fprintf(b, "  SKU总数 %d | 日期数 %d | 总差异 %s | 绝对差异 %s | 最大差异 %s | 最小差异 %s | 高亮阈值 %s\n",
		t.Stats.SKUCount, t.DateCount,
		FormatNumber(t.Stats.TotalGap), FormatNumber(t.Stats.AbsTotalGap),
		FormatNumber(t.Stats.MaxGap), FormatNumber(t.Stats.MinGap),
		FormatNumber(t.Threshold))

	// 两行表头：分组标题 + 各组日期
	groupRow := []textCell{{text: "SKU"}}
	dateRow := []textCell{{text: ""}}
	for _, g := range t.Groups {
		for i, d := range g.Dates {
			label := ""
			if i == 0 {
				label = g.Label
			}
			groupRow = append(groupRow, textCell{text: label})
			dateRow = append(dateRow, textCell{text: d})
		}
	}

	rows := [][]textCell{groupRow, dateRow}
	for _, r := range t.Rows {
		line := []textCell{{text: r.SKU}}
		for _, c := range r.Gap {
			st := cellStyle(c)
			line = append(line, textCell{text: c.Text(), style: &st})
		}
		for _, v := range r.Schedule {
			line = append(line, textCell{text: FormatNumber(v)})
		}
		for _, v := range r.PO {
			line = append(line, textCell{text: FormatNumber(v)})
		}
		rows = append(rows, line)
	}

	widths := make([]int, len(groupRow))
	for _, line := range rows {
		for i, c := range line {
			if w := lipgloss.Width(c.text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	for n, line := range rows {
		b.WriteString(" ")
		for i, c := range line {
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(c.text))
			text := c.text
			if c.style != nil {
				text = c.style.Render(text)
			}
			if n < 2 {
				text = headerStyle.Render(text)
			}
			b.WriteString(" ")
			if i == 0 {
				b.WriteString(text + pad)
			} else {
				b.WriteString(pad + text)
			}
		}
		b.WriteString("\n")
	}
}
