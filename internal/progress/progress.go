// Package progress 模拟优化任务的进度显示。
//
// 远端优化接口是一次性请求，不返回中间进度；这里的进度只用于界面展示，
// 请求结束前不会超过上限，只有确认成功后才到 100。
package progress

import (
	"math"
	"time"
)

// DefaultPhases 状态文案，按进度顺序推进
var DefaultPhases = []string{
	"🔄 正在初始化优化引擎...",
	"📊 正在加载数据文件...",
	"🔍 正在分析SKU数据...",
	"⚡ 正在执行优化算法...",
	"📈 正在计算最优方案...",
	"🎨 正在生成可视化图表...",
}

// DefaultDonePhase 完成文案
const DefaultDonePhase = "✅ 优化完成！"

// Config 模拟参数
type Config struct {
	Interval     time.Duration // 定时器间隔
	MinStep      float64       // 每次最小增量
	MaxStep      float64       // 每次最大增量
	Ceiling      float64       // 完成前的上限，必须小于 100
	PhaseSpacing float64       // 每个文案的进度间隔
	Phases       []string
	DonePhase    string

	// CompletionDelay 到达 100% 后展示结果前的停顿
	CompletionDelay time.Duration
}

// DefaultConfig 默认参数（500ms，+5..+15，上限 90，每 15 切换文案，完成后停顿 1.5s）
func DefaultConfig() Config {
	return Config{
		Interval:        500 * time.Millisecond,
		MinStep:         5,
		MaxStep:         15,
		Ceiling:         90,
		PhaseSpacing:    15,
		Phases:          DefaultPhases,
		DonePhase:       DefaultDonePhase,
		CompletionDelay: 1500 * time.Millisecond,
	}
}

// normalize 修正非法参数
func (c Config) normalize() Config {
	def := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.MinStep < 0 {
		c.MinStep = 0
	}
	if c.MaxStep < c.MinStep {
		c.MaxStep = c.MinStep
	}
	if c.Ceiling <= 0 || c.Ceiling >= 100 {
		c.Ceiling = def.Ceiling
	}
	if c.PhaseSpacing <= 0 {
		c.PhaseSpacing = def.PhaseSpacing
	}
	if len(c.Phases) == 0 {
		c.Phases = def.Phases
	}
	if c.DonePhase == "" {
		c.DonePhase = def.DonePhase
	}
	if c.CompletionDelay < 0 {
		c.CompletionDelay = 0
	}
	return c
}

// Snapshot 进度快照
type Snapshot struct {
	Percent    float64 `json:"percent"`
	Display    int     `json:"display"` // 向下取整的百分比
	Phase      string  `json:"phase"`
	PhaseIndex int     `json:"phaseIndex"`
	Done       bool    `json:"done"`
}

// Tracker 进度累加器（纯状态，不含定时器）
type Tracker struct {
	cfg      Config
	progress float64
	phase    int
	done     bool
}

// NewTracker 创建累加器
func NewTracker(cfg Config) *Tracker {
	return &Tracker{cfg: cfg.normalize()}
}

// Advance 累加进度，不超过上限；每次最多推进一个文案，不回退
func (t *Tracker) Advance(delta float64) Snapshot {
	if t.done {
		return t.Snapshot()
	}
	if delta > 0 {
		t.progress = math.Min(t.progress+delta, t.cfg.Ceiling)
	}
	if t.progress > float64(t.phase)*t.cfg.PhaseSpacing && t.phase < len(t.cfg.Phases)-1 {
		t.phase++
	}
	return t.Snapshot()
}

// Complete 确认成功：进度置为 100 并显示完成文案
func (t *Tracker) Complete() Snapshot {
	t.progress = 100
	t.done = true
	return t.Snapshot()
}

// Snapshot 当前快照
func (t *Tracker) Snapshot() Snapshot {
	phase := t.cfg.Phases[t.phase]
	if t.done {
		phase = t.cfg.DonePhase
	}
	return Snapshot{
		Percent:    t.progress,
		Display:    int(math.Floor(t.progress)),
		Phase:      phase,
		PhaseIndex: t.phase,
		Done:       t.done,
	}
}
