package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Level 消息类型
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
)

// DefaultDuration 自动消失时长
const DefaultDuration = 3 * time.Second

// Notification 当前显示的消息
type Notification struct {
	Message string    `json:"message"`
	Level   Level     `json:"level"`
	ShownAt time.Time `json:"shownAt"`
}

// Channel 单槽位自动消失的消息通道：新消息直接替换旧消息，不排队
type Channel struct {
	duration time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	current *Notification
	seq     uint64
	timer   *time.Timer
}

// New 创建消息通道
func New(duration time.Duration, logger *slog.Logger) *Channel {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{duration: duration, logger: logger}
}

// Show 显示消息并在固定时长后移除
func (c *Channel) Show(message string, level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.seq++
	seq := c.seq
	c.current = &Notification{Message: message, Level: level, ShownAt: time.Now()}
	c.timer = time.AfterFunc(c.duration, func() { c.expire(seq) })

	c.logger.Debug("notification", "level", string(level), "message", message)
}

func (c *Channel) Info(message string)    { c.Show(message, LevelInfo) }
func (c *Channel) Success(message string) { c.Show(message, LevelSuccess) }
func (c *Channel) Error(message string)   { c.Show(message, LevelError) }
func (c *Channel) Warning(message string) { c.Show(message, LevelWarning) }

// expire 只移除仍属于该序号的消息，被新消息替换后的旧定时器不生效
func (c *Channel) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seq != seq {
		return
	}
	c.current = nil
	c.timer = nil
}

// Current 当前消息
func (c *Channel) Current() (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Notification{}, false
	}
	return *c.current, true
}

// Close 停止待执行的移除定时器
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
