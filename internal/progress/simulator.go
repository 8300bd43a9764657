package progress

import (
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Simulator 进度模拟器，每次 Start 返回一个需要调用方释放的 Task
type Simulator struct {
	cfg    Config
	rand   func() float64
	logger *slog.Logger
}

// Option 模拟器选项
type Option func(*Simulator)

// WithRand 替换随机源（返回 [0,1)）
func WithRand(fn func() float64) Option {
	return func(s *Simulator) { s.rand = fn }
}

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) Option {
	return func(s *Simulator) { s.logger = logger }
}

// NewSimulator 创建模拟器
func NewSimulator(cfg Config, opts ...Option) *Simulator {
	s := &Simulator{
		cfg:    cfg.normalize(),
		rand:   rand.Float64,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config 生效的参数
func (s *Simulator) Config() Config {
	return s.cfg
}

// Start 启动定时器；onUpdate 可为 nil，在定时器 goroutine 中调用
func (s *Simulator) Start(onUpdate func(Snapshot)) *Task {
	t := &Task{
		sim:      s,
		tracker:  NewTracker(s.cfg),
		onUpdate: onUpdate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

// Task 一次进度模拟；成功和失败路径都必须调用 Complete 或 Stop
type Task struct {
	sim      *Simulator
	onUpdate func(Snapshot)

	mu      sync.Mutex
	tracker *Tracker

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func (t *Task) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.sim.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			// stop 与 tick 同时就绪时优先停止
			select {
			case <-t.stop:
				return
			default:
			}
			t.publish(t.tick())
		}
	}
}

func (t *Task) tick() Snapshot {
	cfg := t.sim.cfg
	delta := cfg.MinStep + t.sim.rand()*(cfg.MaxStep-cfg.MinStep)

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.Advance(delta)
}

func (t *Task) publish(snap Snapshot) {
	if t.onUpdate != nil {
		t.onUpdate(snap)
	}
}

// Snapshot 当前进度
func (t *Task) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.tracker.Snapshot()
}

// Stop 取消定时器并等待其退出；可重复调用
func (t *Task) Stop() Snapshot {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
	return t.Snapshot()
}

// Complete 停止定时器后把进度置为 100
func (t *Task) Complete() Snapshot {
	t.Stop()

	t.mu.Lock()
	snap := t.tracker.Complete()
	t.mu.Unlock()

	t.publish(snap)
	t.sim.logger.Debug("progress completed")
	return snap
}

// Done 定时器退出后关闭
func (t *Task) Done() <-chan struct{} {
	return t.done
}
