// Package wizard 实现四步向导：文件校验、步骤状态机和上传/优化流程。
//
// Session 是 WizardState 唯一的持有者；同一类请求同时最多一个在途，
// 触发控件在请求期间保持禁用。
package wizard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/notify"
	"github.com/kai657/po-adjustment/internal/optimizer"
	"github.com/kai657/po-adjustment/internal/progress"
	"github.com/kai657/po-adjustment/internal/results"
	"github.com/kai657/po-adjustment/internal/util"
)

// Backend 远端优化服务
type Backend interface {
	Upload(ctx context.Context, schedule, po *model.FileHandle) (*model.UploadData, error)
	Optimize(ctx context.Context, params model.OptimizeParams) (*model.ResultPayload, error)
}

// Journal 优化记录
type Journal interface {
	RecordRun(ctx context.Context, rec model.RunRecord) error
}

// Options 会话选项
type Options struct {
	Intake             IntakeOptions
	Features           results.Features
	Params             model.OptimizeParams // 参数控件初始值
	Progress           progress.Config
	NotifyDuration     time.Duration
	UploadAdvanceDelay time.Duration // 上传成功后进入步骤 2 前的停顿
	Journal            Journal
	Logger             *slog.Logger

	// ProgressOptions 传给进度模拟器（测试中替换随机源）
	ProgressOptions []progress.Option
}

// Controls 控件可用状态
type Controls struct {
	UploadEnabled   bool `json:"uploadEnabled"`
	Uploading       bool `json:"uploading"`
	OptimizeEnabled bool `json:"optimizeEnabled"`
	Optimizing      bool `json:"optimizing"`
	ProgressVisible bool `json:"progressVisible"`
}

// FileView 已选文件信息
type FileView struct {
	Role     model.Role `json:"role"`
	Label    string     `json:"label"`
	Name     string     `json:"name"`
	Size     int64      `json:"size"`
	SizeText string     `json:"sizeText"`
	Type     string     `json:"type"`
}

// Snapshot 会话快照（界面渲染使用）
type Snapshot struct {
	SessionID    string               `json:"sessionId"`
	CurrentStep  model.Step           `json:"currentStep"`
	Indicators   []Indicator          `json:"indicators"`
	Files        []FileView           `json:"files"`
	Ready        bool                 `json:"ready"`
	Uploaded     bool                 `json:"uploaded"`
	Controls     Controls             `json:"controls"`
	Params       model.OptimizeParams `json:"params"`
	ParamSummary model.ParamSummary   `json:"paramSummary"`
	Upload       *model.UploadData    `json:"upload,omitempty"`
	Progress     progress.Snapshot    `json:"progress"`
	Notification *notify.Notification `json:"notification,omitempty"`
	HasResult    bool                 `json:"hasResult"`
}

// Session 单个向导会话
type Session struct {
	id        string
	opts      Options
	backend   Backend
	notifier  *notify.Channel
	simulator *progress.Simulator
	renderer  *results.Renderer
	logger    *slog.Logger

	mu           sync.Mutex
	state        *model.WizardState
	steps        *StepController
	intake       *IntakeValidator
	params       model.OptimizeParams
	paramSummary model.ParamSummary
	upload       *model.UploadData
	view         *results.View
	uploading    bool
	optimizing   bool
	task         *progress.Task
	progressOn   bool
	lastProgress progress.Snapshot
	watchers     map[int]chan progress.Snapshot
	nextWatcher  int
}

// NewSession 创建会话
func NewSession(backend Backend, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	state := model.NewWizardState()
	s := &Session{
		id:        uuid.NewString(),
		opts:      opts,
		backend:   backend,
		notifier:  notify.New(opts.NotifyDuration, logger),
		simulator: progress.NewSimulator(opts.Progress, append([]progress.Option{progress.WithLogger(logger)}, opts.ProgressOptions...)...),
		renderer:  results.NewRenderer(opts.Features, logger),
		state:     state,
		steps:     NewStepController(state),
		intake:    NewIntakeValidator(state, opts.Intake),
		params:    opts.Params,
		watchers:  map[int]chan progress.Snapshot{},
	}
	s.logger = logger.With("session", s.id)
	s.paramSummary = s.params.Summary()
	s.steps.OnEnter = s.onEnterStep
	return s
}

// ID 会话 ID
func (s *Session) ID() string {
	return s.id
}

// Notifier 消息通道
func (s *Session) Notifier() *notify.Channel {
	return s.notifier
}

// Renderer 结果渲染器
func (s *Session) Renderer() *results.Renderer {
	return s.renderer
}

// onEnterStep 在持锁状态下由 StepController 调用
func (s *Session) onEnterStep(step model.Step) {
	if step == model.StepOptimize {
		s.paramSummary = s.params.Summary()
	}
	s.logger.Debug("step entered", "step", step.String())
}

// SelectFile 处理一次文件选择；校验失败时只发出提示，不修改状态
func (s *Session) SelectFile(sel Selection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.state.File(sel.Role)
	if err := s.intake.Select(sel); err != nil {
		s.logger.Warn("file rejected", "role", string(sel.Role), "source", string(sel.Source), "error", err)
		s.notifier.Error(UserMessage(err, "请上传 Excel 文件 (.xlsx 或 .xls)"))
		return err
	}

	if prev != sel.File {
		// 服务端副本已过期，需要重新上传；结果保留
		s.state.Uploaded = false
		s.upload = nil
	}
	s.logger.Info("file selected", "role", string(sel.Role), "source", string(sel.Source),
		"name", sel.File.Name, "size", sel.File.Size)
	if sel.Source == SourceDrop {
		s.notifier.Success("已选择文件: " + sel.File.Name)
	}
	return nil
}

// Upload 提交两个文件；成功后停顿片刻再进入步骤 2
func (s *Session) Upload(ctx context.Context) (*model.UploadData, error) {
	s.mu.Lock()
	if s.uploading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	if err := s.intake.CheckSubmission(); err != nil {
		s.notifier.Error("请选择两个文件")
		s.mu.Unlock()
		return nil, err
	}
	schedule, po := s.state.ScheduleFile, s.state.POFile
	s.uploading = true
	s.notifier.Info("正在上传文件...")
	s.mu.Unlock()

	data, err := s.backend.Upload(ctx, schedule, po)

	s.mu.Lock()
	if err != nil {
		s.uploading = false
		s.logger.Error("upload failed", "kind", string(Kind(err)), "error", err)
		s.notifier.Error(UserMessage(err, "上传失败"))
		s.mu.Unlock()
		return nil, err
	}

	// 上传期间文件被替换时，这次上传不算数
	current := s.state.ScheduleFile == schedule && s.state.POFile == po
	if current {
		s.state.Uploaded = true
		s.upload = data
	}
	if data.Conversion != nil && data.Conversion.Converted {
		s.notifier.Success("✅ 文件上传成功！已自动转换交叉表格式")
	} else {
		s.notifier.Success("✅ 文件上传成功！")
	}
	s.logger.Info("upload succeeded", "schedule", schedule.Name, "po", po.Name)
	s.mu.Unlock()

	wait(ctx, s.opts.UploadAdvanceDelay)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if current && s.state.Uploaded && s.steps.Current() == model.StepUpload {
		if err := s.steps.GoToStep(model.StepParams); err != nil {
			s.logger.Warn("advance after upload", "error", err)
		}
	}
	return data, nil
}

// SetParams 更新参数控件的值
func (s *Session) SetParams(p model.OptimizeParams) error {
	if err := p.Validate(); err != nil {
		s.notifier.Error("参数无效: " + err.Error())
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	if s.steps.Current() == model.StepOptimize {
		s.paramSummary = p.Summary()
	}
	return nil
}

// Params 当前参数控件的值
func (s *Session) Params() model.OptimizeParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// GoToStep 用户主动切换步骤
func (s *Session) GoToStep(step model.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.steps.GoToStep(step); err != nil {
		s.notifier.Warning(stepMessage(err))
		return err
	}
	return nil
}

// Optimize 仅在步骤 3 可用；请求期间运行进度模拟，
// 成功后停顿让 100% 可见，渲染完成后再进入步骤 4
func (s *Session) Optimize(ctx context.Context) (*results.View, error) {
	s.mu.Lock()
	if s.steps.Current() != model.StepOptimize {
		s.notifier.Warning("请先完成当前步骤")
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: optimize is only available on step %d", ErrStepLocked, model.StepOptimize)
	}
	if s.optimizing {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	params := s.params
	if err := params.Validate(); err != nil {
		s.notifier.Error("参数无效: " + err.Error())
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	rec := model.RunRecord{
		ID:           uuid.NewString(),
		SessionID:    s.id,
		StartedAt:    time.Now(),
		Params:       params,
		ScheduleFile: fileName(s.state.ScheduleFile),
		POFile:       fileName(s.state.POFile),
	}
	s.optimizing = true
	s.progressOn = true
	s.mu.Unlock()

	// 定时器回调会加锁，所以启动与停止都在锁外进行
	task := s.simulator.Start(s.publishProgress)
	s.mu.Lock()
	s.task = task
	s.lastProgress = task.Snapshot()
	s.mu.Unlock()

	s.logger.Info("optimize started", "run", rec.ID,
		"priority_weeks", params.PriorityWeeks, "priority_weight", params.PriorityWeight,
		"date_weight", params.DateWeight, "max_workers", params.MaxWorkers)

	payload, err := s.backend.Optimize(ctx, params)
	if err != nil {
		snap := task.Stop()

		s.mu.Lock()
		s.task = nil
		s.optimizing = false
		s.progressOn = false
		s.lastProgress = snap
		s.notifier.Error(UserMessage(err, "优化失败"))
		s.mu.Unlock()

		s.logger.Error("optimize failed", "run", rec.ID, "kind", string(Kind(err)), "error", err)
		rec.Outcome = model.RunFailed
		rec.ErrorKind = string(Kind(err))
		rec.ErrorMessage = err.Error()
		s.record(rec)
		return nil, err
	}

	task.Complete()
	wait(ctx, s.simulator.Config().CompletionDelay)
	view := s.renderer.Render(payload)

	s.mu.Lock()
	s.task = nil
	s.state.OptimizationResult = payload
	s.view = &view
	s.optimizing = false
	s.progressOn = false
	if err := s.steps.GoToStep(model.StepResults); err != nil {
		s.logger.Warn("advance after optimize", "error", err)
	}
	s.notifier.Success("✅ 优化完成！")
	s.mu.Unlock()

	rec.Outcome = model.RunSucceeded
	rec.SKUCount = view.Summary.SKUCount
	rec.OriginalTotal = view.Summary.OriginalTotal
	rec.OptimizedTotal = view.Summary.OptimizedTotal
	rec.Rate = view.Summary.ImprovementRate
	rec.HasGapAnalysis = view.Gap != nil
	s.record(rec)
	return &view, nil
}

func (s *Session) record(rec model.RunRecord) {
	if s.opts.Journal == nil {
		return
	}
	rec.FinishedAt = time.Now()
	if err := s.opts.Journal.RecordRun(context.Background(), rec); err != nil {
		s.logger.Warn("failed to record run", "run", rec.ID, "error", err)
	}
}

// publishProgress 模拟器回调，转发给订阅者；订阅者跟不上时丢弃中间值
func (s *Session) publishProgress(snap progress.Snapshot) {
	s.mu.Lock()
	s.lastProgress = snap
	watchers := make([]chan progress.Snapshot, 0, len(s.watchers))
	for _, ch := range s.watchers {
		watchers = append(watchers, ch)
	}
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- snap:
		default:
		}
	}
}

// WatchProgress 订阅进度，返回的 cancel 必须调用
func (s *Session) WatchProgress() (<-chan progress.Snapshot, func()) {
	ch := make(chan progress.Snapshot, 16)

	s.mu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// Result 当前结果页；尚无结果时返回 nil
func (s *Session) Result() (*results.View, *model.ResultPayload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.state.OptimizationResult
}

// Snapshot 当前会话快照
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:    s.id,
		CurrentStep:  s.steps.Current(),
		Indicators:   s.steps.Indicators(),
		Files:        []FileView{},
		Ready:        s.intake.Ready(),
		Uploaded:     s.state.Uploaded,
		Controls:     s.controlsLocked(),
		Params:       s.params,
		ParamSummary: s.paramSummary,
		Upload:       s.upload,
		Progress:     s.lastProgress,
		HasResult:    s.state.OptimizationResult != nil,
	}
	for _, role := range []model.Role{model.RoleSchedule, model.RolePO} {
		if f := s.state.File(role); f != nil {
			snap.Files = append(snap.Files, FileView{
				Role:     role,
				Label:    role.Label(),
				Name:     f.Name,
				Size:     f.Size,
				SizeText: util.FormatFileSize(f.Size),
				Type:     f.TypeLabel(),
			})
		}
	}
	if n, ok := s.notifier.Current(); ok {
		snap.Notification = &n
	}
	return snap
}

// Controls 控件状态
func (s *Session) Controls() Controls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controlsLocked()
}

func (s *Session) controlsLocked() Controls {
	return Controls{
		UploadEnabled:   s.intake.Ready() && !s.uploading,
		Uploading:       s.uploading,
		OptimizeEnabled: s.steps.Current() == model.StepOptimize && !s.optimizing,
		Optimizing:      s.optimizing,
		ProgressVisible: s.progressOn,
	}
}

// CurrentStep 当前步骤
func (s *Session) CurrentStep() model.Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps.Current()
}

// Close 释放定时器
func (s *Session) Close() {
	s.mu.Lock()
	task := s.task
	s.mu.Unlock()

	if task != nil {
		task.Stop()
	}
	s.notifier.Close()
}

// UserMessage 错误对应的提示文案
func UserMessage(err error, fallback string) string {
	if errors.Is(err, ErrBusy) {
		return "请求处理中，请稍候"
	}
	switch Kind(err) {
	case KindInvalidFileType:
		return "请上传 Excel 文件 (.xlsx 或 .xls)"
	case KindIncompleteSubmission:
		return "请选择两个文件"
	case KindServerRejection:
		return rejectionMessage(err, fallback)
	case KindNetworkFailure:
		return "❌ " + fallback + ": " + err.Error()
	}
	return fallback
}

func rejectionMessage(err error, fallback string) string {
	var rej *optimizer.RejectionError
	if errors.As(err, &rej) && rej.Message != "" {
		return rej.Message
	}
	return fallback
}

func stepMessage(err error) string {
	switch Kind(err) {
	case KindIncompleteSubmission:
		return "请选择两个文件"
	}
	return "请先完成当前步骤"
}

func fileName(f *model.FileHandle) string {
	if f == nil {
		return ""
	}
	return f.Name
}

// wait 等待固定时长；ctx 取消时提前返回
func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
