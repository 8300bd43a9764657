package wizard

import (
	"fmt"

	"github.com/kai657/po-adjustment/internal/model"
)

// IndicatorState 步骤指示器样式
type IndicatorState string

const (
	IndicatorCompleted IndicatorState = "completed"
	IndicatorActive    IndicatorState = "active"
	IndicatorPending   IndicatorState = ""
)

// Indicator 单个步骤指示器
type Indicator struct {
	Step  model.Step     `json:"step"`
	Title string         `json:"title"`
	State IndicatorState `json:"state"`
}

// StepController 四步向导状态机，持有会话状态的引用
//
// 前进每次只能走一步：进入步骤 2 需要已上传，进入步骤 3 需要两个文件，
// 进入步骤 4 需要已有结果。后退不受限制，也不清空文件和结果。
type StepController struct {
	state *model.WizardState

	// OnEnter 进入步骤后调用（例如进入步骤 3 时刷新参数摘要）
	OnEnter func(step model.Step)
}

// NewStepController 创建状态机
func NewStepController(state *model.WizardState) *StepController {
	if state.CurrentStep == 0 {
		state.CurrentStep = model.StepUpload
	}
	return &StepController{state: state}
}

// Current 当前步骤
func (c *StepController) Current() model.Step {
	return c.state.CurrentStep
}

// CanEnter 检查能否进入目标步骤
func (c *StepController) CanEnter(step model.Step) error {
	if !step.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownStep, int(step))
	}
	cur := c.state.CurrentStep
	if step <= cur {
		return nil
	}
	if step > cur+1 {
		return fmt.Errorf("%w: %s -> %s", ErrStepSkipped, cur, step)
	}

	switch step {
	case model.StepParams:
		if !c.state.Uploaded {
			return fmt.Errorf("%w: files not uploaded", ErrStepLocked)
		}
	case model.StepOptimize:
		if !c.state.Ready() {
			return fmt.Errorf("%w: %w", ErrStepLocked, ErrIncompleteSubmission)
		}
	case model.StepResults:
		if c.state.OptimizationResult == nil {
			return fmt.Errorf("%w: no optimization result", ErrStepLocked)
		}
	}
	return nil
}

// GoToStep 切换步骤
func (c *StepController) GoToStep(step model.Step) error {
	if err := c.CanEnter(step); err != nil {
		return err
	}
	c.state.CurrentStep = step
	if c.OnEnter != nil {
		c.OnEnter(step)
	}
	return nil
}

// Indicators 每次按当前步骤重新计算，不缓存
func (c *StepController) Indicators() []Indicator {
	return Classify(c.state.CurrentStep)
}

// Classify 小于当前为 completed，等于当前为 active，其余无样式
func Classify(current model.Step) []Indicator {
	out := make([]Indicator, 0, len(model.Steps))
	for _, s := range model.Steps {
		ind := Indicator{Step: s, Title: s.Title(), State: IndicatorPending}
		switch {
		case s < current:
			ind.State = IndicatorCompleted
		case s == current:
			ind.State = IndicatorActive
		}
		out = append(out, ind)
	}
	return out
}
