package model

import "fmt"

// Step 向导步骤（1..4）
type Step int

const (
	StepUpload   Step = 1 // 上传文件
	StepParams   Step = 2 // 配置参数
	StepOptimize Step = 3 // 执行优化
	StepResults  Step = 4 // 查看结果
)

// Steps 全部步骤，按顺序
var Steps = []Step{StepUpload, StepParams, StepOptimize, StepResults}

// Valid 是否为合法步骤
func (s Step) Valid() bool {
	return s >= StepUpload && s <= StepResults
}

func (s Step) String() string {
	switch s {
	case StepUpload:
		return "upload"
	case StepParams:
		return "params"
	case StepOptimize:
		return "optimize"
	case StepResults:
		return "results"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// Title 步骤标题（界面显示）
func (s Step) Title() string {
	switch s {
	case StepUpload:
		return "上传文件"
	case StepParams:
		return "配置参数"
	case StepOptimize:
		return "执行优化"
	case StepResults:
		return "查看结果"
	}
	return ""
}

// Role 输入文件角色
type Role string

const (
	RoleSchedule Role = "schedule" // 排程目标
	RolePO       Role = "po"       // PO 清单
)

// ParseRole 解析文件角色
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSchedule, RolePO:
		return Role(s), true
	}
	return "", false
}

// Label 角色显示名
func (r Role) Label() string {
	switch r {
	case RoleSchedule:
		return "排程目标"
	case RolePO:
		return "PO清单"
	}
	return string(r)
}

// WizardState 向导会话状态（单实例，由 Session 独占）
type WizardState struct {
	ScheduleFile       *FileHandle
	POFile             *FileHandle
	CurrentStep        Step
	OptimizationResult *ResultPayload

	// Uploaded 自最近一次选择文件以来是否已成功上传
	Uploaded bool
}

// NewWizardState 创建初始状态（步骤 1）
func NewWizardState() *WizardState {
	return &WizardState{CurrentStep: StepUpload}
}

// File 按角色获取文件
func (s *WizardState) File(role Role) *FileHandle {
	switch role {
	case RoleSchedule:
		return s.ScheduleFile
	case RolePO:
		return s.POFile
	}
	return nil
}

// Ready 两个文件都已选择
func (s *WizardState) Ready() bool {
	return s.ScheduleFile != nil && s.POFile != nil
}
