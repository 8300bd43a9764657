package wizard

import (
	"fmt"
	"strings"

	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/workbook"
)

// Source 文件来源
type Source string

const (
	SourcePicker Source = "picker" // 文件选择框，浏览器已按类型过滤
	SourceDrop   Source = "drop"   // 拖拽，需要校验扩展名
)

// ParseSource 解析来源，未知值按拖拽处理（需要校验）
func ParseSource(s string) Source {
	if Source(s) == SourcePicker {
		return SourcePicker
	}
	return SourceDrop
}

// AcceptedExtensions 区分大小写
var AcceptedExtensions = []string{".xlsx", ".xls"}

// HasSpreadsheetExt 文件名是否以 .xlsx/.xls 结尾
func HasSpreadsheetExt(name string) bool {
	for _, ext := range AcceptedExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// IntakeOptions 文件校验选项
type IntakeOptions struct {
	// ValidatePicker 文件选择框来源也校验扩展名
	ValidatePicker bool `toml:"validate_picker"`
	// ProbeWorkbook 校验时额外用 excelize 打开 .xlsx
	ProbeWorkbook bool `toml:"probe_workbook"`
}

// Selection 一次文件选择事件
type Selection struct {
	Role   model.Role
	Source Source
	File   *model.FileHandle
}

// IntakeValidator 校验并记录两个输入文件
type IntakeValidator struct {
	state *model.WizardState
	opts  IntakeOptions
}

// NewIntakeValidator 创建校验器
func NewIntakeValidator(state *model.WizardState, opts IntakeOptions) *IntakeValidator {
	return &IntakeValidator{state: state, opts: opts}
}

// Select 校验通过后按角色覆盖文件；校验失败不修改状态
func (v *IntakeValidator) Select(sel Selection) error {
	if sel.File == nil {
		return fmt.Errorf("%w: no file", ErrInvalidFileType)
	}
	if _, ok := model.ParseRole(string(sel.Role)); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRole, sel.Role)
	}
	if err := v.validate(sel); err != nil {
		return err
	}

	switch sel.Role {
	case model.RoleSchedule:
		v.state.ScheduleFile = sel.File
	case model.RolePO:
		v.state.POFile = sel.File
	}
	return nil
}

func (v *IntakeValidator) validate(sel Selection) error {
	if sel.Source == SourcePicker && !v.opts.ValidatePicker {
		return nil
	}
	if !HasSpreadsheetExt(sel.File.Name) {
		return fmt.Errorf("%w: %s", ErrInvalidFileType, sel.File.Name)
	}
	if v.opts.ProbeWorkbook && strings.HasSuffix(sel.File.Name, ".xlsx") {
		if _, err := workbook.ProbeFile(sel.File); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFileType, err)
		}
	}
	return nil
}

// Ready 两个角色都已有文件
func (v *IntakeValidator) Ready() bool {
	return v.state.Ready()
}

// CheckSubmission 上传前检查，缺少任一文件时不发起请求
func (v *IntakeValidator) CheckSubmission() error {
	var missing []string
	if v.state.ScheduleFile == nil {
		missing = append(missing, model.RoleSchedule.Label())
	}
	if v.state.POFile == nil {
		missing = append(missing, model.RolePO.Label())
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrIncompleteSubmission, strings.Join(missing, ", "))
	}
	return nil
}
