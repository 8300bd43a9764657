package model

import (
	"errors"
	"fmt"
	"strconv"
)

// OptimizeParams 优化参数（提交时从界面控件读取）
type OptimizeParams struct {
	PriorityWeeks  int     `json:"priority_weeks" toml:"priority_weeks"`   // 优先周数
	PriorityWeight float64 `json:"priority_weight" toml:"priority_weight"` // 优先权重
	DateWeight     float64 `json:"date_weight" toml:"date_weight"`         // 日期权重
	MaxWorkers     int     `json:"max_workers" toml:"max_workers"`         // 并行进程数
}

// Validate 校验参数范围
func (p OptimizeParams) Validate() error {
	var errs []error
	if p.PriorityWeeks < 0 {
		errs = append(errs, fmt.Errorf("priority_weeks must be >= 0, got %d", p.PriorityWeeks))
	}
	if p.MaxWorkers < 1 {
		errs = append(errs, fmt.Errorf("max_workers must be >= 1, got %d", p.MaxWorkers))
	}
	return errors.Join(errs...)
}

// ParamSummary 参数摘要（步骤 3 只读展示）
type ParamSummary struct {
	PriorityWeeks  string `json:"priorityWeeks"`
	PriorityWeight string `json:"priorityWeight"`
	DateWeight     string `json:"dateWeight"`
	MaxWorkers     string `json:"maxWorkers"`
}

// Summary 生成参数摘要
func (p OptimizeParams) Summary() ParamSummary {
	return ParamSummary{
		PriorityWeeks:  strconv.Itoa(p.PriorityWeeks),
		PriorityWeight: strconv.FormatFloat(p.PriorityWeight, 'f', -1, 64),
		DateWeight:     strconv.FormatFloat(p.DateWeight, 'f', -1, 64),
		MaxWorkers:     strconv.Itoa(p.MaxWorkers),
	}
}
