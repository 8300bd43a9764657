package model

import "time"

// 优化结果
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

// RunRecord 一次优化请求的记录（只做历史查看，不用于恢复会话）
type RunRecord struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId"`
	StartedAt      time.Time      `json:"startedAt"`
	FinishedAt     time.Time      `json:"finishedAt"`
	Params         OptimizeParams `json:"params"`
	ScheduleFile   string         `json:"scheduleFile"`
	POFile         string         `json:"poFile"`
	Outcome        string         `json:"outcome"`
	ErrorKind      string         `json:"errorKind,omitempty"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	SKUCount       int            `json:"skuCount"`
	OriginalTotal  float64        `json:"originalTotal"`
	OptimizedTotal float64        `json:"optimizedTotal"`
	Rate           float64        `json:"improvementRate"`
	HasGapAnalysis bool           `json:"hasGapAnalysis"`
}

// Duration 请求耗时
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
