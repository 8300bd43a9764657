package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kai657/po-adjustment/internal/model"
)

// DefaultRunLimit 列表默认条数
const DefaultRunLimit = 20

// 固定宽度，保证按字符串排序即按时间排序
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// RecordRun 追加一条优化记录
func (s *Store) RecordRun(ctx context.Context, rec model.RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO optimize_runs (
			id, session_id, started_at, finished_at,
			priority_weeks, priority_weight, date_weight, max_workers,
			schedule_file, po_file, outcome, error_kind, error_message,
			sku_count, original_total, optimized_total, improvement_rate, has_gap_analysis
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.SessionID, formatTime(rec.StartedAt), formatTime(rec.FinishedAt),
		rec.Params.PriorityWeeks, rec.Params.PriorityWeight, rec.Params.DateWeight, rec.Params.MaxWorkers,
		rec.ScheduleFile, rec.POFile, rec.Outcome, rec.ErrorKind, rec.ErrorMessage,
		rec.SKUCount, rec.OriginalTotal, rec.OptimizedTotal, rec.Rate, boolToInt(rec.HasGapAnalysis),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns 最近的优化记录，按开始时间倒序
func (s *Store) ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, started_at, finished_at,
			priority_weeks, priority_weight, date_weight, max_workers,
			schedule_file, po_file, outcome, error_kind, error_message,
			sku_count, original_total, optimized_total, improvement_rate, has_gap_analysis
		FROM optimize_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []model.RunRecord
	for rows.Next() {
		var rec model.RunRecord
		var started, finished string
		var hasGap int
		if err := rows.Scan(
			&rec.ID, &rec.SessionID, &started, &finished,
			&rec.Params.PriorityWeeks, &rec.Params.PriorityWeight, &rec.Params.DateWeight, &rec.Params.MaxWorkers,
			&rec.ScheduleFile, &rec.POFile, &rec.Outcome, &rec.ErrorKind, &rec.ErrorMessage,
			&rec.SKUCount, &rec.OriginalTotal, &rec.OptimizedTotal, &rec.Rate, &hasGap,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt = parseTime(started)
		rec.FinishedAt = parseTime(finished)
		rec.HasGapAnalysis = hasGap != 0
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
