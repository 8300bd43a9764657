package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kai657/po-adjustment/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "data", "powizard.db"))
	if err != nil {
		t.Fatalf("init store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestRecordAndListRuns(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	runs := []model.RunRecord{
		{
			ID: "run-1", SessionID: "s1", StartedAt: base, FinishedAt: base.Add(3 * time.Second),
			Params:       model.OptimizeParams{PriorityWeeks: 8, PriorityWeight: 10, MaxWorkers: 4},
			ScheduleFile: "schedule.xlsx", POFile: "po.xlsx",
			Outcome: model.RunFailed, ErrorKind: "ServerRejection", ErrorMessage: "insufficient data",
		},
		{
			ID: "run-2", SessionID: "s1", StartedAt: base.Add(time.Minute), FinishedAt: base.Add(time.Minute + 5*time.Second),
			Params:  model.OptimizeParams{PriorityWeeks: 4, PriorityWeight: 2.5, DateWeight: 0.5, MaxWorkers: 2},
			Outcome: model.RunSucceeded, SKUCount: 2, OriginalTotal: 200, OptimizedTotal: 50, Rate: 75,
			HasGapAnalysis: true,
		},
	}
	for _, r := range runs {
		if err := st.RecordRun(ctx, r); err != nil {
			t.Fatalf("record %s: %v", r.ID, err)
		}
	}

	got, err := st.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("runs = %d, want 2", len(got))
	}
	if got[0].ID != "run-2" || got[1].ID != "run-1" {
		t.Fatalf("order = %s,%s, want newest first", got[0].ID, got[1].ID)
	}
	if got[0].Params != runs[1].Params {
		t.Errorf("params = %+v, want %+v", got[0].Params, runs[1].Params)
	}
	if !got[0].HasGapAnalysis || got[0].Rate != 75 {
		t.Errorf("run-2 = %+v", got[0])
	}
	if got[1].ErrorMessage != "insufficient data" || got[1].Outcome != model.RunFailed {
		t.Errorf("run-1 = %+v", got[1])
	}
	if d := got[1].Duration(); d != 3*time.Second {
		t.Errorf("duration = %s, want 3s", d)
	}

	limited, err := st.ListRuns(ctx, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("limited runs = %d, want 1", len(limited))
	}
}

func TestRecordRun_DuplicateID(t *testing.T) {
	st := newTestStore(t)
	rec := model.RunRecord{ID: "dup", SessionID: "s", StartedAt: time.Now(), FinishedAt: time.Now(), Outcome: model.RunSucceeded}
	if err := st.RecordRun(context.Background(), rec); err != nil {
		t.Fatalf("first record: %v", err)
	}
	if err := st.RecordRun(context.Background(), rec); err == nil {
		t.Fatalf("duplicate id should fail")
	}
}
