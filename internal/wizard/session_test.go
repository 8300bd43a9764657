package wizard_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/optimizer"
	"github.com/kai657/po-adjustment/internal/optimizer/optimizertest"
	"github.com/kai657/po-adjustment/internal/progress"
	"github.com/kai657/po-adjustment/internal/results"
	"github.com/kai657/po-adjustment/internal/wizard"
)

type memJournal struct {
	mu   sync.Mutex
	runs []model.RunRecord
}

func (j *memJournal) RecordRun(_ context.Context, rec model.RunRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs = append(j.runs, rec)
	return nil
}

func (j *memJournal) all() []model.RunRecord {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]model.RunRecord(nil), j.runs...)
}

func testOptions(j wizard.Journal) wizard.Options {
	pcfg := progress.DefaultConfig()
	pcfg.Interval = time.Millisecond
	pcfg.CompletionDelay = 0
	return wizard.Options{
		Features:       results.Features{EnableGapAnalysis: true, EnableDeviationChart: true},
		Params:         model.OptimizeParams{PriorityWeeks: 8, PriorityWeight: 10, MaxWorkers: 4},
		Progress:       pcfg,
		NotifyDuration: time.Minute,
		Journal:        j,
	}
}

func newSession(t *testing.T) (*wizard.Session, *optimizertest.Fake, *memJournal) {
	t.Helper()
	fake := optimizertest.New(t)
	j := &memJournal{}
	s := wizard.NewSession(optimizer.New(fake.URL(), 5*time.Second, nil), testOptions(j))
	t.Cleanup(s.Close)
	return s, fake, j
}

func xlsx(name string) *model.FileHandle {
	return model.FileFromBytes(name, model.MimeXLSX, []byte("content of "+name))
}

func selectBoth(t *testing.T, s *wizard.Session) {
	t.Helper()
	for _, sel := range []wizard.Selection{
		{Role: model.RoleSchedule, Source: wizard.SourcePicker, File: xlsx("schedule.xlsx")},
		{Role: model.RolePO, Source: wizard.SourceDrop, File: xlsx("po.xlsx")},
	} {
		if err := s.SelectFile(sel); err != nil {
			t.Fatalf("select %s: %v", sel.Role, err)
		}
	}
}

func notification(t *testing.T, s *wizard.Session) string {
	t.Helper()
	n, ok := s.Notifier().Current()
	if !ok {
		t.Fatalf("no notification shown")
	}
	return n.Message
}

// walkToOptimize 选择文件、上传并进入步骤 3
func walkToOptimize(t *testing.T, s *wizard.Session) {
	t.Helper()
	selectBoth(t, s)
	if _, err := s.Upload(context.Background()); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := s.GoToStep(model.StepOptimize); err != nil {
		t.Fatalf("go to 3: %v", err)
	}
}

func TestSession_DroppedWrongTypeLeavesStateUntouched(t *testing.T) {
	s, _, _ := newSession(t)

	err := s.SelectFile(wizard.Selection{
		Role: model.RoleSchedule, Source: wizard.SourceDrop,
		File: model.FileFromBytes("notes.txt", "text/plain", []byte("x")),
	})
	if wizard.Kind(err) != wizard.KindInvalidFileType {
		t.Fatalf("kind = %s, want InvalidFileType", wizard.Kind(err))
	}

	snap := s.Snapshot()
	if len(snap.Files) != 0 || snap.Ready {
		t.Fatalf("state mutated: %+v", snap.Files)
	}
	if snap.Controls.UploadEnabled {
		t.Fatalf("upload control should stay disabled")
	}
	if msg := notification(t, s); msg != "请上传 Excel 文件 (.xlsx 或 .xls)" {
		t.Fatalf("notification = %q", msg)
	}
}

func TestSession_UploadWithOneFileSkipsNetwork(t *testing.T) {
	s, fake, _ := newSession(t)

	if err := s.SelectFile(wizard.Selection{Role: model.RolePO, Source: wizard.SourcePicker, File: xlsx("po.xlsx")}); err != nil {
		t.Fatalf("select: %v", err)
	}
	_, err := s.Upload(context.Background())
	if !errors.Is(err, wizard.ErrIncompleteSubmission) {
		t.Fatalf("err = %v, want ErrIncompleteSubmission", err)
	}
	if len(fake.Uploads()) != 0 {
		t.Fatalf("network call attempted with one file")
	}
	if msg := notification(t, s); msg != "请选择两个文件" {
		t.Fatalf("notification = %q", msg)
	}
}

func TestSession_UploadAdvancesToParams(t *testing.T) {
	s, fake, _ := newSession(t)
	selectBoth(t, s)

	if !s.Controls().UploadEnabled {
		t.Fatalf("upload should be enabled with both files")
	}
	data, err := s.Upload(context.Background())
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if data.ScheduleAim == nil || data.ScheduleAim.Rows != 2 {
		t.Fatalf("preview = %+v", data.ScheduleAim)
	}
	if len(fake.Uploads()) != 1 {
		t.Fatalf("uploads = %d", len(fake.Uploads()))
	}

	snap := s.Snapshot()
	if snap.CurrentStep != model.StepParams || !snap.Uploaded || snap.Upload == nil {
		t.Fatalf("after upload: step=%s uploaded=%v", snap.CurrentStep, snap.Uploaded)
	}
	if snap.Indicators[0].State != wizard.IndicatorCompleted || snap.Indicators[1].State != wizard.IndicatorActive {
		t.Fatalf("indicators = %+v", snap.Indicators)
	}
	if msg := notification(t, s); msg != "✅ 文件上传成功！已自动转换交叉表格式" {
		t.Fatalf("notification = %q", msg)
	}
}

func TestSession_UploadRejectedRestoresControl(t *testing.T) {
	s, fake, _ := newSession(t)
	fake.SetUpload(http.StatusBadRequest, gin.H{"success": false, "error": "只支持.xlsx和.xls文件"})
	selectBoth(t, s)

	_, err := s.Upload(context.Background())
	if wizard.Kind(err) != wizard.KindServerRejection {
		t.Fatalf("kind = %s", wizard.Kind(err))
	}
	snap := s.Snapshot()
	if snap.CurrentStep != model.StepUpload || snap.Uploaded {
		t.Fatalf("failed upload changed state: step=%s uploaded=%v", snap.CurrentStep, snap.Uploaded)
	}
	if !snap.Controls.UploadEnabled {
		t.Fatalf("upload control not restored")
	}
	if msg := notification(t, s); msg != "只支持.xlsx和.xls文件" {
		t.Fatalf("notification = %q", msg)
	}
}

func TestSession_OptimizeSuccess(t *testing.T) {
	s, fake, j := newSession(t)
	walkToOptimize(t, s)

	if err := s.SetParams(model.OptimizeParams{PriorityWeeks: 6, PriorityWeight: 3, DateWeight: 1, MaxWorkers: 2}); err != nil {
		t.Fatalf("set params: %v", err)
	}
	if sum := s.Snapshot().ParamSummary; sum.PriorityWeeks != "6" || sum.MaxWorkers != "2" {
		t.Fatalf("param summary = %+v", sum)
	}

	updates, cancel := s.WatchProgress()
	defer cancel()
	lastCh := make(chan progress.Snapshot, 1)
	go func() {
		var last progress.Snapshot
		timeout := time.After(5 * time.Second)
		for !last.Done {
			select {
			case last = <-updates:
			case <-timeout:
				lastCh <- last
				return
			}
		}
		lastCh <- last
	}()

	view, err := s.Optimize(context.Background())
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if view.Summary.ImprovementRate != 75 || view.Gap == nil {
		t.Fatalf("view = %+v", view.Summary)
	}
	if got := fake.Params(); len(got) != 1 || got[0].PriorityWeeks != 6 {
		t.Fatalf("params sent = %+v", got)
	}

	snap := s.Snapshot()
	if snap.CurrentStep != model.StepResults || !snap.HasResult {
		t.Fatalf("step = %s, hasResult = %v", snap.CurrentStep, snap.HasResult)
	}
	if snap.Progress.Percent != 100 || !snap.Progress.Done {
		t.Fatalf("progress = %+v", snap.Progress)
	}
	if snap.Controls.ProgressVisible || snap.Controls.Optimizing {
		t.Fatalf("controls = %+v", snap.Controls)
	}

	// 最后一次推送必须是 100%
	if last := <-lastCh; !last.Done || last.Percent != 100 {
		t.Fatalf("last progress update = %+v", last)
	}

	runs := j.all()
	if len(runs) != 1 || runs[0].Outcome != model.RunSucceeded || runs[0].Rate != 75 || !runs[0].HasGapAnalysis {
		t.Fatalf("journal = %+v", runs)
	}
}

func TestSession_OptimizeRejected(t *testing.T) {
	s, fake, j := newSession(t)
	fake.SetOptimize(http.StatusOK, gin.H{"success": false, "error": "insufficient data"})
	walkToOptimize(t, s)

	_, err := s.Optimize(context.Background())
	if wizard.Kind(err) != wizard.KindServerRejection {
		t.Fatalf("kind = %s", wizard.Kind(err))
	}

	snap := s.Snapshot()
	if snap.CurrentStep != model.StepOptimize {
		t.Fatalf("step = %s, want optimize", snap.CurrentStep)
	}
	if snap.Controls.ProgressVisible || !snap.Controls.OptimizeEnabled {
		t.Fatalf("controls = %+v", snap.Controls)
	}
	if snap.HasResult || snap.Progress.Done || snap.Progress.Percent > 90 {
		t.Fatalf("partial result leaked: %+v", snap)
	}
	if msg := notification(t, s); msg != "insufficient data" {
		t.Fatalf("notification = %q", msg)
	}

	runs := j.all()
	if len(runs) != 1 || runs[0].Outcome != model.RunFailed || runs[0].ErrorKind != string(wizard.KindServerRejection) {
		t.Fatalf("journal = %+v", runs)
	}
}

func TestSession_OptimizeWithoutGapAnalysis(t *testing.T) {
	s, fake, _ := newSession(t)
	resp := optimizertest.SampleOptimizeResponse()
	data := resp["data"].(gin.H)
	delete(data, "gap_analysis")
	delete(data["files"].(gin.H), "gap_analysis")
	fake.SetOptimize(http.StatusOK, resp)
	walkToOptimize(t, s)

	view, err := s.Optimize(context.Background())
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if view.Gap != nil || view.GapDownload != nil {
		t.Fatalf("gap table rendered without data")
	}
	if view.Summary.SKUCount != 2 || len(view.Downloads) == 0 {
		t.Fatalf("summary/artifacts missing: %+v", view)
	}
}

func TestSession_SecondOptimizeWhileInFlightIsBusy(t *testing.T) {
	s, fake, _ := newSession(t)
	walkToOptimize(t, s)
	release := fake.HoldOptimize()

	done := make(chan error, 1)
	go func() {
		_, err := s.Optimize(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Controls().Optimizing && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c := s.Controls(); !c.Optimizing || c.OptimizeEnabled || !c.ProgressVisible {
		t.Fatalf("controls during optimize = %+v", c)
	}

	if _, err := s.Optimize(context.Background()); !errors.Is(err, wizard.ErrBusy) {
		t.Fatalf("second optimize err = %v, want ErrBusy", err)
	}

	// 请求期间进度不超过上限
	time.Sleep(20 * time.Millisecond)
	if p := s.Snapshot().Progress; p.Percent > 90 || p.Done {
		t.Fatalf("progress while in flight = %+v", p)
	}

	release()
	if err := <-done; err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if len(fake.Params()) != 1 {
		t.Fatalf("optimize requests = %d, want 1", len(fake.Params()))
	}
}

func TestSession_OptimizeOnlyOnStepThree(t *testing.T) {
	s, fake, _ := newSession(t)

	if _, err := s.Optimize(context.Background()); !errors.Is(err, wizard.ErrStepLocked) {
		t.Fatalf("err = %v, want ErrStepLocked", err)
	}
	if len(fake.Params()) != 0 {
		t.Fatalf("optimize request sent from step 1")
	}
}

func TestSession_InvalidParams(t *testing.T) {
	s, _, _ := newSession(t)

	err := s.SetParams(model.OptimizeParams{PriorityWeeks: -1, MaxWorkers: 0})
	if !errors.Is(err, wizard.ErrInvalidParams) {
		t.Fatalf("err = %v", err)
	}
	if s.Params().MaxWorkers != 4 {
		t.Fatalf("invalid params were applied: %+v", s.Params())
	}
}

func TestSession_ReselectAfterUploadRequiresReupload(t *testing.T) {
	s, _, _ := newSession(t)
	walkToOptimize(t, s)
	if _, err := s.Optimize(context.Background()); err != nil {
		t.Fatalf("optimize: %v", err)
	}

	if err := s.GoToStep(model.StepUpload); err != nil {
		t.Fatalf("back to 1: %v", err)
	}
	if err := s.SelectFile(wizard.Selection{Role: model.RolePO, Source: wizard.SourcePicker, File: xlsx("po-v2.xlsx")}); err != nil {
		t.Fatalf("reselect: %v", err)
	}

	snap := s.Snapshot()
	if snap.Uploaded || !snap.HasResult {
		t.Fatalf("uploaded=%v hasResult=%v", snap.Uploaded, snap.HasResult)
	}
	if err := s.GoToStep(model.StepParams); !errors.Is(err, wizard.ErrStepLocked) {
		t.Fatalf("step 2 without re-upload err = %v", err)
	}
}

func TestSession_NetworkFailure(t *testing.T) {
	s, fake, _ := newSession(t)
	walkToOptimize(t, s)
	fake.Server.Close()

	_, err := s.Optimize(context.Background())
	if wizard.Kind(err) != wizard.KindNetworkFailure {
		t.Fatalf("kind = %s (%v)", wizard.Kind(err), err)
	}
	if s.CurrentStep() != model.StepOptimize || !s.Controls().OptimizeEnabled {
		t.Fatalf("control not restored after network failure")
	}
}
