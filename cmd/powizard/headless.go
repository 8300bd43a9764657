package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/kai657/po-adjustment/internal/exporter"
	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/results"
	"github.com/kai657/po-adjustment/internal/wizard"
)

const progressWidth = 42

// runHeadless 终端模式：与浏览器走同一个向导会话，
// 文件按拖拽来源处理（需要校验扩展名）
func runHeadless(backend wizard.Backend, opts wizard.Options) int {
	if *schedule == "" || *poFile == "" {
		fmt.Fprintln(os.Stderr, "终端模式需要 -schedule 和 -po 两个文件")
		return 2
	}

	// 终端里不需要停顿展示
	opts.UploadAdvanceDelay = 0
	session := wizard.NewSession(backend, opts)
	defer session.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, f := range []struct {
		role model.Role
		path string
	}{
		{model.RoleSchedule, *schedule},
		{model.RolePO, *poFile},
	} {
		fh, err := model.FileFromPath(f.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ %s: %v\n", f.role.Label(), err)
			return 1
		}
		if err := session.SelectFile(wizard.Selection{Role: f.role, Source: wizard.SourceDrop, File: fh}); err != nil {
			return failed(session)
		}
		fmt.Printf("%s: %s\n", f.role.Label(), fh.Name)
	}

	fmt.Println("正在上传文件...")
	data, err := session.Upload(ctx)
	if err != nil {
		return failed(session)
	}
	printUpload(data)
	notice(session)

	if err := session.GoToStep(model.StepOptimize); err != nil {
		return failed(session)
	}
	sum := session.Snapshot().ParamSummary
	fmt.Printf("优先周数: %s  优先权重: %s  日期权重: %s  并行进程数: %s\n",
		sum.PriorityWeeks, sum.PriorityWeight, sum.DateWeight, sum.MaxWorkers)

	view, err := optimizeWithBar(ctx, session)
	if err != nil {
		return failed(session)
	}
	notice(session)

	if err := results.RenderText(os.Stdout, *view); err != nil {
		fmt.Fprintf(os.Stderr, "输出结果失败: %v\n", err)
		return 1
	}

	if *export != "" {
		if err := exportGap(*view, *export); err != nil {
			fmt.Fprintf(os.Stderr, "❌ 导出失败: %v\n", err)
			return 1
		}
		fmt.Printf("差异表已导出: %s\n", *export)
	}
	return 0
}

// optimizeWithBar 优化期间在同一行刷新进度条
func optimizeWithBar(ctx context.Context, session *wizard.Session) (*results.View, error) {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(progressWidth))
	updates, cancel := session.WatchProgress()
	defer cancel()

	type outcome struct {
		view *results.View
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		view, err := session.Optimize(ctx)
		done <- outcome{view, err}
	}()

	draw := func(percent float64, phase string) {
		fmt.Printf("\r%s %3.0f%% %s", bar.ViewAs(percent/100), percent, phase)
	}
	draw(0, "")
	for {
		select {
		case snap := <-updates:
			draw(snap.Percent, snap.Phase)
		case res := <-done:
			if res.err == nil {
				draw(100, "")
			}
			fmt.Println()
			return res.view, res.err
		}
	}
}

func exportGap(view results.View, path string) error {
	f, err := exporter.ExportGap(view, exporter.Options{})
	if err != nil {
		return err
	}
	defer f.Close()
	return f.SaveAs(path)
}

func printUpload(data *model.UploadData) {
	if data == nil {
		return
	}
	for _, p := range []struct {
		label   string
		preview *model.DatasetPreview
	}{
		{model.RoleSchedule.Label(), data.ScheduleAim},
		{model.RolePO.Label(), data.POLists},
	} {
		if p.preview == nil {
			continue
		}
		fmt.Printf("  %s: %d 行, %d 个SKU\n", p.label, p.preview.Rows, len(p.preview.SKUs))
	}
}

// notice 输出当前提示
func notice(session *wizard.Session) {
	if n, ok := session.Notifier().Current(); ok {
		fmt.Println(n.Message)
	}
}

// failed 输出失败提示并返回退出码
func failed(session *wizard.Session) int {
	if n, ok := session.Notifier().Current(); ok {
		fmt.Fprintln(os.Stderr, n.Message)
	}
	return 1
}
