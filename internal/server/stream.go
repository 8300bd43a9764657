package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kai657/po-adjustment/internal/exporter"
	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/progress"
	"github.com/kai657/po-adjustment/internal/results"
	"github.com/kai657/po-adjustment/internal/wizard"
)

// exportDownloadTTL 导出文件下载链接有效期
const exportDownloadTTL = 10 * time.Minute

type streamEvent struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// eventStream 设置 SSE 响应头，返回发送函数
func eventStream(c *gin.Context) (func(typ, message string, data any), bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fail(c, http.StatusInternalServerError, "不支持流式响应")
		return nil, false
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	return func(typ, message string, data any) {
		if data == nil {
			data = map[string]any{}
		}
		b, err := json.Marshal(streamEvent{Type: typ, Message: message, Data: data, Timestamp: time.Now()})
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", b)
		flusher.Flush()
	}, true
}

// optimizeStream 执行优化并以 SSE 推送模拟进度；
// 浏览器断开时优化继续，结果留在会话中
// POST /api/optimize/stream
func (s *Server) optimizeStream(c *gin.Context) {
	// 不在步骤 3 或已有请求在途时直接返回普通错误响应
	if s.session.CurrentStep() != model.StepOptimize || s.session.Controls().Optimizing {
		view, err := s.session.Optimize(remoteContext(c))
		if err != nil {
			failWith(c, err, "请先完成当前步骤")
			return
		}
		succeed(c, view)
		return
	}

	send, ok := eventStream(c)
	if !ok {
		return
	}

	updates, cancel := s.session.WatchProgress()
	defer cancel()

	type outcome struct {
		view *results.View
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		view, err := s.session.Optimize(remoteContext(c))
		done <- outcome{view, err}
	}()

	send("start", "正在优化...", nil)
	clientGone := c.Request.Context().Done()
	for {
		select {
		case snap := <-updates:
			send("progress", snap.Phase, progressData(snap))
		case res := <-done:
			// 把完成前最后的进度推送出去
			for drained := false; !drained; {
				select {
				case snap := <-updates:
					send("progress", snap.Phase, progressData(snap))
				default:
					drained = true
				}
			}
			if res.err != nil {
				send("error", wizard.UserMessage(res.err, "优化失败"), map[string]any{
					"kind":    wizard.Kind(res.err),
					"session": s.session.Snapshot(),
				})
				return
			}
			send("done", "✅ 优化完成！", map[string]any{
				"percent": 100,
				"view":    res.view,
				"session": s.session.Snapshot(),
			})
			return
		case <-clientGone:
			s.logger.Info("optimize stream client disconnected")
			return
		}
	}
}

func progressData(snap progress.Snapshot) map[string]any {
	return map[string]any{
		"percent": snap.Percent,
		"display": snap.Display,
		"phase":   snap.PhaseIndex,
		"done":    snap.Done,
	}
}

// exportGapStream 把当前结果页的差异表导出为 xlsx（SSE 进度 + 完成后提供下载地址）
// POST /api/export/gap/stream
func (s *Server) exportGapStream(c *gin.Context) {
	view, _ := s.session.Result()
	if view == nil || view.Gap == nil {
		fail(c, http.StatusNotFound, "差异分析文件不存在")
		return
	}

	send, ok := eventStream(c)
	if !ok {
		return
	}

	send("start", "开始导出", map[string]any{"skuCount": len(view.Gap.Rows)})

	lastPercent := -1
	file, err := exporter.ExportGap(*view, exporter.Options{
		Progress: func(p exporter.ProgressEvent) {
			if p.Percent == lastPercent {
				return
			}
			lastPercent = p.Percent
			send("progress", p.Stage, map[string]any{"percent": p.Percent})
		},
	})
	if err != nil {
		send("error", "导出失败: "+err.Error(), nil)
		return
	}
	defer file.Close()

	dir := s.opts.ExportDir
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("gap_%s.xlsx", uuid.NewString()))
	if err := file.SaveAs(path); err != nil {
		send("error", "写入导出文件失败: "+err.Error(), nil)
		_ = os.Remove(path)
		return
	}

	_, payload := s.session.Result()
	name := "差异分析.xlsx"
	if payload != nil && payload.Timestamp != "" {
		name = fmt.Sprintf("差异分析_%s.xlsx", payload.Timestamp)
	}
	token := s.downloads.put(path, name, exportDownloadTTL)
	send("done", "导出完成", map[string]any{
		"percent":     100,
		"downloadUrl": "/api/export/download/" + token,
	})
}

// downloadExport 下载导出的 Excel 文件（一次性）
// GET /api/export/download/:token
func (s *Server) downloadExport(c *gin.Context) {
	token := c.Param("token")
	if token == "" {
		fail(c, http.StatusBadRequest, "缺少 token")
		return
	}

	item, ok := s.downloads.get(token)
	if !ok {
		fail(c, http.StatusNotFound, "下载链接已失效")
		return
	}

	if _, err := os.Stat(item.filePath); err != nil {
		s.downloads.delete(token)
		fail(c, http.StatusNotFound, "导出文件不存在")
		return
	}

	c.Header("Content-Disposition", contentDisposition(item.filename))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.File(item.filePath)

	s.downloads.delete(token)
	_ = os.Remove(item.filePath)
}
