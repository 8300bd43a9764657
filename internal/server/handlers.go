package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/results"
	"github.com/kai657/po-adjustment/internal/store"
	"github.com/kai657/po-adjustment/internal/wizard"
)

// succeed 成功响应，与远端服务相同的 {success, data} 信封
func succeed(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// failWith 按错误类别选择状态码，提示文案与向导通知一致
func failWith(c *gin.Context, err error, fallback string) {
	c.JSON(statusFor(err), gin.H{
		"success": false,
		"error":   wizard.UserMessage(err, fallback),
		"kind":    wizard.Kind(err),
	})
}

func statusFor(err error) int {
	if errors.Is(err, wizard.ErrBusy) {
		return http.StatusConflict
	}
	switch wizard.Kind(err) {
	case wizard.KindInvalidFileType:
		return http.StatusUnsupportedMediaType
	case wizard.KindIncompleteSubmission, wizard.KindInvalidRequest:
		return http.StatusBadRequest
	case wizard.KindServerRejection:
		return http.StatusUnprocessableEntity
	case wizard.KindNetworkFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// remoteContext 远端请求不随浏览器连接断开而取消
func remoteContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// StatusResponse 系统状态响应
type StatusResponse struct {
	SessionID   string     `json:"sessionId"`
	CurrentStep model.Step `json:"currentStep"`
	StepTitle   string     `json:"stepTitle"`
	Ready       bool       `json:"ready"`    // 两个文件都已选择
	Uploaded    bool       `json:"uploaded"` // 最近一次选择后已上传
	HasResult   bool       `json:"hasResult"`
	RemoteURL   string     `json:"remoteUrl"`
}

// getStatus 获取系统状态
// GET /api/status
func (s *Server) getStatus(c *gin.Context) {
	snap := s.session.Snapshot()
	succeed(c, StatusResponse{
		SessionID:   snap.SessionID,
		CurrentStep: snap.CurrentStep,
		StepTitle:   snap.CurrentStep.Title(),
		Ready:       snap.Ready,
		Uploaded:    snap.Uploaded,
		HasResult:   snap.HasResult,
		RemoteURL:   s.opts.RemoteURL,
	})
}

// getSession 会话快照
// GET /api/session
func (s *Server) getSession(c *gin.Context) {
	succeed(c, s.session.Snapshot())
}

// selectFile 选择文件（file 字段；source=picker|drop）
// POST /api/files/:role
func (s *Server) selectFile(c *gin.Context) {
	role, valid := model.ParseRole(c.Param("role"))
	if !valid {
		failWith(c, wizard.ErrUnknownRole, "未知的文件类型")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, "文件过大")
			return
		}
		fail(c, http.StatusBadRequest, "未找到上传文件")
		return
	}

	src, err := header.Open()
	if err != nil {
		fail(c, http.StatusInternalServerError, "读取文件失败")
		return
	}
	data, err := io.ReadAll(src)
	_ = src.Close()
	if err != nil {
		fail(c, http.StatusInternalServerError, "读取文件失败")
		return
	}

	fh := model.FileFromBytes(header.Filename, header.Header.Get("Content-Type"), data)
	sel := wizard.Selection{
		Role:   role,
		Source: wizard.ParseSource(c.DefaultPostForm("source", string(wizard.SourcePicker))),
		File:   fh,
	}
	if err := s.session.SelectFile(sel); err != nil {
		failWith(c, err, "选择文件失败")
		return
	}
	succeed(c, s.session.Snapshot())
}

// upload 提交两个文件；成功后会话已进入步骤 2
// POST /api/upload
func (s *Server) upload(c *gin.Context) {
	data, err := s.session.Upload(remoteContext(c))
	if err != nil {
		failWith(c, err, "上传失败")
		return
	}
	succeed(c, gin.H{"upload": data, "session": s.session.Snapshot()})
}

// StepRequest 切换步骤请求
type StepRequest struct {
	Step model.Step `json:"step"`
}

// goToStep 切换步骤
// POST /api/step
func (s *Server) goToStep(c *gin.Context) {
	var req StepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "参数错误")
		return
	}
	if err := s.session.GoToStep(req.Step); err != nil {
		c.JSON(statusFor(err), gin.H{
			"success": false,
			"error":   wizard.UserMessage(err, "请先完成当前步骤"),
			"kind":    wizard.Kind(err),
			"data":    s.session.Snapshot(),
		})
		return
	}
	succeed(c, s.session.Snapshot())
}

// setParams 更新参数
// POST /api/params
func (s *Server) setParams(c *gin.Context) {
	var params model.OptimizeParams
	if err := c.ShouldBindJSON(&params); err != nil {
		fail(c, http.StatusBadRequest, "参数错误")
		return
	}
	if err := s.session.SetParams(params); err != nil {
		failWith(c, err, "参数无效")
		return
	}
	succeed(c, s.session.Snapshot())
}

// optimize 同步执行优化，返回结果页数据
// POST /api/optimize
func (s *Server) optimize(c *gin.Context) {
	view, err := s.session.Optimize(remoteContext(c))
	if err != nil {
		failWith(c, err, "优化失败")
		return
	}
	succeed(c, view)
}

// getResults 结果页数据
// GET /api/results
func (s *Server) getResults(c *gin.Context) {
	view, payload := s.session.Result()
	if view == nil {
		fail(c, http.StatusNotFound, "暂无优化结果")
		return
	}
	succeed(c, gin.H{"timestamp": payload.Timestamp, "view": view})
}

// getResultsHTML 结果页 HTML 片段
// GET /api/results/html
func (s *Server) getResultsHTML(c *gin.Context) {
	view, _ := s.session.Result()
	if view == nil {
		fail(c, http.StatusNotFound, "暂无优化结果")
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := results.RenderHTML(c.Writer, *view); err != nil {
		s.logger.Error("render results html", "error", err)
	}
}

// gapDownload 跳转到服务端生成的差异分析文件
// GET /api/results/gap-download
func (s *Server) gapDownload(c *gin.Context) {
	view, _ := s.session.Result()
	if view == nil || view.GapDownload == nil {
		s.session.Notifier().Error("差异分析文件不存在")
		fail(c, http.StatusNotFound, "差异分析文件不存在")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, view.GapDownload.DownloadURL)
}

// listRuns 最近的优化记录
// GET /api/runs?limit=20
func (s *Server) listRuns(c *gin.Context) {
	if s.runs == nil {
		succeed(c, []model.RunRecord{})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(store.DefaultRunLimit)))
	if err != nil || limit <= 0 {
		limit = store.DefaultRunLimit
	}
	runs, err := s.runs.ListRuns(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("list runs", "error", err)
		fail(c, http.StatusInternalServerError, "读取优化记录失败")
		return
	}
	if runs == nil {
		runs = []model.RunRecord{}
	}
	succeed(c, runs)
}
