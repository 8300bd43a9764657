// Package optimizer 是远端优化服务的 HTTP 客户端。
//
// 接口：
//
//	POST /api/upload            multipart: schedule_aim, po_lists
//	POST /api/optimize          JSON 参数
//	GET  /api/preview/{name}    图片
//	GET  /api/download/{name}   文件
package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kai657/po-adjustment/internal/model"
)

// 上传表单字段名
const (
	FieldScheduleAim = "schedule_aim"
	FieldPOLists     = "po_lists"
)

// ArtifactKind 产物访问方式
type ArtifactKind string

const (
	KindPreview  ArtifactKind = "preview"
	KindDownload ArtifactKind = "download"
)

// DefaultTimeout 优化可能耗时较长
const DefaultTimeout = 10 * time.Minute

// Client 远端优化服务客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New 创建客户端
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// BaseURL 远端地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload 两个文件在同一个 multipart 请求中提交
func (c *Client) Upload(ctx context.Context, schedule, po *model.FileHandle) (*model.UploadData, error) {
	const op = "upload"
	if schedule == nil || po == nil {
		return nil, &RejectionError{Op: op, Message: "请同时上传排程目标和PO清单文件"}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, part := range []struct {
		field string
		file  *model.FileHandle
	}{
		{FieldScheduleAim, schedule},
		{FieldPOLists, po},
	} {
		if err := writeFilePart(mw, part.field, part.file); err != nil {
			return nil, &NetworkError{Op: op, Err: err}
		}
	}
	if err := mw.Close(); err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	c.logger.Info("uploading files",
		"schedule", schedule.Name, "po", po.Name,
		"size", humanize.IBytes(uint64(body.Len())))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp model.UploadResponse
	status, err := c.do(req, op, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, rejection(op, status, resp.Error, "上传失败")
	}
	if resp.Data == nil {
		return &model.UploadData{}, nil
	}
	return resp.Data, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func writeFilePart(mw *multipart.Writer, field string, fh *model.FileHandle) error {
	rc, err := fh.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(fh.Name)))
	ct := fh.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	w, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, rc); err != nil {
		return fmt.Errorf("failed to read %s: %w", fh.Name, err)
	}
	return nil
}

// Optimize 提交优化参数，服务端完成后一次性返回结果
func (c *Client) Optimize(ctx context.Context, params model.OptimizeParams) (*model.ResultPayload, error) {
	const op = "optimize"

	payload, err := json.Marshal(params)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/optimize", bytes.NewReader(payload))
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	var resp model.OptimizeResponse
	status, err := c.do(req, op, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, rejection(op, status, resp.Error, "优化失败")
	}
	if resp.Data == nil {
		return nil, rejection(op, status, "", "响应缺少优化结果")
	}

	c.logger.Info("optimize finished",
		"skus", len(resp.Data.Summary),
		"gap_analysis", resp.Data.GapAnalysis != nil,
		"elapsed", time.Since(start).Round(time.Millisecond))
	return resp.Data, nil
}

func (c *Client) do(req *http.Request, op string, out any) (int, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, &NetworkError{Op: op, Err: err}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return res.StatusCode, &NetworkError{
			Op:  op,
			Err: fmt.Errorf("HTTP %d: invalid JSON response: %w", res.StatusCode, err),
		}
	}
	return res.StatusCode, nil
}

func rejection(op string, status int, message, fallback string) *RejectionError {
	if message == "" {
		message = fallback
	}
	return &RejectionError{Op: op, StatusCode: status, Message: message}
}

// Artifact 预览/下载内容
type Artifact struct {
	Filename           string
	ContentType        string
	ContentDisposition string
	Data               []byte
}

// Size 内容字节数
func (a *Artifact) Size() int {
	return len(a.Data)
}

// Fetch 读取远端产物
func (c *Client) Fetch(ctx context.Context, kind ArtifactKind, filename string) (*Artifact, error) {
	op := string(kind)
	if kind != KindPreview && kind != KindDownload {
		return nil, &NetworkError{Op: op, Err: errors.New("unknown artifact kind")}
	}
	if filename == "" {
		return nil, &RejectionError{Op: op, StatusCode: http.StatusBadRequest, Message: "文件名不能为空"}
	}

	target := fmt.Sprintf("%s/api/%s/%s", c.baseURL, kind, url.PathEscape(filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}

	if res.StatusCode != http.StatusOK {
		var env struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}
		if json.Unmarshal(data, &env) == nil && env.Error != "" {
			return nil, &RejectionError{Op: op, StatusCode: res.StatusCode, Message: env.Error}
		}
		return nil, &NetworkError{Op: op, Err: fmt.Errorf("unexpected HTTP %d", res.StatusCode)}
	}

	return &Artifact{
		Filename:           filename,
		ContentType:        res.Header.Get("Content-Type"),
		ContentDisposition: res.Header.Get("Content-Disposition"),
		Data:               data,
	}, nil
}
