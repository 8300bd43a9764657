// Package optimizertest 提供测试用的远端优化服务。
package optimizertest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kai657/po-adjustment/internal/model"
)

// Upload 一次收到的上传
type Upload struct {
	Schedule     string
	PO           string
	ScheduleSize int
	POSize       int
}

// Fake 基于 gin 的假服务，响应可在测试中替换
type Fake struct {
	Server *httptest.Server

	mu             sync.Mutex
	uploadStatus   int
	uploadResp     any
	optimizeStatus int
	optimizeResp   any
	artifacts      map[string][]byte
	uploads        []Upload
	params         []model.OptimizeParams
	fetches        map[string]int
	optimizeGate   chan struct{}
}

// New 启动假服务，测试结束时关闭
func New(t testing.TB) *Fake {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &Fake{
		uploadStatus: http.StatusOK,
		uploadResp: gin.H{
			"success": true,
			"data": gin.H{
				"schedule_aim": gin.H{"filename": "schedule_aim.xlsx", "rows": 2, "columns": []string{"SKU", "2025-01-06"}, "skus": []string{"A", "B"}},
				"po_lists":     gin.H{"filename": "po_lists.xlsx", "rows": 3, "columns": []string{"SKU", "Qty"}, "skus": []string{"A", "B"}},
				"conversion":   gin.H{"format": "cross_table", "converted": true, "message": "已将交叉表转换为长格式"},
			},
		},
		optimizeStatus: http.StatusOK,
		optimizeResp:   SampleOptimizeResponse(),
		artifacts:      map[string][]byte{},
		fetches:        map[string]int{},
	}

	r := gin.New()
	r.POST("/api/upload", f.handleUpload)
	r.POST("/api/optimize", f.handleOptimize)
	r.GET("/api/preview/:filename", f.handleArtifact)
	r.GET("/api/download/:filename", f.handleArtifact)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// URL 服务地址
func (f *Fake) URL() string {
	return f.Server.URL
}

// SetUpload 替换上传响应
func (f *Fake) SetUpload(status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadStatus, f.uploadResp = status, body
}

// SetOptimize 替换优化响应
func (f *Fake) SetOptimize(status int, body any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimizeStatus, f.optimizeResp = status, body
}

// HoldOptimize 优化请求阻塞到返回的函数被调用
func (f *Fake) HoldOptimize() (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.optimizeGate = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// SetArtifact 设置可预览/下载的文件
func (f *Fake) SetArtifact(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artifacts[name] = data
}

// Uploads 已收到的上传
func (f *Fake) Uploads() []Upload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Upload(nil), f.uploads...)
}

// Params 已收到的优化参数
func (f *Fake) Params() []model.OptimizeParams {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.OptimizeParams(nil), f.params...)
}

// Fetches 某个文件被读取的次数
func (f *Fake) Fetches(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[name]
}

func (f *Fake) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "无效的表单数据"})
		return
	}
	schedule := form.File["schedule_aim"]
	po := form.File["po_lists"]
	if len(schedule) == 0 || len(po) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "请同时上传排程目标和PO清单文件"})
		return
	}

	f.mu.Lock()
	f.uploads = append(f.uploads, Upload{
		Schedule:     schedule[0].Filename,
		PO:           po[0].Filename,
		ScheduleSize: int(schedule[0].Size),
		POSize:       int(po[0].Size),
	})
	status, body := f.uploadStatus, f.uploadResp
	f.mu.Unlock()

	writeBody(c, status, body)
}

func (f *Fake) handleOptimize(c *gin.Context) {
	var params model.OptimizeParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "参数错误"})
		return
	}

	f.mu.Lock()
	f.params = append(f.params, params)
	gate := f.optimizeGate
	status, body := f.optimizeStatus, f.optimizeResp
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-c.Request.Context().Done():
			return
		}
	}
	writeBody(c, status, body)
}

func (f *Fake) handleArtifact(c *gin.Context) {
	name := c.Param("filename")

	f.mu.Lock()
	f.fetches[name]++
	data, ok := f.artifacts[name]
	f.mu.Unlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "文件不存在"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, http.DetectContentType(data), data)
}

// writeBody 字符串按原样输出（用于构造非 JSON 响应）
func writeBody(c *gin.Context, status int, body any) {
	if s, ok := body.(string); ok {
		c.Status(status)
		_, _ = io.WriteString(c.Writer, s)
		return
	}
	c.JSON(status, body)
}

// SampleOptimizeResponse 含差异分析的成功响应
func SampleOptimizeResponse() gin.H {
	return gin.H{
		"success": true,
		"data": gin.H{
			"timestamp": "20250101_120000",
			"summary": []gin.H{
				{"SKU": "A", "周数": 2, "原始总偏差": 150, "优化后总偏差": 30},
				{"SKU": "B", "周数": 2, "原始总偏差": 50, "优化后总偏差": 20},
			},
			"gap_analysis": gin.H{
				"skus":            []string{"A", "B"},
				"dates":           []string{"2025-01-06", "2025-01-13"},
				"gap_values":      [][]float64{{10, -3}, {0, 1}},
				"schedule_values": [][]float64{{100, 50}, {20, 40}},
				"po_values":       [][]float64{{90, 53}, {20, 39}},
				"stats": gin.H{
					"sku_count": 2, "date_count": 2,
					"total_gap": 8, "abs_total_gap": 14, "max_gap": 10, "min_gap": -3,
				},
			},
			"files": gin.H{
				"optimized_po":     "optimized_po_20250101.xlsx",
				"report":           "report_20250101.xlsx",
				"comparison_chart": "comparison_20250101.png",
				"deviation_chart":  "deviation_20250101.png",
				"gap_analysis":     "gap_analysis_20250101.xlsx",
			},
		},
	}
}
