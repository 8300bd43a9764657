package server

import (
	"context"
	"embed"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kai657/po-adjustment/internal/model"
	"github.com/kai657/po-adjustment/internal/optimizer"
	"github.com/kai657/po-adjustment/internal/wizard"
)

//go:embed all:web
var webFiles embed.FS

// DefaultPreviewCacheSize 预览图缓存条数
const DefaultPreviewCacheSize = 32

// ArtifactSource 远端产物（预览图、下载文件）
type ArtifactSource interface {
	Fetch(ctx context.Context, kind optimizer.ArtifactKind, filename string) (*optimizer.Artifact, error)
}

// RunLister 优化记录查询
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
}

// Options 服务器选项
type Options struct {
	DevMode          bool
	RemoteURL        string // 仅用于状态展示
	MaxUploadBytes   int64
	ExportDir        string // 本地导出文件目录
	PreviewCacheSize int
	Logger           *slog.Logger
}

// Server HTTP服务器
type Server struct {
	router    *gin.Engine
	session   *wizard.Session
	artifacts ArtifactSource
	runs      RunLister
	opts      Options
	logger    *slog.Logger

	previews  *lru.Cache[string, *optimizer.Artifact]
	downloads *exportDownloadStore
}

// New 创建服务器；runs 可为 nil
func New(session *wizard.Session, artifacts ArtifactSource, runs RunLister, opts Options) (*Server, error) {
	if !opts.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 16 << 20
	}
	if opts.PreviewCacheSize <= 0 {
		opts.PreviewCacheSize = DefaultPreviewCacheSize
	}

	previews, err := lru.New[string, *optimizer.Artifact](opts.PreviewCacheSize)
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if opts.DevMode {
		router.Use(gin.Logger())
	}

	s := &Server{
		router:    router,
		session:   session,
		artifacts: artifacts,
		runs:      runs,
		opts:      opts,
		logger:    logger,
		previews:  previews,
		downloads: newExportDownloadStore(),
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	api := s.router.Group("/api")
	{
		api.GET("/status", s.getStatus)
		api.GET("/session", s.getSession)

		// 向导
		api.POST("/files/:role", s.selectFile)
		api.POST("/upload", s.upload)
		api.POST("/step", s.goToStep)
		api.POST("/params", s.setParams)
		api.POST("/optimize", s.optimize)
		api.POST("/optimize/stream", s.optimizeStream)

		// 结果
		api.GET("/results", s.getResults)
		api.GET("/results/html", s.getResultsHTML)
		api.GET("/results/gap-download", s.gapDownload)
		api.GET("/preview/:filename", s.preview)
		api.GET("/download/:filename", s.download)

		// 本地导出
		api.POST("/export/gap/stream", s.exportGapStream)
		api.GET("/export/download/:token", s.downloadExport)

		api.GET("/runs", s.listRuns)
	}

	s.router.GET("/", s.index)
	s.router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			fail(c, http.StatusNotFound, "接口不存在")
			return
		}
		s.index(c)
	})
}

func (s *Server) index(c *gin.Context) {
	data, err := webFiles.ReadFile("web/index.html")
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", data)
}

// Handler 供 http.Server 或测试使用
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器
func (s *Server) Run(addr string) error {
	return s.router.Run(addr)
}
