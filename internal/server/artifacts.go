package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kai657/po-adjustment/internal/optimizer"
	"github.com/kai657/po-adjustment/internal/util"
)

// preview 图表预览；远端图片按文件名缓存（文件名带时间戳，内容不会变化）
// GET /api/preview/:filename
func (s *Server) preview(c *gin.Context) {
	name := c.Param("filename")
	if art, ok := s.previews.Get(name); ok {
		c.Header("X-Cache", "HIT")
		writeArtifact(c, art, false)
		return
	}

	art, err := s.artifacts.Fetch(remoteContext(c), optimizer.KindPreview, name)
	if err != nil {
		s.artifactError(c, name, err)
		return
	}
	if strings.HasPrefix(art.ContentType, "image/") {
		s.previews.Add(name, art)
	}
	s.logger.Debug("preview fetched", "file", name, "size", util.HumanBytes(int64(art.Size())))
	c.Header("X-Cache", "MISS")
	writeArtifact(c, art, false)
}

// download 代理远端下载
// GET /api/download/:filename
func (s *Server) download(c *gin.Context) {
	name := c.Param("filename")
	art, err := s.artifacts.Fetch(remoteContext(c), optimizer.KindDownload, name)
	if err != nil {
		s.artifactError(c, name, err)
		return
	}
	s.logger.Info("download proxied", "file", name, "size", util.HumanBytes(int64(art.Size())))
	writeArtifact(c, art, true)
}

func writeArtifact(c *gin.Context, art *optimizer.Artifact, attachment bool) {
	ct := art.ContentType
	if ct == "" {
		ct = http.DetectContentType(art.Data)
	}
	if attachment {
		cd := art.ContentDisposition
		if cd == "" {
			cd = contentDisposition(art.Filename)
		}
		c.Header("Content-Disposition", cd)
	}
	c.Data(http.StatusOK, ct, art.Data)
}

func (s *Server) artifactError(c *gin.Context, name string, err error) {
	var rej *optimizer.RejectionError
	if errors.As(err, &rej) && rej.StatusCode >= 400 {
		fail(c, rej.StatusCode, rej.Message)
		return
	}
	s.logger.Error("fetch artifact", "file", name, "error", err)
	failWith(c, err, "获取文件失败")
}
