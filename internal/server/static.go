package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves the pre-built frontend. Unknown non-API paths fall back
// to index.html so client-side routes survive a reload.
func (s *Server) mountStatic() {
	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}
	if info, err := os.Stat(s.staticDir); err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", s.staticDir, "error", err)
		return
	}

	indexPath := filepath.Join(s.staticDir, "index.html")
	if !exists(indexPath) {
		s.logger.Warn("index.html not found", "path", indexPath)
	} else {
		s.engine.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})
		s.engine.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api/") || c.Request.Method != http.MethodGet {
				c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
				return
			}
			c.File(indexPath)
		})
	}

	if assetsDir := filepath.Join(s.staticDir, "assets"); exists(assetsDir) {
		assets := s.engine.Group("/assets", func(c *gin.Context) {
			c.Header("Cache-Control", "public, max-age=31536000, immutable")
		})
		assets.StaticFS("/", gin.Dir(assetsDir, false))
	}

	if favicon := filepath.Join(s.staticDir, "favicon.ico"); exists(favicon) {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
