package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountBlobs serves locally stored attachments under the blob URL path.
// Locators are public URLs.
func (s *Server) mountBlobs() {
	if s.blobDir == "" || s.blobURL == "/" || !strings.HasPrefix(s.blobURL, "/") {
		return
	}
	s.engine.StaticFS(s.blobURL, gin.Dir(s.blobDir, false))
}

// mountStatic serves the compiled frontend from the configured directory.
func (s *Server) mountStatic() {
	var indexPath string
	defer func() {
		s.engine.NoRoute(func(c *gin.Context) {
			if indexPath == "" || strings.HasPrefix(c.Request.URL.Path, "/api/") {
				c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
				return
			}
			c.File(indexPath)
		})
	}()

	if s.staticDir == "" {
		s.logger.Warn("static directory not configured; API only mode")
		return
	}

	info, err := os.Stat(s.staticDir)
	if err != nil || !info.IsDir() {
		s.logger.Warn("static directory missing", "path", s.staticDir, "error", err)
		return
	}

	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Warn("index.html not found", "path", index, "error", err)
	} else {
		indexPath = index
		s.engine.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})
	}

	assetsDir := filepath.Join(s.staticDir, "assets")
	if _, err := os.Stat(assetsDir); err == nil {
		s.engine.StaticFS("/assets", gin.Dir(assetsDir, true))
	}

	favicon := filepath.Join(s.staticDir, "favicon.ico")
	if _, err := os.Stat(favicon); err == nil {
		s.engine.StaticFile("/favicon.ico", favicon)
	}
}
