package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

// mountStatic serves an optional single page frontend. Unknown /api paths
// always answer with a JSON 404.
func (s *Server) mountStatic() {
	apiNotFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	}

	if s.staticDir == "" {
		s.engine.NoRoute(apiNotFound)
		return
	}
	index := filepath.Join(s.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		s.logger.Warn("static frontend unavailable; serving API only", "dir", s.staticDir, "error", err)
		s.engine.NoRoute(apiNotFound)
		return
	}

	root := gin.Dir(s.staticDir, false)
	s.engine.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/api/") || c.Request.Method != http.MethodGet {
			apiNotFound(c)
			return
		}
		if f, err := root.Open(path); err == nil {
			stat, statErr := f.Stat()
			f.Close()
			if statErr == nil && !stat.IsDir() {
				c.FileFromFS(path, root)
				return
			}
		}
		c.File(index)
	})
}
