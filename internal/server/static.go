package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/lansite/internal/fsutil"
)

// serveStatic is the NoRoute handler: every path not claimed by /api or /ui is
// looked up under the served root.
func (s *Server) serveStatic(c *gin.Context) {
	if m := c.Request.Method; m != http.MethodGet && m != http.MethodHead {
		c.Header("Allow", "GET, HEAD")
		c.String(http.StatusMethodNotAllowed, "405 method not allowed")
		return
	}

	// /api is reserved even where the root holds a matching directory.
	if p := path.Clean("/" + c.Request.URL.Path); p == "/api" || strings.HasPrefix(p, "/api/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such endpoint"})
		return
	}

	target, ok := s.resolveStatic(c.Request.URL.Path)
	if !ok {
		if path.Clean("/"+c.Request.URL.Path) == "/" {
			c.Redirect(http.StatusFound, "/ui/")
			return
		}
		c.String(http.StatusNotFound, "404 page not found")
		return
	}

	f, err := os.Open(target)
	if err != nil {
		c.String(http.StatusNotFound, "404 page not found")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		c.String(http.StatusInternalServerError, "500 internal server error")
		return
	}
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// resolveStatic maps a URL path to a regular file inside the root. Symlinks are
// resolved before the containment check; dot-segments (hidden files, temp files
// from atomic writes) are never served. Directories resolve to their index.html.
func (s *Server) resolveStatic(urlPath string) (string, bool) {
	cleaned := path.Clean("/" + urlPath)
	for _, seg := range strings.Split(cleaned, "/") {
		if strings.HasPrefix(seg, ".") {
			return "", false
		}
	}

	full := filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(cleaned, "/")))
	resolved, ok := s.contained(full)
	if !ok {
		return "", false
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", false
	}
	if info.IsDir() {
		index, ok := s.contained(filepath.Join(resolved, "index.html"))
		if !ok {
			return "", false
		}
		if fi, err := os.Stat(index); err == nil && fi.Mode().IsRegular() {
			return index, true
		}
		return "", false
	}
	if !info.Mode().IsRegular() {
		return "", false
	}
	return resolved, true
}

func (s *Server) contained(p string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", false
	}
	if !fsutil.Within(s.root, resolved) {
		s.logger.Warn("static path escapes root", "path", p, "resolved", resolved)
		return "", false
	}
	return resolved, true
}
