package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vesaa/lansite/internal/content"
	"github.com/vesaa/lansite/internal/models"
	"github.com/vesaa/lansite/internal/registry"
)

// siteView is the API representation of a registered site.
type siteView struct {
	Name    string `json:"name"`
	Link    string `json:"link"`
	Content string `json:"content,omitempty"`
	URL     string `json:"url"`
}

type createRequest struct {
	Name     string `json:"name" binding:"required"`
	Link     string `json:"link" binding:"required"`
	Content  string `json:"content" binding:"required"`
	Markdown bool   `json:"markdown"`
	Minify   bool   `json:"minify"`
}

type previewRequest struct {
	Content  string `json:"content" binding:"required"`
	Markdown bool   `json:"markdown"`
	Minify   bool   `json:"minify"`
}

// registerAPIRoutes wires the admin API.
//
//	Public:          POST /api/login, GET /api/health
//	Protected (JWT): everything else
func (s *Server) registerAPIRoutes(api *gin.RouterGroup) {
	api.POST("/login", s.handleLogin)
	api.GET("/health", s.handleHealth)

	auth := api.Group("/", s.auth.Middleware())
	{
		auth.GET("/sites", s.handleListSites)
		auth.POST("/sites", s.handleCreateSite)
		auth.GET("/sites/:name", s.handleGetSite)
		auth.DELETE("/sites/:name", s.handleDeleteSite)
		auth.GET("/sites/:name/qr", s.handleSiteQR)
		auth.POST("/preview", s.handlePreview)
		auth.GET("/history", s.handleHistory)
		auth.GET("/events", func(c *gin.Context) { s.hub.Serve(c.Writer, c.Request) })
	}
}

// handleLogin accepts username + password and returns a signed JWT.
//
//	POST /api/login
//	Body: { "username": "admin", "password": "admin" }
func (s *Server) handleLogin(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	token, err := s.auth.Login(body.Username, body.Password)
	if errors.Is(err, ErrBadCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(tokenTTL / time.Second),
		"type":       "Bearer",
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  s.State().String(),
		"sites":  s.reg.Len(),
		"url":    s.BaseURL(),
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleListSites(c *gin.Context) {
	entries := s.reg.List()
	out := make([]siteView, 0, len(entries))
	for _, e := range entries {
		out = append(out, siteView{Name: e.Name, Link: e.Link, URL: s.SiteURL(e.Link)})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (s *Server) handleGetSite(c *gin.Context) {
	name := c.Param("name")
	site, err := s.reg.Get(name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": s.view(name, site, true)})
}

func (s *Server) handleCreateSite(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name, link and content are required"})
		return
	}

	prepared, err := s.prep.Prepare(req.Content, content.Options{Markdown: req.Markdown, Minify: req.Minify || s.minify})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.reg.Create(req.Name, req.Link, prepared); err != nil {
		writeError(c, err)
		return
	}

	site, err := s.reg.Get(req.Name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": s.view(req.Name, site, false)})
}

func (s *Server) handleDeleteSite(c *gin.Context) {
	name := c.Param("name")
	if err := s.reg.Delete(name); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": name})
}

func (s *Server) handleSiteQR(c *gin.Context) {
	if s.qr == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "qr encoder not configured"})
		return
	}
	site, err := s.reg.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	size := s.qrSize
	if raw := c.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 2048 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "size must be between 64 and 2048"})
			return
		}
		size = n
	}
	png, err := s.qr.PNG(s.SiteURL(site.Link), size)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) handlePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}
	prepared, err := s.prep.Prepare(req.Content, content.Options{Markdown: req.Markdown, Minify: req.Minify || s.minify})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	path, err := s.reg.Preview(prepared)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": s.BaseURL() + path})
}

func (s *Server) handleHistory(c *gin.Context) {
	if s.hist == nil {
		c.JSON(http.StatusOK, gin.H{"data": []models.SiteEvent{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	events, err := s.hist.Recent(limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}

func (s *Server) view(name string, site models.Site, withContent bool) siteView {
	v := siteView{Name: name, Link: site.Link, URL: s.SiteURL(site.Link)}
	if withContent {
		v.Content = site.Content
	}
	return v
}

// writeError maps registry errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, registry.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, registry.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, registry.ErrNotFound):
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
