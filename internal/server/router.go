// Package server exposes the analysis engine over HTTP.
package server

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"cdrlens/internal/analysis"
	"cdrlens/internal/logger"
	"cdrlens/pkg/utils"
)

const defaultMaxUpload = 50 << 20

// Options configure a Server.
type Options struct {
	Orchestrator   *analysis.Orchestrator
	Logger         *logger.Logger
	MaxUploadBytes int64
	// ArtifactDir holds report files while they are being sent; empty means
	// the system temp dir.
	ArtifactDir   string
	DefaultFormat string
}

// Server is the HTTP adapter. It keeps no uploads or results between
// requests.
type Server struct {
	engine    *gin.Engine
	orch      *analysis.Orchestrator
	log       *logger.Logger
	http      *utils.HTTPHelper
	maxUpload int64
	dir       string
	format    string
}

// New creates a server with all routes registered.
func New(opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		engine:    gin.New(),
		orch:      opts.Orchestrator,
		log:       opts.Logger,
		http:      utils.NewHTTPHelper(),
		maxUpload: opts.MaxUploadBytes,
		dir:       opts.ArtifactDir,
		format:    opts.DefaultFormat,
	}

	if s.orch == nil {
		s.orch = analysis.New(analysis.Options{Logger: opts.Logger})
	}

	if s.log == nil {
		s.log = logger.Discard()
	}

	s.log = s.log.With("component", "server")

	if s.maxUpload <= 0 {
		s.maxUpload = defaultMaxUpload
	}

	if s.dir == "" {
		s.dir = os.TempDir()
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.logging())
	s.setupRoutes()

	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.health)

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/detectors", s.listDetectors)
		v1.POST("/analyses", s.analyze)
		v1.POST("/schema-check", s.schemaCheck)
		v1.POST("/reports", s.report)
	}
}

// Engine returns the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	s.engine.ServeHTTP(w, req)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "cdrlens",
		"detectors": len(s.orch.Registry().List("")),
	})
}

func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/health" {
			c.Next()

			return
		}

		start := time.Now()

		c.Next()

		s.log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		)
	}
}
