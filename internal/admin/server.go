package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"streamrelay/config"
	"streamrelay/internal/app"
	"streamrelay/internal/logger"
)

// Controller is the part of the relay the admin surface drives
type Controller interface {
	Status() app.Status
	Connect(ctx context.Context) error
	Disconnect() error
	Reload() error
	Recipients() []string
	AddRecipient(name string) (bool, error)
	RemoveRecipient(name string) (bool, error)
}

// Response is the body of every non-status reply
type Response struct {
	Message    string   `json:"message,omitempty"`
	Error      string   `json:"error,omitempty"`
	Recipients []string `json:"recipients,omitempty"`
}

// Server exposes the control operations and, when enabled, the metrics
// endpoint over HTTP.
type Server struct {
	ctrl     Controller
	logger   *logger.Logger
	engine   *gin.Engine
	srv      *http.Server
	listener net.Listener
}

// NewServer builds the router. gatherer may be nil when metrics are off.
func NewServer(cfg *config.Config, ctrl Controller, gatherer prometheus.Gatherer, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ctrl:   ctrl,
		logger: log.Named("admin"),
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())

	if cfg.Admin.Enabled {
		s.engine.GET("/status", s.handleStatus)
		s.engine.POST("/connect", s.handleConnect)
		s.engine.POST("/disconnect", s.handleDisconnect)
		s.engine.POST("/reload", s.handleReload)
		s.engine.GET("/recipients", s.handleListRecipients)
		s.engine.PUT("/recipients/:name", s.handleAddRecipient)
		s.engine.DELETE("/recipients/:name", s.handleRemoveRecipient)
	}
	if cfg.Metrics.Enabled && gatherer != nil {
		s.engine.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.srv = &http.Server{
		Addr:              cfg.Admin.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start binds the listen address and serves in the background
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.logger.Info("admin server listening", "address", ln.Addr().String())

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("admin server failed", "error", err)
		}
	}()
	return nil
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.srv.Addr
	}
	return s.listener.Addr().String()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("admin request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleConnect(c *gin.Context) {
	err := s.ctrl.Connect(c.Request.Context())
	switch {
	case errors.Is(err, app.ErrAlreadyConnected):
		c.JSON(http.StatusConflict, Response{Error: "already connected to streamlabs"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
	default:
		c.JSON(http.StatusOK, Response{Message: "connecting to streamlabs"})
	}
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.ctrl.Disconnect(); errors.Is(err, app.ErrNotConnected) {
		c.JSON(http.StatusConflict, Response{Error: "not connected to streamlabs"})
		return
	}
	c.JSON(http.StatusOK, Response{Message: "disconnected from streamlabs"})
}

func (s *Server) handleReload(c *gin.Context) {
	if err := s.ctrl.Reload(); err != nil {
		s.logger.Error("reload failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Message: "configuration reloaded"})
}

func (s *Server) handleListRecipients(c *gin.Context) {
	c.JSON(http.StatusOK, Response{Recipients: s.ctrl.Recipients()})
}

func (s *Server) handleAddRecipient(c *gin.Context) {
	name := c.Param("name")
	added, err := s.ctrl.AddRecipient(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	if !added {
		c.JSON(http.StatusConflict, Response{Error: name + " is already affected"})
		return
	}
	c.JSON(http.StatusOK, Response{Message: name + " added", Recipients: s.ctrl.Recipients()})
}

func (s *Server) handleRemoveRecipient(c *gin.Context) {
	name := c.Param("name")
	removed, err := s.ctrl.RemoveRecipient(name)
	if err != nil {
		c.JSON(http.StatusInternalServerError, Response{Error: err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, Response{Error: name + " is not affected"})
		return
	}
	c.JSON(http.StatusOK, Response{Message: name + " removed", Recipients: s.ctrl.Recipients()})
}
