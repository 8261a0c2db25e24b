// Package server is the web side of the app: public landing pages, the guarded
// entry and AI APIs, and the protected server-rendered pages.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/flosch/pongo2/v6"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jwulff/evening/internal/config"
	"github.com/jwulff/evening/internal/guard"
	"github.com/jwulff/evening/internal/metrics"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires the gin engine.
type Server struct {
	cfg     config.Config
	engine  *gin.Engine
	guard   *guard.Guard
	store   Pinger
	metrics *metrics.Metrics
	logger  *zap.Logger
	pages   *pages
}

// New builds the server and registers its routes.
func New(cfg config.Config, g *guard.Guard, store Pinger, m *metrics.Metrics, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := loadPages()
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		guard:   g,
		store:   store,
		metrics: m,
		logger:  logger,
		pages:   p,
	}
	s.engine.Use(gin.Recovery(), s.requestLogger(), s.withMetrics(), g.Middleware())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.engine

	r.GET("/healthz", s.handleHealth)
	r.GET("/readyz", s.handleReady)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	r.GET("/", s.handleHome)
	r.GET("/upload", s.handleUpload)

	r.Any("/api/entries", s.handleNotImplemented("entries"))
	r.Any("/api/entries/*rest", s.handleNotImplemented("entries"))
	r.Any("/api/ai", s.handleNotImplemented("ai"))
	r.Any("/api/ai/*rest", s.handleNotImplemented("ai"))

	r.GET("/server/*path", s.handleAccount)
}

// Handler exposes the engine, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.cfg.HTTP.Bind, strconv.Itoa(s.cfg.HTTP.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("http server started", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleReady(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("readiness check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) handleHome(c *gin.Context) {
	s.page(c, "home", "Home", pongo2.Context{"next": "/upload"})
}

func (s *Server) handleUpload(c *gin.Context) {
	s.page(c, "upload", "Record", pongo2.Context{"recordings_dir": s.cfg.RecordingsDir})
}

func (s *Server) handleAccount(c *gin.Context) {
	id, ok := guard.IdentityFrom(c)
	if !ok {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	s.page(c, "account", "Your evenings", pongo2.Context{
		"user":    id.UserID,
		"session": id.SessionID,
		"expires": id.ExpiresAt,
		"path":    c.Param("path"),
	})
}

// handleNotImplemented answers the guarded APIs. Entry storage and AI processing
// live elsewhere; reaching this handler proves the caller got past the guard.
func (s *Server) handleNotImplemented(api string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := guard.IdentityFrom(c)
		c.JSON(http.StatusNotImplemented, gin.H{
			"error": "not implemented",
			"api":   api,
			"user":  id.UserID,
		})
	}
}

func (s *Server) page(c *gin.Context, name, title string, data pongo2.Context) {
	html, err := s.pages.render(name, title, data)
	if err != nil {
		s.logger.Error("render page", zap.String("page", name), zap.Error(err))
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
