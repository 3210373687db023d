// Package server exposes the session to a local UI over a loopback-only
// JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

var ErrNotLoopback = errors.New("server: address must be a loopback address")

type RouterConfig struct {
	SessionHandler *SessionHandler
	Logger         Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoopbackOnly())
	r.Use(AccessLog(log))

	r.GET("/healthcheck", HealthCheck)

	h := cfg.SessionHandler
	if h == nil {
		return r
	}
	api := r.Group("/api")
	{
		api.GET("/session", h.GetSession)
		api.GET("/current", h.GetCurrent)
		api.PATCH("/current", h.UpdateCurrent)
		api.GET("/status", h.GetStatus)
		api.PUT("/teacher/:field", h.UpdateTeacher)

		api.POST("/students", h.AddStudent)
		api.POST("/students/:id/select", h.SelectStudent)
		api.DELETE("/students/:id", h.DeleteStudent)

		api.GET("/wizard", h.GetWizard)
		api.POST("/wizard/next", h.Next)
		api.POST("/wizard/back", h.Back)
		api.POST("/wizard/goto", h.GoTo)

		api.GET("/export", h.Export)
		api.POST("/import", h.Import)
		api.GET("/print", h.Print)
		api.POST("/reset", h.Reset)

		api.GET("/schema", h.Schema)
		api.GET("/catalog", h.Catalog)
	}
	return r
}

// LoopbackOnly refuses requests whose peer is not a loopback address.
func LoopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			RespondError(c, http.StatusForbidden, "forbidden", ErrNotLoopback)
			return
		}
		c.Next()
	}
}

// AccessLog writes one line per request.
func AccessLog(log Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		kv := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		switch {
		case status >= 500:
			log.Error("request", kv...)
		case status >= 400:
			log.Warn("request", kv...)
		default:
			log.Info("request", kv...)
		}
	}
}

type Server struct {
	Engine *gin.Engine
	log    Logger
}

func NewServer(cfg RouterConfig) *Server {
	log := cfg.Logger
	if log == nil {
		log = nopLogger{}
	}
	return &Server{Engine: NewRouter(cfg), log: log}
}

// CheckLoopback rejects listen addresses reachable from other hosts.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}
	return nil
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := CheckLoopback(addr); err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
