// Package api serves the dashboard REST API and the live telemetry stream,
// and provides a client for talking to a running server.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/motodash/cluster/internal/config"
	"github.com/motodash/cluster/internal/dashboard"
	"github.com/motodash/cluster/internal/dispatcher"
	"github.com/motodash/cluster/internal/storage"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Dependencies holds the collaborators of the server. Engine, Dispatcher
// and Hub are optional; their routes are only mounted when set.
type Dependencies struct {
	Store      storage.Store
	Engine     *dashboard.Engine
	Dispatcher *dispatcher.Dispatcher
	Hub        *Hub
	Logger     *slog.Logger
	Rand       *rand.Rand
	Clock      func() time.Time
}

// Server is the HTTP front of the dashboard.
type Server struct {
	cfg    config.ServerConfig
	deps   Dependencies
	router *gin.Engine

	randMu sync.Mutex

	mu     sync.Mutex
	http   *http.Server
	closed bool
}

// NewServer builds the router. It does not listen until ListenAndServe.
func NewServer(cfg config.ServerConfig, deps Dependencies) (*Server, error) {
	if deps.Store == nil {
		return nil, errors.New("api server requires a store")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(deps.Clock().UnixNano()))
	}
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	registerJSONFieldNames()

	s := &Server{cfg: cfg, deps: deps}
	s.router = gin.New()
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.GET("/healthcheck", s.healthcheck)

	g := r.Group("/api")

	g.GET("/settings/:userId", s.getSettings)
	g.POST("/settings", s.createSettings)
	g.PATCH("/settings/:id", s.updateSettings)

	g.GET("/warnings", s.listWarnings)
	g.POST("/warnings", s.createWarning)
	g.POST("/warnings/:id/dismiss", s.dismissWarning)

	g.GET("/trips/current/:userId", s.currentTrip)
	g.POST("/trips/start", s.startTrip)
	g.PATCH("/trips/:id/end", s.endTrip)
	g.GET("/trips/history/:userId", s.tripHistory)

	g.GET("/motorcycle/data", s.motorcycleData)

	g.GET("/layout/:key", s.getLayout)
	g.PUT("/layout/:key", s.saveLayout)
	g.DELETE("/layout/:key", s.deleteLayout)

	g.GET("/telemetry/history", s.telemetryHistory)

	if s.deps.Engine != nil {
		g.GET("/dashboard", s.dashboardView)
	}
	if s.deps.Dispatcher != nil {
		g.GET("/dashboard/actions", s.listActions)
		g.POST("/dashboard/actions/:command", s.dispatchAction)
	}
	if s.deps.Hub != nil {
		g.GET("/telemetry/stream", s.stream)
	}
}

// requestLogger logs one line per request at debug level, or warn for 5xx.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.deps.Logger.Log(c.Request.Context(), level, "HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start))
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server is shut down. A clean shutdown
// returns nil, also when Shutdown ran first.
func (s *Server) ListenAndServe() error {
	srv := &http.Server{
		Addr:              s.cfg.Address,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.http = srv
	s.mu.Unlock()

	s.deps.Logger.Info("API listening", "address", s.cfg.Address)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and closes the stream hub.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.deps.Hub != nil {
		s.deps.Hub.Close()
	}

	s.mu.Lock()
	s.closed = true
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
	}
	return srv.Shutdown(ctx)
}

func (s *Server) healthcheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
