// Package inspector serves a read-mostly HTTP view of the running combat.
package inspector

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/config"
	"github.com/cory-johannsen/idlecombat/internal/gameserver"
)

const (
	shutdownTimeout = 5 * time.Second
	checkTimeout    = 2 * time.Second
)

// Check reports whether a dependency is healthy.
type Check func(ctx context.Context) error

// Combat is the orchestrator surface the inspector exposes.
type Combat interface {
	Snapshot() gameserver.Snapshot
	StartCombat(ctx context.Context, enemyID string, heroIDs []string) error
	Abort(ctx context.Context) error
}

// Server is the inspector HTTP server. It implements server.Service.
type Server struct {
	combat Combat
	logger *zap.Logger
	engine *gin.Engine
	srv    *http.Server

	mu     sync.RWMutex
	checks map[string]Check
}

// StartRequest is the body of POST /combat/start.
type StartRequest struct {
	EnemyID string   `json:"enemy_id" binding:"required"`
	HeroIDs []string `json:"hero_ids"`
}

// New builds the inspector routes.
//
// Precondition: c and logger must be non-nil.
func New(cfg config.InspectorConfig, c Combat, logger *zap.Logger) *Server {
	s := &Server{combat: c, logger: logger, engine: gin.New(), checks: make(map[string]Check)}
	s.engine.Use(gin.Recovery(), requestLogger(logger))

	s.engine.GET("/health", s.health)
	api := s.engine.Group("/combat")
	{
		api.GET("", s.snapshot)
		api.POST("/start", s.start)
		api.POST("/abort", s.abort)
	}

	s.srv = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// AddCheck registers a dependency reported by GET /health.
func (s *Server) AddCheck(name string, fn Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = fn
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens until Stop is called.
func (s *Server) Start() error {
	s.logger.Info("inspector listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the listener down, waiting for in-flight requests.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("inspector shutdown", zap.Error(err))
	}
}

// health answers 503 when any registered check fails.
func (s *Server) health(c *gin.Context) {
	s.mu.RLock()
	checks := make(map[string]Check, len(s.checks))
	for name, fn := range s.checks {
		checks[name] = fn
	}
	s.mu.RUnlock()

	if len(checks) == 0 {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()
	status, code := "ok", http.StatusOK
	results := make(map[string]string, len(checks))
	for name, fn := range checks {
		if err := fn(ctx); err != nil {
			results[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	c.JSON(code, gin.H{"status": status, "checks": results})
}

func (s *Server) snapshot(c *gin.Context) {
	c.JSON(http.StatusOK, s.combat.Snapshot())
}

func (s *Server) start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.combat.StartCombat(c.Request.Context(), req.EnemyID, req.HeroIDs); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s.combat.Snapshot())
}

func (s *Server) abort(c *gin.Context) {
	if err := s.combat.Abort(c.Request.Context()); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "aborted"})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, gameserver.ErrCombatActive), errors.Is(err, gameserver.ErrNoCombat):
		return http.StatusConflict
	case errors.Is(err, gameserver.ErrNoEnemy):
		return http.StatusNotFound
	case errors.Is(err, gameserver.ErrNoLivingHeroes):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("inspector request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
