// Package server exposes the agent over HTTP: file operations, versioning
// operations, and a thin proxy to the Home Assistant API.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pmharris77/home-assistant-vibecode-agent/internal/fileops"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/ha"
	"github.com/pmharris77/home-assistant-vibecode-agent/internal/vault"
)

// Server wires the HTTP surface to its collaborators. HA clients may be nil
// when the agent runs without platform access; the affected routes answer 503.
type Server struct {
	files  *fileops.Manager
	store  *vault.Vault
	core   *ha.Client
	socket *ha.SocketClient
	token  string
	log    *zap.Logger

	http *http.Server
}

// Options collects the server dependencies.
type Options struct {
	Files    *fileops.Manager
	Store    *vault.Vault
	Core     *ha.Client
	Socket   *ha.SocketClient
	APIToken string
	Logger   *zap.Logger
}

// New builds a server. Call Run to serve.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		files:  opts.Files,
		store:  opts.Store,
		core:   opts.Core,
		socket: opts.Socket,
		token:  opts.APIToken,
		log:    opts.Logger,
	}
}

// Router assembles the gin engine with middleware and all routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api", s.auth())
	{
		api.GET("/files", s.handleListFiles)
		api.GET("/files/*path", s.handleReadFile)
		api.PUT("/files/*path", s.handleWriteFile)
		api.POST("/files/*path", s.handleAppendFile)
		api.DELETE("/files/*path", s.handleDeleteFile)

		backup := api.Group("/backup")
		{
			backup.POST("/commit", s.handleCommit)
			backup.GET("/history", s.handleHistory)
			backup.GET("/diff", s.handleDiff)
			backup.POST("/rollback", s.handleRollback)
			backup.POST("/restore", s.handleRestore)
			backup.POST("/checkpoint", s.handleCheckpointBegin)
			backup.POST("/checkpoint/end", s.handleCheckpointEnd)
			backup.GET("/checkpoints", s.handleCheckpoints)
			backup.POST("/cleanup", s.handleCleanup)
			backup.POST("/reconcile", s.handleReconcile)
		}

		api.GET("/entities", s.handleStates)
		api.GET("/entities/:id", s.handleState)
		api.POST("/services/:domain/:service", s.handleCallService)
		api.GET("/registry/:kind", s.handleRegistry)
		api.POST("/template", s.handleTemplate)
		api.POST("/config/check", s.handleCheckConfig)
		api.POST("/restart", s.handleRestart)
	}
	return r
}

// Run serves until the context is cancelled, then drains for up to ten
// seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.http = &http.Server{Addr: addr, Handler: s.Router()}

	errc := make(chan error, 1)
	go func() {
		errc <- s.http.ListenAndServe()
	}()
	s.log.Info("http server listening", zap.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

// auth enforces the bearer token on every API route. An empty configured
// token disables the check (supervisor network is the boundary then).
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.token == "" {
			c.Next()
			return
		}
		if c.GetHeader("Authorization") != "Bearer "+s.token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

// requestLog tags each request with an id and logs method, path, status and
// latency.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Header("X-Request-ID", id)
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"versioning": s.store != nil && s.store.Enabled(),
	})
}

// fail translates domain errors into HTTP status codes.
func (s *Server) fail(c *gin.Context, err error) {
	var ierr *vault.IntegrityError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vault.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, vault.ErrConflict), errors.Is(err, vault.ErrCheckpointOpen):
		status = http.StatusConflict
	case errors.Is(err, vault.ErrDisabled):
		status = http.StatusServiceUnavailable
	case errors.Is(err, fileops.ErrOutsideRoot):
		status = http.StatusBadRequest
	case errors.As(err, &ierr):
		s.log.Error("integrity violation", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
