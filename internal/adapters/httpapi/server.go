// Package httpapi exposes the registry, stake and execution operations over
// HTTP with echo. Callers are identified by HS256 bearer tokens.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.trai.ch/splitup/internal/build"
	"go.trai.ch/splitup/internal/core/domain"
	"go.trai.ch/splitup/internal/core/ports"
	"go.trai.ch/zerr"
)

// APIRoot prefixes every versioned route.
const APIRoot = "/v1"

const shutdownTimeout = 5 * time.Second

// Server is the HTTP API.
type Server struct {
	echo    *echo.Echo
	service Service
	auth    *Authenticator
	logger  ports.Logger
}

// New builds the API around service.
func New(service Service, auth *Authenticator, cfg domain.ServerConfig, logger ports.Logger) *Server {
	s := &Server{echo: echo.New(), service: service, auth: auth, logger: logger}
	e := s.echo
	e.HideBanner = true
	e.HidePort = true
	e.Logger.SetLevel(echoLevel(cfg.LogLevel))
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(s.requestLog)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": build.Version})
	})

	h := &handlers{service: service}
	v1 := e.Group(APIRoot, auth.Middleware())

	v1.POST("/tasks", h.registerTask)
	v1.GET("/tasks/:task", h.getTask)
	v1.GET("/tasks/:task/eligible", h.eligible)
	v1.POST("/models", h.registerModel)
	v1.GET("/models/:model", h.getModel)

	v1.POST("/nodes", h.registerNode)
	v1.GET("/nodes/:owner", h.getNode)
	v1.POST("/nodes/:owner/stake/increase", h.increaseStake)
	v1.POST("/nodes/:owner/stake/decrease", h.decreaseStake)
	v1.GET("/accounts/:owner", h.balance)
	v1.POST("/accounts/:owner/credit", h.credit)

	v1.POST("/executions", h.requestExecution)
	v1.GET("/executions/:exec", h.getExecution)
	v1.POST("/executions/:exec/assign", h.assignTask)
	v1.POST("/executions/:exec/release", h.releaseTask)
	v1.POST("/executions/:exec/cancel", h.cancelExecution)
	v1.POST("/executions/:exec/verifiers", h.assignVerifier)
	v1.POST("/executions/:exec/tasks/:index/start", h.startTask)
	v1.POST("/executions/:exec/tasks/:index/complete", h.completeTask)
	v1.POST("/executions/:exec/tasks/:index/fail", h.failTask)
	v1.POST("/executions/:exec/tasks/:index/verify", h.reportVerification)

	return s
}

// echoLevel maps a configured level name onto echo's logger levels.
func echoLevel(name string) log.Lvl {
	switch strings.ToLower(name) {
	case "debug":
		return log.DEBUG
	case "info":
		return log.INFO
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	default:
		return log.WARN
	}
}

// requestLog logs every request with its latency.
func (s *Server) requestLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		begin := time.Now()
		err := next(c)
		status := c.Response().Status
		if err != nil {
			status = StatusFor(err)
		}
		s.logger.Debug("request served", "method", c.Request().Method, "path", c.Request().URL.Path,
			"status", status, "duration", time.Since(begin))
		return err
	}
}

// Handler returns the http.Handler serving the API.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Serve serves the API on lis until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	srv := &http.Server{Handler: s.echo, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(lis)
	}()
	if !s.auth.Enabled() {
		s.logger.Warn("authentication disabled, callers are taken from the " + IdentityHeader + " header")
	}
	s.logger.Info("http api listening", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return zerr.Wrap(err, "http api shutdown failed")
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return zerr.Wrap(err, "http api failed")
	}
}
