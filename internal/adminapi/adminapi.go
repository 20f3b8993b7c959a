// Package adminapi exposes the pipeline's operational HTTP surface,
// grounded on discovery-service/cmd/api/main.go's echo wiring (minus the
// OTel middleware, dropped per DESIGN.md) — health, metrics scrape, and
// two operator actions that drive the matcher's command channel.
package adminapi

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/arc-self/infosweep/internal/matcher"
	"github.com/arc-self/infosweep/internal/metrics"
)

// RuleReloader compiles a fresh rule set and swaps it into the running
// matcher, implemented by the cmd/infosweep wiring layer so adminapi
// does not need to know how rule files are resolved.
type RuleReloader interface {
	Reload(ctx context.Context) error
}

// Server wraps the echo instance serving /healthz, /metrics,
// /rules/reload and /shutdown.
type Server struct {
	echo     *echo.Echo
	consumer *matcher.Consumer
	reloader RuleReloader
	logger   *zap.Logger
	shutdown context.CancelFunc
}

// New builds the admin HTTP server. shutdown is invoked when /shutdown
// is called, expected to cancel the root context the pipeline runs under.
func New(consumer *matcher.Consumer, reloader RuleReloader, logger *zap.Logger, shutdown context.CancelFunc) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger.Info("adminapi: request", zap.String("uri", v.URI), zap.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{echo: e, consumer: consumer, reloader: reloader, logger: logger, shutdown: shutdown}

	e.GET("/healthz", s.handleHealthz)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	e.POST("/rules/reload", s.handleRulesReload)
	e.POST("/shutdown", s.handleShutdown)

	return s
}

// ServeHTTP lets Server be driven directly by an httptest.Recorder
// without binding a real listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

// Start serves on addr until ctx is canceled.
func (s *Server) Start(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			s.logger.Error("adminapi: server failure", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("adminapi: shutdown error", zap.Error(err))
		}
	}()
}

func (s *Server) handleHealthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.consumer.State().String(),
	})
}

func (s *Server) handleRulesReload(c echo.Context) error {
	if err := s.reloader.Reload(c.Request().Context()); err != nil {
		s.logger.Error("adminapi: rules reload failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "reload requested"})
}

func (s *Server) handleShutdown(c echo.Context) error {
	s.logger.Info("adminapi: shutdown requested via admin API")
	if err := s.consumer.Stop(c.Request().Context(), false); err != nil {
		s.logger.Error("adminapi: matcher stop failed", zap.Error(err))
	}
	if s.shutdown != nil {
		s.shutdown()
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "shutting down"})
}
