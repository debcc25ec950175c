package broadcast

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zinkosoft/sensestream/internal/observability"
)

// Health is implemented by the orchestrator to answer /healthz.
type Health interface {
	HealthSnapshot() map[string]any
}

// Server hosts the WebSocket endpoint, the health probe and optionally
// the Prometheus metrics endpoint.
type Server struct {
	echo *echo.Echo
	log  *slog.Logger
	port string
}

// NewServer wires the routes onto a fresh echo instance.
func NewServer(port string, hub *Hub, health Health, metrics *observability.Metrics, exposeMetrics bool, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	e.GET("/ws", hub.HandleWS)
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, health.HealthSnapshot())
	})
	if exposeMetrics {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(
			metrics.Registry(), promhttp.HandlerOpts{})))
	}

	return &Server{echo: e, log: log, port: port}
}

// Start runs the listener in a goroutine.
func (s *Server) Start() {
	go func() {
		if err := s.echo.Start(":" + s.port); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped", "error", err)
		}
	}()
	s.log.Info("http server listening", "port", s.port)
}

// Shutdown stops the listener gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
