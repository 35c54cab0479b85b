// Package api exposes the operator-facing HTTP surface: liveness/readiness
// health checks, a state snapshot for dashboards, and the inbound webhook
// intake the cloud POS posts StopListUpdate/order events to.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/vostok-rest/backoffice/common"
	"github.com/vostok-rest/backoffice/webhook"
)

// StateProvider reports whatever an operator dashboard needs to see at a
// glance: last sync-run times, active stop-list size, pending write-off
// count. Kept as a thin interface so api doesn't depend on every package
// that might contribute a field.
type StateProvider interface {
	State(ctx context.Context) (map[string]interface{}, error)
}

// Server wraps an echo.Echo with this service's routes and middleware
// stack.
type Server struct {
	echo *echo.Echo
}

// Config configures the HTTP server's network binding and timeouts.
type Config struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// New builds a Server with the standard middleware stack (logging,
// panic recovery, CORS) and registers health/state/webhook routes. tokens
// may be nil, in which case /state is left unauthenticated — used in tests
// and in deployments that put the operator surface behind a private
// network instead.
func New(cfg Config, dispatcher *webhook.Dispatcher, state StateProvider, tokens *TokenService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			common.Logger.WithFields(map[string]interface{}{
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
			}).Info("http request")
			return nil
		},
	}))

	e.GET("/healthz", healthHandler)
	if tokens != nil {
		e.GET("/state", stateHandler(state), bearerAuth(tokens))
	} else {
		e.GET("/state", stateHandler(state))
	}
	if dispatcher != nil {
		e.POST("/webhooks/pos", dispatcher.EchoHandler())
	}

	return &Server{echo: e}
}

func healthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func stateHandler(state StateProvider) echo.HandlerFunc {
	return func(c echo.Context) error {
		if state == nil {
			return c.JSON(http.StatusOK, map[string]interface{}{})
		}
		snapshot, err := state.State(c.Request().Context())
		if err != nil {
			common.Logger.WithFields(common.ErrorFields(err, "state")).Error("failed to build state snapshot")
			return c.String(http.StatusInternalServerError, "failed to build state snapshot")
		}
		return c.JSON(http.StatusOK, snapshot)
	}
}

// Start begins serving on addr (host:port). Blocks until the listener
// fails or is closed by Shutdown.
func (s *Server) Start(addr string) error {
	err := s.echo.Start(addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
