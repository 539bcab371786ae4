// Package api exposes a small read-only ops server: liveness plus the
// live per-channel meeting state.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/minutetrack/internal/engine"
)

// StatusProvider supplies channel snapshots; the engine implements it.
type StatusProvider interface {
	Status() []engine.ChannelStatus
}

// Server represents the API server.
type Server struct {
	echo   *echo.Echo
	port   int
	status StatusProvider
}

// NewServer creates a new API server.
func NewServer(port int, status StatusProvider) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Recover())

	server := &Server{
		echo:   e,
		port:   port,
		status: status,
	}
	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	v1 := s.echo.Group("/api/v1")
	v1.GET("/channels", s.getChannels)
}

// Start begins serving and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.echo.Shutdown(shutdownCtx)
}

func (s *Server) getChannels(c echo.Context) error {
	channels := s.status.Status()
	if channels == nil {
		channels = []engine.ChannelStatus{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"channels": channels,
	})
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
