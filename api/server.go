// Package api exposes the operations HTTP surface: health, run status, manual
// runs and schedule management.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"newsdesk/schedule"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
)

// RunService starts runs for registered clients
type RunService interface {
	RunClient(ctx context.Context, clientID string) (string, error)
}

// StatusSource reports active and recent runs
type StatusSource interface {
	Status() types.StatusResponse
}

// ScheduleService rebuilds and lists installed triggers
type ScheduleService interface {
	Rebuild(ctx context.Context) ([]error, error)
	Entries() []schedule.Entry
}

// Deps are the services the routes call into
type Deps struct {
	Runs     RunService
	Status   StatusSource
	Schedule ScheduleService
	Log      *slog.Logger
}

// NewRouter constructs a Gin engine with registered routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log))

	RegisterHealthRoutes(r)
	RegisterRunRoutes(r, d.Runs, d.Status)
	RegisterScheduleRoutes(r, d.Schedule)
	return r
}

// requestLogger logs one line per request at debug level
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Server owns the HTTP listener
type Server struct {
	httpServer *http.Server
	log        *slog.Logger
}

func NewServer(port string, d Deps) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              ":" + port,
			Handler:           NewRouter(d),
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: d.Log,
	}
}

// Start serves in the background. Listener failures are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errc := make(chan error, 1)
	s.log.Info("starting ops api", "addr", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	return errc
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down ops api")
	return s.httpServer.Shutdown(ctx)
}
