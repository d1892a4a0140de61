package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/ecowitt2mqtt/internal/domain"
	"github.com/couchcryptid/ecowitt2mqtt/internal/observability"
	"github.com/couchcryptid/ecowitt2mqtt/internal/pipeline"
)

// Processor handles one gateway payload and reports whether its sinks are ready.
type Processor interface {
	sharedobs.ReadinessChecker
	Process(ctx context.Context, payload domain.Payload) (domain.Reading, error)
}

// Server accepts gateway pushes and exposes health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	processor  Processor
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewServer creates an HTTP server with the ingest route at endpoint plus
// /healthz, /readyz, and /metrics.
func NewServer(addr, endpoint string, processor Processor, logger *slog.Logger, metrics *observability.Metrics) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(logger))

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      engine,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		engine:    engine,
		processor: processor,
		logger:    logger,
		metrics:   metrics,
	}

	engine.POST(endpoint, s.handleIngest)
	engine.GET("/healthz", gin.WrapF(sharedobs.LivenessHandler()))
	engine.GET("/readyz", gin.WrapF(sharedobs.ReadinessHandler(processor)))
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// handleIngest answers 204 once the payload has been calculated, even when a
// publisher failed; the gateway has no use for delivery errors.
func (s *Server) handleIngest(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		s.metrics.PayloadsRejected.Inc()
		s.logger.Warn("malformed gateway payload", "remote", c.ClientIP(), "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
		return
	}

	payload := domain.ParsePayload(c.Request.PostForm)
	if _, err := s.processor.Process(c.Request.Context(), payload); err != nil {
		if errors.Is(err, pipeline.ErrMissingStation) {
			s.logger.Warn("rejected gateway payload", "remote", c.ClientIP(), "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Warn("payload accepted with publish errors", "station", payload.Station, "error", err)
	}
	c.Status(http.StatusNoContent)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
