package collector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kerlexov/applog/pkg/config"
	"github.com/kerlexov/applog/pkg/metrics"
	"github.com/kerlexov/applog/pkg/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server receives remote batches and bulk uploads from applog clients and
// stores them.
type Server struct {
	config   *config.Config
	storage  storage.Storage
	log      *zap.Logger
	metrics  *metrics.Collector
	registry *prometheus.Registry
	limiter  *ipLimiter
	router   *gin.Engine
	server   *http.Server
	now      func() time.Time
	newID    func() string
}

type Option func(*Server)

func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer wires middleware and routes. Gin's mode is left to the caller.
func NewServer(cfg *config.Config, store storage.Storage, opts ...Option) *Server {
	s := &Server{
		config:  cfg,
		storage: store,
		log:     zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}

	if cfg.Metrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		s.metrics = metrics.NewCollector(s.registry)
	}
	if cfg.RateLimit.Enabled {
		s.limiter = newIPLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.BurstSize)
	}

	router := gin.New()
	router.Use(s.recoveryMiddleware())
	router.Use(s.loggingMiddleware())
	router.Use(s.metricsMiddleware())
	router.Use(s.rateLimitMiddleware())
	router.Use(s.bodyLimitMiddleware())
	s.registerRoutes(router)
	s.router = router

	return s
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/health", s.handleHealthCheck)
	if s.registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	{
		v1.POST("/logs", s.handleIngestLogs)
		v1.POST("/uploads", s.handleMultipartUpload)
		v1.POST("/uploads/json", s.handleJSONUpload)
	}
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	if s.limiter != nil {
		go s.cleanupRoutine(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.Info("collector started", zap.Int("port", s.config.Server.Port))

	select {
	case err := <-errCh:
		return fmt.Errorf("collector server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.log.Info("collector shutting down")
	return s.server.Shutdown(shutdownCtx)
}

// cleanupRoutine drops rate limiter state for clients that went quiet
func (s *Server) cleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.limiter.cleanup(10 * time.Minute); removed > 0 {
				s.log.Debug("pruned idle rate limiters", zap.Int("count", removed))
			}
		}
	}
}
