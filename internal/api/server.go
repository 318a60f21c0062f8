// Package api serves risk assessments over HTTP next to the job workers.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"health-risk-workers/internal/alerts"
	"health-risk-workers/internal/audit"
	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/observability"
	"health-risk-workers/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Assessor runs one assessment over raw vitals.
type Assessor interface {
	Assess(ctx context.Context, raw map[string]interface{}) (*models.Assessment, error)
}

// ModelRegistry is the part of the model registry the API exposes.
type ModelRegistry interface {
	Reload(ctx context.Context) error
	Ready() bool
	Version() string
	LoadedAt() time.Time
}

// Escalator alerts the care team about a high-risk assessment.
type Escalator interface {
	Enabled() bool
	Notify(ctx context.Context, alert alerts.Alert) (alerts.Delivery, error)
}

// AssessmentStore reads recorded assessments back.
type AssessmentStore interface {
	Get(ctx context.Context, id string) (*audit.StoredAssessment, error)
}

// HealthChecker is a dependency reported by /ready.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc func(ctx context.Context) error

func (f CheckFunc) Ping(ctx context.Context) error { return f(ctx) }

// Options wires the server. Only Assessor is required; leave the other
// interfaces nil (not a typed nil pointer) to disable them.
type Options struct {
	ServiceName   string
	Assessor      Assessor
	Models        ModelRegistry
	Recorder      *audit.Recorder
	Escalator     Escalator
	Store         AssessmentStore
	Checks        map[string]HealthChecker
	Observability *observability.Observability
	Logger        logger.Logger
}

type Server struct {
	opts   Options
	engine *gin.Engine
	srv    *http.Server
	logger logger.Logger
}

func NewServer(opts Options) (*Server, error) {
	if opts.Assessor == nil {
		return nil, fmt.Errorf("api server requires an assessor")
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "health-risk-workers"
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	s := &Server{opts: opts, logger: log.Named("api")}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), s.accessLog())

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	apiGroup.Use(limitBodySize(64 << 10))
	apiGroup.POST("/predict", s.predict)
	apiGroup.POST("/model/reload", s.reloadModel)
	apiGroup.GET("/assessments/:id", s.getAssessment)

	return router
}

// Handler exposes the router for tests and custom listeners.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start listens on cfg.Address in the background. Listener errors other
// than a clean shutdown are logged.
func (s *Server) Start(cfg config.HTTPConfig) {
	s.srv = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       config.GetDuration(cfg.ReadTimeout),
		WriteTimeout:      config.GetDuration(cfg.WriteTimeout),
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
	s.logger.Info("http server listening", map[string]interface{}{"address": cfg.Address})
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
