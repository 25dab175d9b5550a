package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"panelcatalog/catalog"
	"panelcatalog/pipeline"
	"panelcatalog/quality"
	apperrors "panelcatalog/server/errors"
	"panelcatalog/server/middleware"
)

// Server is the operator HTTP API: start passes, inspect their diffs, run
// the consistency analyzer. It is an operator tool, not the marketplace
// surface.
type Server struct {
	engine   *gin.Engine
	passes   *PassService
	analyzer *quality.Analyzer
	metrics  *Metrics
}

// New assembles the gin engine and routes.
func New(pl *pipeline.Pipeline, analyzer *quality.Analyzer) *Server {
	metrics := NewMetrics()
	registry := prometheus.NewRegistry()
	metrics.Register(registry)

	s := &Server{
		engine:   gin.New(),
		passes:   NewPassService(pl, metrics),
		analyzer: analyzer,
		metrics:  metrics,
	}

	s.engine.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())

	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := s.engine.Group("/api")
	{
		api.POST("/passes", s.handleStartPass)
		api.GET("/passes/:id", s.handleGetPass)
		api.POST("/ingest", s.handleIngest(pl))
		api.GET("/quality/:catalogue", s.handleQuality)
	}

	return s
}

// Run serves until the listener fails.
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

// Handler exposes the engine for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// startPassRequest is the POST /api/passes body.
type startPassRequest struct {
	Selector pipeline.Selector `json:"selector"`
	Stages   pipeline.StageSet `json:"stages"`
	Mode     pipeline.Mode     `json:"mode"`
}

func (s *Server) handleStartPass(c *gin.Context) {
	var req startPassRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, apperrors.NewValidationError("invalid request body", err))
		return
	}
	if !req.Stages.Dedup && !req.Stages.Classify && !req.Stages.Reindex {
		req.Stages = pipeline.AllStages()
	}
	if req.Mode == "" {
		req.Mode = pipeline.ModeDryRun
	}

	id, err := s.passes.StartPass(req.Selector, req.Stages, req.Mode)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"pass_id": id})
}

func (s *Server) handleGetPass(c *gin.Context) {
	task, err := s.passes.GetTask(c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleIngest(pl *pipeline.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var records []catalog.CandidateRecord
		if err := c.ShouldBindJSON(&records); err != nil {
			abortWithError(c, apperrors.NewValidationError("invalid candidate records", err))
			return
		}

		result, err := pl.Ingest(c.Request.Context(), records)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func (s *Server) handleQuality(c *gin.Context) {
	report, err := s.analyzer.AnalyzeCatalogue(c.Request.Context(), c.Param("catalogue"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// abortWithError maps engine errors onto HTTP responses.
func abortWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		c.AbortWithStatusJSON(appErr.StatusCode(), gin.H{
			"error": appErr.Message,
			"kind":  appErr.Kind,
		})
		return
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
