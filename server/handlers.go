package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/obskit/component"
	apperrors "github.com/kbukum/obskit/errors"
	"github.com/kbukum/obskit/logging"
	"github.com/kbukum/obskit/metrics"
	"github.com/kbukum/obskit/trace"
)

func (s *Server) registerRoutes() {
	s.engine.GET("/metrics", s.handlePrometheus)
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api/v1")
	api.GET("/traces", s.handleSearchTraces)
	api.GET("/traces/:id", s.handleGetTrace)
	api.GET("/metrics", s.handleQueryMetrics)
	api.GET("/logs", s.handleQueryLogs)
	api.GET("/logs/export", s.handleExportLogs)
	api.GET("/summary", s.handleSummary)
}

// handlePrometheus serves the text exposition format for scrapers.
func (s *Server) handlePrometheus(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	c.String(http.StatusOK, s.manager.ToPrometheus())
}

func (s *Server) handleHealth(c *gin.Context) {
	health := s.manager.GetHealth(c.Request.Context())
	status := http.StatusOK
	if health.Status != component.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, health)
}

func (s *Server) handleSearchTraces(c *gin.Context) {
	q := trace.Query{
		ServiceName:   c.Query("service"),
		OperationName: c.Query("operation"),
	}
	var err error
	if q.MinDuration, err = parseDuration(c.Query("min_duration")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("min_duration", err.Error()))
		return
	}
	if q.MaxDuration, err = parseDuration(c.Query("max_duration")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("max_duration", err.Error()))
		return
	}
	if q.StartTime, err = parseTime(c.Query("start")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("start", err.Error()))
		return
	}
	if q.EndTime, err = parseTime(c.Query("end")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("end", err.Error()))
		return
	}
	if q.Limit, err = parseInt(c.Query("limit")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("limit", err.Error()))
		return
	}

	traces := s.manager.SearchTraces(q)
	c.JSON(http.StatusOK, gin.H{"traces": traces, "count": len(traces)})
}

func (s *Server) handleGetTrace(c *gin.Context) {
	id := c.Param("id")
	tr := s.manager.GetTrace(id)
	if tr == nil {
		abortWithError(c, apperrors.NotFound("trace", id))
		return
	}
	c.JSON(http.StatusOK, tr)
}

func (s *Server) handleQueryMetrics(c *gin.Context) {
	q := metrics.Query{
		Name:        c.Query("name"),
		Aggregation: metrics.Aggregation(c.Query("aggregation")),
	}
	if q.Name == "" {
		abortWithError(c, apperrors.InvalidQuery("name", "metric name is required"))
		return
	}
	var err error
	if q.Step, err = parseDuration(c.Query("step")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("step", err.Error()))
		return
	}
	if q.StartTime, err = parseTime(c.Query("start")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("start", err.Error()))
		return
	}
	if q.EndTime, err = parseTime(c.Query("end")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("end", err.Error()))
		return
	}
	if labels := c.QueryMap("label"); len(labels) > 0 {
		q.Labels = labels
	}

	points, err := s.manager.QueryMetrics(q)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": q.Name, "points": points, "count": len(points)})
}

func (s *Server) handleQueryLogs(c *gin.Context) {
	q := logging.Query{
		TraceID:      c.Query("trace_id"),
		SpanID:       c.Query("span_id"),
		ServiceName:  c.Query("service"),
		BodyContains: c.Query("contains"),
	}
	if raw := c.Query("severity"); raw != "" {
		sev := logging.ParseSeverity(raw)
		q.Severity = &sev
	}
	var err error
	if q.StartTime, err = parseTime(c.Query("start")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("start", err.Error()))
		return
	}
	if q.EndTime, err = parseTime(c.Query("end")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("end", err.Error()))
		return
	}
	if q.Limit, err = parseInt(c.Query("limit")); err != nil {
		abortWithError(c, apperrors.InvalidQuery("limit", err.Error()))
		return
	}

	records := s.manager.QueryLogs(q)
	c.JSON(http.StatusOK, gin.H{"logs": records, "count": len(records)})
}

// handleExportLogs streams the whole buffer as newline-delimited JSON.
func (s *Server) handleExportLogs(c *gin.Context) {
	c.Header("Content-Type", "application/x-ndjson")
	c.String(http.StatusOK, s.manager.ToNDJSON())
}

func (s *Server) handleSummary(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.GetSummary())
}

// abortWithError maps AppError codes to their HTTP status; anything
// else is a 500. Wrapped AppErrors are unwrapped first.
func abortWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.Internal(err)
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus, gin.H{"error": appErr})
}

func parseDuration(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func parseInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
