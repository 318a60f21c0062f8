package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"time"

	"health-risk-workers/internal/alerts"
	"health-risk-workers/internal/audit"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/models"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const readyCheckTimeout = 2 * time.Second

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": s.opts.ServiceName})
}

// ready fails when the model has never loaded or any dependency check fails.
// A missing model is not fatal for scoring, but the instance should not take
// traffic before its first load.
func (s *Server) ready(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if m := s.opts.Models; m != nil {
		if m.Ready() {
			checks["model"] = "ok"
		} else {
			checks["model"] = "not loaded"
			healthy = false
		}
	}

	for name, checker := range s.opts.Checks {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyCheckTimeout)
		err := checker.Ping(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": checks})
}

func (s *Server) predict(c *gin.Context) {
	ctx, span := s.opts.Observability.StartSpan(c.Request.Context(), "api.predict")
	defer span.End()

	var raw map[string]interface{}
	if err := c.ShouldBindJSON(&raw); err != nil {
		s.writeError(c, errors.NewInputParsingFailedError(err))
		return
	}

	a, err := s.opts.Assessor.Assess(ctx, raw)
	if err != nil {
		s.writeError(c, err)
		return
	}

	rec := audit.NewRecord(audit.SourceAPI, c.GetString("requestId"), a)
	s.opts.Recorder.Record(ctx, rec)

	patientID, _ := raw["patient_id"].(string)
	notified := s.escalate(ctx, rec, patientID)

	body, err := envelope(rec)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if a.RiskLevel == models.RiskHigh {
		body["care_team_notified"] = notified
	}

	span.SetAttributes(
		attribute.String("assessment.id", rec.ID),
		attribute.Bool("care_team.notified", notified),
	)
	c.JSON(http.StatusOK, body)
}

// escalate alerts the care team for high-risk results. Failures are logged
// and never fail the request.
func (s *Server) escalate(ctx context.Context, rec audit.Record, patientID string) bool {
	if rec.Assessment.RiskLevel != models.RiskHigh || s.opts.Escalator == nil || !s.opts.Escalator.Enabled() {
		return false
	}
	_, err := s.opts.Escalator.Notify(ctx, alerts.Alert{
		AssessmentID:   rec.ID,
		PatientID:      patientID,
		CorrelationKey: rec.CorrelationKey,
		Assessment:     rec.Assessment,
	})
	if err != nil {
		s.logger.Warn("care team escalation failed", map[string]interface{}{
			"assessmentId": rec.ID,
			"error":        err.Error(),
		})
		return false
	}
	return true
}

// envelope is the assessment JSON plus the fields identifying this run.
func envelope(rec audit.Record) (gin.H, error) {
	data, err := json.Marshal(rec.Assessment)
	if err != nil {
		return nil, err
	}
	var body gin.H
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, err
	}
	body["assessment_id"] = rec.ID
	body["timestamp"] = rec.CreatedAt.Format(time.RFC3339Nano)
	body["model_available"] = rec.Assessment.ModelAvailable
	if v := rec.Assessment.ModelVersion; v != "" {
		body["model_version"] = v
	}
	return body, nil
}

func (s *Server) reloadModel(c *gin.Context) {
	if s.opts.Models == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model registry not configured"})
		return
	}
	if err := s.opts.Models.Reload(c.Request.Context()); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message":       "Model reloaded successfully",
		"model_version": s.opts.Models.Version(),
		"loaded_at":     s.opts.Models.LoadedAt().Format(time.RFC3339),
	})
}

func (s *Server) getAssessment(c *gin.Context) {
	if s.opts.Store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "assessment store not configured"})
		return
	}
	stored, err := s.opts.Store.Get(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, audit.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "assessment not found"})
		return
	}
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stored)
}

func (s *Server) writeError(c *gin.Context, err error) {
	stdErr := errors.Normalize(err)

	status := http.StatusInternalServerError
	switch stdErr.Code {
	case errors.ErrCodeVitalsValidationFailed, errors.ErrCodeInputParsingFailed:
		status = http.StatusBadRequest
	case errors.ErrCodeDatabaseConnectionFailed, errors.ErrCodeModelLoadFailed:
		status = http.StatusServiceUnavailable
	}

	body := gin.H{"error": stdErr.Message, "code": stdErr.Code}
	if stdErr.Details != "" {
		body["details"] = stdErr.Details
	}
	if field, ok := stdErr.Metadata["field"]; ok {
		body["field"] = field
		if bound, _ := stdErr.Metadata["bound"].(string); bound != "" {
			body["bound"] = bound
		}
	}

	fields := map[string]interface{}{
		"route":     c.FullPath(),
		"code":      stdErr.Code,
		"error":     stdErr.Error(),
		"requestId": c.GetString("requestId"),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", fields)
	} else {
		s.logger.Debug("request rejected", fields)
	}
	c.AbortWithStatusJSON(status, body)
}
