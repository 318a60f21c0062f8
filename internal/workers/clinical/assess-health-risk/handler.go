// internal/workers/clinical/assess-health-risk/handler.go
package assesshealthrisk

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"health-risk-workers/internal/audit"
	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
	"health-risk-workers/internal/common/observability"
	"health-risk-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "assess-health-risk"

// Assessor runs one assessment over raw vitals.
type Assessor interface {
	Assess(ctx context.Context, raw map[string]interface{}) (*models.Assessment, error)
}

type Handler struct {
	config       *Config
	assessor     Assessor
	recorder     *audit.Recorder
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Assessor      Assessor
	Recorder      *audit.Recorder
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Assessor == nil {
		return nil, fmt.Errorf("%s requires an assessor", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		assessor:     opts.Assessor,
		recorder:     opts.Recorder,
		obs:          opts.Observability,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job)
	if err == nil {
		var output *Output
		output, err = h.Execute(ctx, input)
		if err == nil {
			h.completeJob(ctx, client, job, output)
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			h.obs.RecordJobProcessed(ctx, "completed")
			h.obs.RecordJobDuration(ctx, time.Since(start), "completed")
			return
		}
	}

	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, "failed")
	h.errorHandler.HandleJobError(ctx, client, job, stdErr)
}

func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	input := &Input{
		Vitals:         variables,
		CorrelationKey: strconv.FormatInt(job.GetProcessInstanceKey(), 10),
	}
	if h.config.VitalsVariable != "" {
		nested, ok := variables[h.config.VitalsVariable].(map[string]interface{})
		if !ok {
			return nil, errors.NewInputParsingFailedError(
				fmt.Errorf("variable %q is missing or not an object", h.config.VitalsVariable))
		}
		input.Vitals = nested
	}
	if patientID, ok := variables["patientId"].(string); ok {
		input.PatientID = patientID
	}
	return input, nil
}

// Execute assesses the vitals and records the result. Recording is best
// effort and never fails the job.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	a, err := h.assessor.Assess(ctx, input.Vitals)
	if err != nil {
		return nil, err
	}

	rec := audit.NewRecord(audit.SourceWorker, input.CorrelationKey, a)
	h.recorder.Record(ctx, rec)

	h.logger.Info("health risk assessed", map[string]interface{}{
		"assessmentId":   rec.ID,
		"patientId":      input.PatientID,
		"riskLevel":      a.RiskLevel,
		"ruleLevel":      a.RuleLevel,
		"confidence":     a.Confidence,
		"modelAvailable": a.ModelAvailable,
	})

	return &Output{
		AssessmentID:       rec.ID,
		RiskLevel:          a.RiskLevel,
		Confidence:         a.Confidence,
		ModelAvailable:     a.ModelAvailable,
		RequiresEscalation: a.RiskLevel == models.RiskHigh,
		Assessment:         a,
	}, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err.Error(),
		})
		return
	}
	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey":       job.GetKey(),
		"assessmentId": output.AssessmentID,
		"riskLevel":    output.RiskLevel,
	})
}
