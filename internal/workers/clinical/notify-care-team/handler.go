// internal/workers/clinical/notify-care-team/handler.go
package notifycareteam

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"health-risk-workers/internal/alerts"
	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
	"health-risk-workers/internal/common/observability"
	"health-risk-workers/internal/common/validation"
	"health-risk-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "notify-care-team"

// Sender delivers a care-team alert. *alerts.Notifier implements it.
type Sender interface {
	Enabled() bool
	Notify(ctx context.Context, alert alerts.Alert) (alerts.Delivery, error)
}

type Handler struct {
	config       *Config
	sender       Sender
	obs          *observability.Observability
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

type HandlerOptions struct {
	AppConfig     *config.Config
	CustomConfig  *Config
	Sender        Sender
	Observability *observability.Observability
	Logger        logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	cfg := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("%s requires a sender", TaskType)
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	return &Handler{
		config:       cfg,
		sender:       opts.Sender,
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

// parseInput reads the variables written by the assess-health-risk worker.
// The assessment variable round-trips through its JSON form, which does not
// carry model availability, so that comes from modelAvailable.
func (h *Handler) parseInput(job entities.Job) (*Input, error) {
	variables, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}

	if result := validation.ValidateInput(variables, InputSchema); !result.Valid {
		return nil, errors.NewInputParsingFailedError(
			fmt.Errorf("invalid variables: %s", strings.Join(result.GetErrorMessages(), "; ")))
	}
	data, err := json.Marshal(variables["assessment"])
	if err != nil {
		return nil, errors.NewInputParsingFailedError(err)
	}
	var a models.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, errors.NewInputParsingFailedError(fmt.Errorf("variable \"assessment\": %w", err))
	}
	a.ModelAvailable, _ = variables["modelAvailable"].(bool)

	input := &Input{
		Assessment:     &a,
		CorrelationKey: strconv.FormatInt(job.GetProcessInstanceKey(), 10),
	}
	input.AssessmentID, _ = variables["assessmentId"].(string)
	input.PatientID, _ = variables["patientId"].(string)
	input.ForceNotify, _ = variables["forceNotify"].(bool)
	return input, nil
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	level := input.Assessment.RiskLevel
	if !input.ForceNotify && level.Severity() < h.config.MinRiskLevel.Severity() {
		return h.skip(input, fmt.Sprintf("risk level %s is below %s", level, h.config.MinRiskLevel)), nil
	}
	if !h.sender.Enabled() {
		return h.skip(input, "no alert channels configured"), nil
	}

	delivery, err := h.sender.Notify(ctx, alerts.Alert{
		AssessmentID:   input.AssessmentID,
		PatientID:      input.PatientID,
		CorrelationKey: input.CorrelationKey,
		Assessment:     input.Assessment,
	})
	if err != nil {
		return nil, err
	}

	channels := make([]string, 0, len(delivery))
	for ch := range delivery {
		channels = append(channels, ch)
	}
	sort.Strings(channels)

	h.logger.Info("care team notified", map[string]interface{}{
		"assessmentId": input.AssessmentID,
		"riskLevel":    level,
		"channels":     channels,
	})

	return &Output{
		NotificationStatus: StatusSent,
		Channels:           channels,
		MessageIDs:         delivery,
	}, nil
}

func (h *Handler) skip(input *Input, reason string) *Output {
	h.logger.Info("care team notification skipped", map[string]interface{}{
		"assessmentId": input.AssessmentID,
		"reason":       reason,
	})
	return &Output{NotificationStatus: StatusSkipped, Reason: reason}
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
		"jobKey":             job.GetKey(),
		"notificationStatus": output.NotificationStatus,
	})
}
