package assessment

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
	"health-risk-workers/internal/common/observability"
	"health-risk-workers/internal/models"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// DefaultModelTimeout bounds a single inference when Options leaves it unset.
const DefaultModelTimeout = 2 * time.Second

// RiskModel is the classifier capability the orchestrator depends on.
type RiskModel interface {
	Predict(ctx context.Context, snapshot models.VitalSnapshot) (models.ModelOutput, error)
}

// Fallback reasons, also used as metric label values.
const (
	fallbackNotConfigured = "not_configured"
	fallbackTimeout       = "timeout"
	fallbackCancelled     = "cancelled"
	fallbackError         = "error"
	fallbackInvalidOutput = "invalid_output"
)

type Options struct {
	Thresholds    ThresholdTable
	Envelopes     []Envelope
	Model         RiskModel
	ModelTimeout  time.Duration
	Logger        logger.Logger
	Observability *observability.Observability
}

// Orchestrator runs validate, classify, predict, fuse and recommend for one
// snapshot. It holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	validator  *VitalValidator
	classifier *ThresholdClassifier
	model      RiskModel
	timeout    time.Duration
	logger     logger.Logger
	obs        *observability.Observability
}

// NewOrchestrator validates the threshold table and envelopes. A zero
// Thresholds value selects DefaultThresholds.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	table := opts.Thresholds
	if len(table.Systolic.Bands) == 0 && len(table.Diastolic.Bands) == 0 &&
		len(table.BloodSugar.Bands) == 0 && len(table.Temperature.Bands) == 0 &&
		len(table.HeartRate.Bands) == 0 {
		table = DefaultThresholds()
	}
	classifier, err := NewThresholdClassifier(table)
	if err != nil {
		return nil, err
	}

	envelopes := opts.Envelopes
	if len(envelopes) == 0 {
		envelopes = DefaultEnvelopes
	}
	validator, err := NewVitalValidator(envelopes)
	if err != nil {
		return nil, fmt.Errorf("build vital validator: %w", err)
	}

	timeout := opts.ModelTimeout
	if timeout <= 0 {
		timeout = DefaultModelTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	return &Orchestrator{
		validator:  validator,
		classifier: classifier,
		model:      opts.Model,
		timeout:    timeout,
		logger:     log.Named("assessment"),
		obs:        opts.Observability,
	}, nil
}

// Assess validates raw input and produces an assessment. Validation errors
// are returned as is; model failures never are.
func (o *Orchestrator) Assess(ctx context.Context, raw map[string]interface{}) (*models.Assessment, error) {
	snapshot, err := o.validator.Validate(raw)
	if err != nil {
		return nil, err
	}
	return o.assess(ctx, snapshot), nil
}

// AssessSnapshot is Assess for already typed input.
func (o *Orchestrator) AssessSnapshot(ctx context.Context, snapshot models.VitalSnapshot) (*models.Assessment, error) {
	if err := o.validator.ValidateSnapshot(snapshot); err != nil {
		return nil, err
	}
	return o.assess(ctx, snapshot), nil
}

func (o *Orchestrator) assess(ctx context.Context, snapshot models.VitalSnapshot) *models.Assessment {
	start := time.Now()
	ctx, span := o.obs.StartSpan(ctx, "assessment.assess")
	defer span.End()

	var (
		statuses []models.VitalStatus
		output   models.ModelOutput
		reason   string
		modelErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		statuses = o.classifier.Classify(snapshot)
		return nil
	})
	g.Go(func() error {
		output, reason, modelErr = o.predict(ctx, snapshot)
		return nil
	})
	_ = g.Wait()

	a := &models.Assessment{
		VitalStatuses: statuses,
		RuleLevel:     RuleLevel(statuses),
		Input:         snapshot,
	}
	if modelErr == nil {
		a.RiskLevel, a.Confidence = Fuse(statuses, output)
		a.ModelAvailable = true
		a.ModelVersion = output.ModelVersion
	} else {
		o.logger.Warn("risk model unavailable, using rule-only assessment", map[string]interface{}{
			"reason": reason,
			"error":  modelErr.Error(),
		})
		metrics.RiskModelFallbacks.WithLabelValues(reason).Inc()
		a.RiskLevel, a.Confidence = FuseRulesOnly(statuses)
	}
	a.Recommendations = Recommend(a.RiskLevel, statuses)

	metrics.RiskAssessments.WithLabelValues(string(a.RiskLevel), a.Source()).Inc()
	metrics.RiskAssessmentDuration.WithLabelValues(a.Source()).Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.String("risk.level", string(a.RiskLevel)),
		attribute.String("risk.rule_level", string(a.RuleLevel)),
		attribute.Bool("risk.model_available", a.ModelAvailable),
	)

	o.logger.Debug("assessment complete", map[string]interface{}{
		"riskLevel":  a.RiskLevel,
		"ruleLevel":  a.RuleLevel,
		"confidence": a.Confidence,
		"source":     a.Source(),
	})
	return a
}

type prediction struct {
	out models.ModelOutput
	err error
}

// predict calls the model under the configured deadline. The call runs in
// its own goroutine so a model that ignores ctx cannot stall the request.
func (o *Orchestrator) predict(ctx context.Context, snapshot models.VitalSnapshot) (models.ModelOutput, string, error) {
	if o.model == nil {
		return models.ModelOutput{}, fallbackNotConfigured,
			errors.NewModelUnavailableError(stderrors.New("no risk model configured"))
	}

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	done := make(chan prediction, 1)
	go func() {
		out, err := o.model.Predict(ctx, snapshot)
		done <- prediction{out: out, err: err}
	}()

	select {
	case p := <-done:
		if p.err != nil {
			if errors.IsCode(p.err, errors.ErrCodeModelTimeout) {
				return models.ModelOutput{}, fallbackTimeout, p.err
			}
			return models.ModelOutput{}, fallbackError, errors.NewModelUnavailableError(p.err)
		}
		if err := p.out.Validate(); err != nil {
			return models.ModelOutput{}, fallbackInvalidOutput, errors.NewModelUnavailableError(err)
		}
		return p.out, "", nil
	case <-ctx.Done():
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return models.ModelOutput{}, fallbackTimeout, errors.NewModelTimeoutError(o.timeout)
		}
		return models.ModelOutput{}, fallbackCancelled, errors.NewModelUnavailableError(ctx.Err())
	}
}
