package assessment

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync/atomic"
	"testing"
	"time"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	out   models.ModelOutput
	err   error
	delay time.Duration
	calls atomic.Int32
}

func (m *fakeModel) Predict(ctx context.Context, _ models.VitalSnapshot) (models.ModelOutput, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		// ignores ctx on purpose
		time.Sleep(m.delay)
	}
	return m.out, m.err
}

func newOrchestrator(t *testing.T, model RiskModel) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Options{
		Model:        model,
		ModelTimeout: 50 * time.Millisecond,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return o
}

func normalRaw() map[string]interface{} {
	return map[string]interface{}{
		"Age": 30.0, "SystolicBP": 115.0, "DiastolicBP": 75.0,
		"BS": 5.5, "BodyTemp": 36.8, "HeartRate": 72.0,
	}
}

func TestAssess_EndToEnd(t *testing.T) {
	model := &fakeModel{out: output(models.RiskMid, 0.1, 0.6, 0.3)}
	o := newOrchestrator(t, model)

	a, err := o.Assess(context.Background(), validRaw())
	require.NoError(t, err)

	bp, _ := a.Status(models.VitalBloodPressure)
	bs, _ := a.Status(models.VitalBloodSugar)
	temp, _ := a.Status(models.VitalTemperature)
	hr, _ := a.Status(models.VitalHeartRate)
	assert.Equal(t, models.StatusHigh, bp.Status)
	assert.Equal(t, "145/95", bp.Value)
	assert.Equal(t, models.StatusHigh, bs.Status)
	assert.Equal(t, models.StatusElevated, temp.Status)
	assert.Equal(t, models.StatusNormal, hr.Status)

	assert.Equal(t, models.RiskHigh, a.RuleLevel)
	assert.Equal(t, models.RiskHigh, a.RiskLevel)
	assert.True(t, a.ModelAvailable)
	// rules override the mid label; probability of high is used
	assert.InDelta(t, 0.3, a.Confidence, 1e-9)
	assert.Contains(t, a.Recommendations.ImmediateActions, "Seek emergency medical attention for high blood pressure")
	assert.Equal(t, followUpCare[models.RiskHigh], a.Recommendations.FollowUpCare)
}

func TestAssess_ModelFailureFallsBack(t *testing.T) {
	o := newOrchestrator(t, &fakeModel{err: stderrors.New("model file missing")})

	a, err := o.Assess(context.Background(), normalRaw())
	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, a.RiskLevel)
	assert.Equal(t, FallbackConfidence, a.Confidence)
	assert.False(t, a.ModelAvailable)
	assert.Equal(t, "rules", a.Source())
}

func TestAssess_ModelTimeoutFallsBack(t *testing.T) {
	model := &fakeModel{out: output(models.RiskHigh, 0, 0, 1), delay: 300 * time.Millisecond}
	o := newOrchestrator(t, model)

	start := time.Now()
	a, err := o.Assess(context.Background(), normalRaw())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.Equal(t, models.RiskLow, a.RiskLevel)
	assert.Equal(t, FallbackConfidence, a.Confidence)
}

func TestAssess_InvalidModelOutputFallsBack(t *testing.T) {
	o := newOrchestrator(t, &fakeModel{out: output(models.RiskHigh, 0.5, 0.5, 0.5)})

	a, err := o.Assess(context.Background(), normalRaw())
	require.NoError(t, err)
	assert.False(t, a.ModelAvailable)
	assert.Equal(t, models.RiskLow, a.RiskLevel)
}

func TestAssess_NoModelConfigured(t *testing.T) {
	a, err := newOrchestrator(t, nil).Assess(context.Background(), normalRaw())
	require.NoError(t, err)
	assert.Equal(t, FallbackConfidence, a.Confidence)
}

func TestAssess_ValidationShortCircuits(t *testing.T) {
	model := &fakeModel{out: output(models.RiskLow, 1, 0, 0)}
	o := newOrchestrator(t, model)

	raw := normalRaw()
	raw["HeartRate"] = 400.0
	a, err := o.Assess(context.Background(), raw)
	assert.Nil(t, a)
	assert.True(t, errors.IsCode(err, errors.ErrCodeVitalsValidationFailed))
	assert.Equal(t, int32(0), model.calls.Load())
}

func TestAssess_Idempotent(t *testing.T) {
	o := newOrchestrator(t, &fakeModel{out: output(models.RiskMid, 0.1, 0.6, 0.3)})

	first, err := o.Assess(context.Background(), validRaw())
	require.NoError(t, err)
	second, err := o.Assess(context.Background(), validRaw())
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestAssess_ConfidenceInRange(t *testing.T) {
	snaps := []map[string]interface{}{normalRaw(), validRaw()}
	outs := []models.ModelOutput{
		output(models.RiskLow, 1, 0, 0),
		output(models.RiskMid, 0.2, 0.5, 0.3),
		output(models.RiskHigh, 0, 0.1, 0.9),
	}
	for _, raw := range snaps {
		for _, out := range outs {
			a, err := newOrchestrator(t, &fakeModel{out: out}).Assess(context.Background(), raw)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, a.Confidence, 0.0)
			assert.LessOrEqual(t, a.Confidence, 1.0)
			assert.GreaterOrEqual(t, a.RiskLevel.Severity(), a.RuleLevel.Severity())
		}
	}
}

func TestAssessSnapshot_ValidatesTypedInput(t *testing.T) {
	o := newOrchestrator(t, nil)
	_, err := o.AssessSnapshot(context.Background(), models.VitalSnapshot{Age: 30, SystolicBP: 10})
	assert.True(t, errors.IsCode(err, errors.ErrCodeVitalsValidationFailed))
}

func TestNewOrchestrator_RejectsMalformedThresholds(t *testing.T) {
	table := DefaultThresholds()
	table.HeartRate.Bands = table.HeartRate.Bands[:2]

	_, err := NewOrchestrator(Options{Thresholds: table})
	assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdConfigInvalid))

	_, err = ThresholdsFromConfig(config.ThresholdsConfig{"systolic": nil})
	assert.Error(t, err)
}
