// internal/workers/clinical/notify-care-team/handler_test.go
package notifycareteam

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"health-risk-workers/internal/alerts"
	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/pb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helpers
// ==========================

type fakeSender struct {
	enabled bool
	err     error
	sent    []alerts.Alert
}

func (f *fakeSender) Enabled() bool { return f.enabled }

func (f *fakeSender) Notify(_ context.Context, alert alerts.Alert) (alerts.Delivery, error) {
	f.sent = append(f.sent, alert)
	if f.err != nil {
		return nil, f.err
	}
	return alerts.Delivery{alerts.ChannelSNS: "sns-1", alerts.ChannelSES: "ses-1"}, nil
}

func createMockJob(t *testing.T, key int64, variables map[string]interface{}) entities.Job {
	t.Helper()
	variablesJSON, err := json.Marshal(variables)
	require.NoError(t, err)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: 4242,
		BpmnProcessId:      "patient-risk-screening",
		ElementId:          "Activity_NotifyCareTeam",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

// assessmentVariable returns an assessment in the shape the assess worker
// writes into process variables.
func assessmentVariable(t *testing.T, level models.RiskLevel) map[string]interface{} {
	t.Helper()
	a := models.Assessment{
		RiskLevel:  level,
		Confidence: 0.88,
		VitalStatuses: []models.VitalStatus{
			{Vital: models.VitalBloodPressure, Value: "145/95", Status: models.StatusHigh, Detail: "Stage 2 hypertension"},
			{Vital: models.VitalTemperature, Value: "38.2", Status: models.StatusHigh, Detail: "Fever"},
		},
		Recommendations: models.Recommendations{
			ImmediateActions: []string{"Contact your healthcare provider"},
		},
	}
	data, err := json.Marshal(a)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func newHandler(t *testing.T, sender Sender) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		CustomConfig: DefaultConfig(),
		Sender:       sender,
		Logger:       logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Configuration Tests
// ==========================

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
	assert.ErrorContains(t, err, "requires a sender")

	bad := DefaultConfig()
	bad.MinRiskLevel = "severe"
	_, err = NewHandler(HandlerOptions{CustomConfig: bad, Sender: &fakeSender{}})
	assert.ErrorContains(t, err, "min_risk_level")
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 10000, MaxRetries: 5},
	}}
	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, models.RiskHigh, cfg.MinRiskLevel)
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput(t *testing.T) {
	h := newHandler(t, &fakeSender{enabled: true})
	job := createMockJob(t, 1, map[string]interface{}{
		"assessmentId":   "a-1",
		"patientId":      "p-9",
		"modelAvailable": true,
		"assessment":     assessmentVariable(t, models.RiskHigh),
	})

	input, err := h.parseInput(job)
	require.NoError(t, err)
	assert.Equal(t, "a-1", input.AssessmentID)
	assert.Equal(t, "p-9", input.PatientID)
	assert.Equal(t, "4242", input.CorrelationKey)
	assert.False(t, input.ForceNotify)
	assert.Equal(t, models.RiskHigh, input.Assessment.RiskLevel)
	assert.True(t, input.Assessment.ModelAvailable)
	require.Len(t, input.Assessment.VitalStatuses, 2)
	assert.Equal(t, models.VitalBloodPressure, input.Assessment.VitalStatuses[0].Vital)
}

func TestParseInput_Invalid(t *testing.T) {
	h := newHandler(t, &fakeSender{enabled: true})

	_, err := h.parseInput(createMockJob(t, 1, map[string]interface{}{"assessmentId": "a-1"}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputParsingFailed))

	_, err = h.parseInput(createMockJob(t, 1, map[string]interface{}{
		"assessment": map[string]interface{}{"risk_level": "extreme"},
	}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputParsingFailed))

	_, err = h.parseInput(createMockJob(t, 1, map[string]interface{}{
		"patientId":  42,
		"assessment": assessmentVariable(t, models.RiskHigh),
	}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputParsingFailed))
	assert.ErrorContains(t, err, "patientId")
}

// ==========================
// Execution Tests
// ==========================

func TestExecute_HighRiskSends(t *testing.T) {
	sender := &fakeSender{enabled: true}
	h := newHandler(t, sender)

	out, err := h.Execute(context.Background(), &Input{
		AssessmentID: "a-1",
		Assessment:   &models.Assessment{RiskLevel: models.RiskHigh, Confidence: 0.9},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.NotificationStatus)
	assert.Equal(t, []string{alerts.ChannelSES, alerts.ChannelSNS}, out.Channels)
	assert.Equal(t, "sns-1", out.MessageIDs[alerts.ChannelSNS])
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "a-1", sender.sent[0].AssessmentID)
}

func TestExecute_SkipsBelowThreshold(t *testing.T) {
	sender := &fakeSender{enabled: true}
	h := newHandler(t, sender)

	out, err := h.Execute(context.Background(), &Input{
		Assessment: &models.Assessment{RiskLevel: models.RiskMid},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.NotificationStatus)
	assert.Contains(t, out.Reason, "below high")
	assert.Empty(t, sender.sent)
}

func TestExecute_ForceNotify(t *testing.T) {
	sender := &fakeSender{enabled: true}
	h := newHandler(t, sender)

	out, err := h.Execute(context.Background(), &Input{
		ForceNotify: true,
		Assessment:  &models.Assessment{RiskLevel: models.RiskLow},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSent, out.NotificationStatus)
	assert.Len(t, sender.sent, 1)
}

func TestExecute_DisabledNotifierSkips(t *testing.T) {
	n := alerts.NewNotifier(config.AlertsConfig{}, nil, nil, logger.NewTestLogger(t))
	h := newHandler(t, n)

	out, err := h.Execute(context.Background(), &Input{
		Assessment: &models.Assessment{RiskLevel: models.RiskHigh},
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, out.NotificationStatus)
	assert.Equal(t, "no alert channels configured", out.Reason)
}

func TestExecute_SendFailureIsRetryable(t *testing.T) {
	sendErr := errors.NewAlertSendFailedError("sns,ses", stderrors.New("throttled"))
	h := newHandler(t, &fakeSender{enabled: true, err: sendErr})

	_, err := h.Execute(context.Background(), &Input{
		Assessment: &models.Assessment{RiskLevel: models.RiskHigh},
	})
	require.Error(t, err)
	bpmnErr := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, string(errors.ErrCodeAlertSendFailed), bpmnErr.Code)
	assert.Greater(t, bpmnErr.Retries, 0)
}
