// internal/workers/clinical/assess-health-risk/handler_test.go
package assesshealthrisk

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"health-risk-workers/internal/assessment"
	"health-risk-workers/internal/audit"
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

type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) Named(name string) logger.Logger {
	return tl
}

func newTestLogger(t *testing.T) logger.Logger {
	return &testLogger{t: t}
}

type fixedModel struct {
	out models.ModelOutput
	err error
}

func (m fixedModel) Predict(context.Context, models.VitalSnapshot) (models.ModelOutput, error) {
	return m.out, m.err
}

type recordingSink struct {
	records []audit.Record
}

func (s *recordingSink) Name() string { return "memory" }

func (s *recordingSink) Record(_ context.Context, rec audit.Record) error {
	s.records = append(s.records, rec)
	return nil
}

func createMockJob(key int64, variables map[string]interface{}) entities.Job {
	variablesJSON, _ := json.Marshal(variables)

	return entities.Job{ActivatedJob: &pb.ActivatedJob{
		Key:                key,
		Type:               TaskType,
		ProcessInstanceKey: key * 10,
		BpmnProcessId:      "patient-risk-screening",
		ElementId:          "Activity_AssessHealthRisk",
		CustomHeaders:      "{}",
		Worker:             "test-worker",
		Retries:            3,
		Variables:          string(variablesJSON),
	}}
}

func e2eVitals() map[string]interface{} {
	return map[string]interface{}{
		"Age": 45, "SystolicBP": 145, "DiastolicBP": 95,
		"BS": 12.5, "BodyTemp": 38.2, "HeartRate": 98,
	}
}

func newHandler(t *testing.T, model assessment.RiskModel, sink audit.Sink, custom *Config) *Handler {
	t.Helper()
	orch, err := assessment.NewOrchestrator(assessment.Options{
		Model:        model,
		ModelTimeout: 100 * time.Millisecond,
		Logger:       newTestLogger(t),
	})
	require.NoError(t, err)

	h, err := NewHandler(HandlerOptions{
		CustomConfig: custom,
		Assessor:     orch,
		Recorder:     audit.NewRecorder(newTestLogger(t), sink),
		Logger:       newTestLogger(t),
	})
	require.NoError(t, err)
	return h
}

// ==========================
// Configuration Tests
// ==========================

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: DefaultConfig()})
	assert.ErrorContains(t, err, "requires an assessor")

	bad := DefaultConfig()
	bad.Timeout = 0
	_, err = NewHandler(HandlerOptions{CustomConfig: bad, Assessor: &assessment.Orchestrator{}})
	assert.ErrorContains(t, err, "timeout must be positive")
}

func TestCreateConfigFromAppConfig(t *testing.T) {
	appCfg := &config.Config{Workers: map[string]config.WorkerConfig{
		TaskType: {Enabled: true, MaxJobsActive: 12, Timeout: 5000, MaxRetries: 2},
	}}
	cfg := createConfigFromAppConfig(appCfg, nil)
	assert.Equal(t, 12, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.MaxRetries)

	assert.Equal(t, DefaultConfig(), createConfigFromAppConfig(nil, nil))
}

// ==========================
// Input Parsing Tests
// ==========================

func TestParseInput_TopLevelVitals(t *testing.T) {
	h := newHandler(t, nil, nil, nil)
	vars := e2eVitals()
	vars["patientId"] = "p-7"

	input, err := h.parseInput(createMockJob(5, vars))
	require.NoError(t, err)
	assert.Equal(t, "p-7", input.PatientID)
	assert.Equal(t, "50", input.CorrelationKey)
	assert.Equal(t, 145.0, input.Vitals["SystolicBP"])
}

func TestParseInput_NestedVitals(t *testing.T) {
	custom := DefaultConfig()
	custom.VitalsVariable = "vitals"
	h := newHandler(t, nil, nil, custom)

	input, err := h.parseInput(createMockJob(1, map[string]interface{}{"vitals": e2eVitals()}))
	require.NoError(t, err)
	assert.Equal(t, 12.5, input.Vitals["BS"])

	_, err = h.parseInput(createMockJob(1, map[string]interface{}{"vitals": "n/a"}))
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputParsingFailed))
}

// ==========================
// Execution Tests
// ==========================

func TestExecute_HighRiskRequiresEscalation(t *testing.T) {
	sink := &recordingSink{}
	model := fixedModel{out: models.ModelOutput{
		Label:              models.RiskMid,
		ClassProbabilities: map[models.RiskLevel]float64{models.RiskLow: 0.1, models.RiskMid: 0.6, models.RiskHigh: 0.3},
	}}
	h := newHandler(t, model, sink, nil)

	input, err := h.parseInput(createMockJob(1, e2eVitals()))
	require.NoError(t, err)
	out, err := h.Execute(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, models.RiskHigh, out.RiskLevel)
	assert.True(t, out.RequiresEscalation)
	assert.True(t, out.ModelAvailable)
	require.Len(t, sink.records, 1)
	assert.Equal(t, out.AssessmentID, sink.records[0].ID)
	assert.Equal(t, audit.SourceWorker, sink.records[0].Source)
	assert.Equal(t, "10", sink.records[0].CorrelationKey)

	vars, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Contains(t, string(vars), `"vital_signs_analysis"`)
	assert.Contains(t, string(vars), `"requiresEscalation":true`)
}

func TestExecute_ModelDownStillCompletes(t *testing.T) {
	h := newHandler(t, fixedModel{err: stderrors.New("connection refused")}, nil, nil)

	out, err := h.Execute(context.Background(), &Input{Vitals: map[string]interface{}{
		"Age": 30, "SystolicBP": 115, "DiastolicBP": 75, "BS": 5.5, "BodyTemp": 36.8, "HeartRate": 72,
	}})
	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, out.RiskLevel)
	assert.Equal(t, assessment.FallbackConfidence, out.Confidence)
	assert.False(t, out.ModelAvailable)
	assert.False(t, out.RequiresEscalation)
}

func TestExecute_ValidationErrorIsNotRetried(t *testing.T) {
	h := newHandler(t, nil, nil, nil)
	vitals := e2eVitals()
	delete(vitals, "HeartRate")

	_, err := h.Execute(context.Background(), &Input{Vitals: vitals})
	require.Error(t, err)

	stdErr := errors.Normalize(err)
	assert.Equal(t, errors.ErrCodeVitalsValidationFailed, stdErr.Code)
	bpmnErr := errors.ConvertToBPMNError(stdErr)
	assert.Equal(t, 0, bpmnErr.Retries)
	assert.Equal(t, "HeartRate", bpmnErr.ErrorVariables["invalidField"])
}
