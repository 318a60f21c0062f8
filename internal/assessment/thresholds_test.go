package assessment

import (
	"testing"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func normalSnapshot() models.VitalSnapshot {
	return models.VitalSnapshot{Age: 30, SystolicBP: 115, DiastolicBP: 75, BloodSugar: 5.5, BodyTemp: 36.8, HeartRate: 72}
}

func newClassifier(t *testing.T) *ThresholdClassifier {
	t.Helper()
	c, err := NewThresholdClassifier(DefaultThresholds())
	require.NoError(t, err)
	return c
}

func statusOf(t *testing.T, statuses []models.VitalStatus, v models.Vital) models.VitalStatus {
	t.Helper()
	for _, s := range statuses {
		if s.Vital == v {
			return s
		}
	}
	t.Fatalf("no status for %s", v)
	return models.VitalStatus{}
}

func TestDefaultThresholds_Valid(t *testing.T) {
	assert.NoError(t, DefaultThresholds().Validate())
}

func TestClassify_OneStatusPerVitalInOrder(t *testing.T) {
	statuses := newClassifier(t).Classify(normalSnapshot())
	require.Len(t, statuses, 4)
	for i, v := range models.VitalOrder {
		assert.Equal(t, v, statuses[i].Vital)
		assert.Equal(t, models.StatusNormal, statuses[i].Status)
		assert.NotEmpty(t, statuses[i].Detail)
	}
	assert.Equal(t, "115/75", statuses[0].Value)
	assert.Equal(t, "5.5", statuses[1].Value)
}

func TestClassify_BloodPressureBoundaries(t *testing.T) {
	tests := []struct {
		sys, dia float64
		want     models.Status
	}{
		{119, 79, models.StatusNormal},
		{120, 70, models.StatusElevated},
		{125, 84, models.StatusElevated},
		{130, 70, models.StatusHigh},
		{110, 85, models.StatusHigh},
		{180, 120, models.StatusHigh},
		{181, 120, models.StatusCrisis},
		{180, 121, models.StatusCrisis},
		{85, 70, models.StatusElevated},
	}
	c := newClassifier(t)
	for _, tt := range tests {
		snap := normalSnapshot()
		snap.SystolicBP, snap.DiastolicBP = tt.sys, tt.dia
		bp := statusOf(t, c.Classify(snap), models.VitalBloodPressure)
		assert.Equal(t, tt.want, bp.Status, "%v/%v", tt.sys, tt.dia)
	}
}

func TestClassify_BloodPressureWorseSideWins(t *testing.T) {
	snap := normalSnapshot()
	snap.SystolicBP, snap.DiastolicBP = 122, 125
	bp := statusOf(t, newClassifier(t).Classify(snap), models.VitalBloodPressure)
	assert.Equal(t, models.StatusCrisis, bp.Status)
	assert.Equal(t, bpCrisis, bp.Detail)
	assert.Equal(t, "122/125", bp.Value)
}

func TestClassify_BloodPressureTiePrefersInRangeSide(t *testing.T) {
	c := newClassifier(t)

	snap := normalSnapshot()
	snap.SystolicBP, snap.DiastolicBP = 85, 82
	bp := statusOf(t, c.Classify(snap), models.VitalBloodPressure)
	assert.Equal(t, models.StatusElevated, bp.Status)
	assert.Equal(t, bpElevated, bp.Detail)
	assert.False(t, bp.BelowRange)

	snap.SystolicBP, snap.DiastolicBP = 125, 55
	bp = statusOf(t, c.Classify(snap), models.VitalBloodPressure)
	assert.Equal(t, bpElevated, bp.Detail)
	assert.False(t, bp.BelowRange)

	snap.SystolicBP, snap.DiastolicBP = 85, 55
	bp = statusOf(t, c.Classify(snap), models.VitalBloodPressure)
	assert.Equal(t, bpHypotension, bp.Detail)
	assert.True(t, bp.BelowRange)
}

func TestClassify_OtherVitalBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		vital models.Vital
		set   func(*models.VitalSnapshot, float64)
		value float64
		want  models.Status
		below bool
	}{
		{"bs low", models.VitalBloodSugar, setBS, 3.8, models.StatusElevated, true},
		{"bs normal edge", models.VitalBloodSugar, setBS, 3.9, models.StatusNormal, false},
		{"bs 7.0", models.VitalBloodSugar, setBS, 7.0, models.StatusElevated, false},
		{"bs 11.0", models.VitalBloodSugar, setBS, 11.0, models.StatusElevated, false},
		{"bs 11.1", models.VitalBloodSugar, setBS, 11.1, models.StatusHigh, false},
		{"temp hypothermia", models.VitalTemperature, setTemp, 34.9, models.StatusHigh, true},
		{"temp 37.5", models.VitalTemperature, setTemp, 37.5, models.StatusElevated, false},
		{"temp 38.5", models.VitalTemperature, setTemp, 38.5, models.StatusElevated, false},
		{"temp 38.6", models.VitalTemperature, setTemp, 38.6, models.StatusHigh, false},
		{"hr bradycardia", models.VitalHeartRate, setHR, 55, models.StatusElevated, true},
		{"hr 100", models.VitalHeartRate, setHR, 100, models.StatusElevated, false},
		{"hr 150", models.VitalHeartRate, setHR, 150, models.StatusElevated, false},
		{"hr 151", models.VitalHeartRate, setHR, 151, models.StatusHigh, false},
	}
	c := newClassifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := normalSnapshot()
			tt.set(&snap, tt.value)
			s := statusOf(t, c.Classify(snap), tt.vital)
			assert.Equal(t, tt.want, s.Status)
			assert.Equal(t, tt.below, s.BelowRange)
		})
	}
}

func setBS(s *models.VitalSnapshot, v float64) { s.BloodSugar = v }
func setTemp(s *models.VitalSnapshot, v float64) { s.BodyTemp = v }
func setHR(s *models.VitalSnapshot, v float64)   { s.HeartRate = v }

func float(v float64) *float64 { return &v }

func TestThresholdsFromConfig_Override(t *testing.T) {
	table, err := ThresholdsFromConfig(config.ThresholdsConfig{
		"heart_rate": {
			{Status: "normal", Max: float(90), Detail: "ok"},
			{Status: "Elevated", Max: float(140), Closed: true, Detail: "fast"},
			{Status: "high", Detail: "very fast"},
		},
	})
	require.NoError(t, err)

	c, err := NewThresholdClassifier(table)
	require.NoError(t, err)

	snap := normalSnapshot()
	snap.HeartRate = 95
	hr := statusOf(t, c.Classify(snap), models.VitalHeartRate)
	assert.Equal(t, models.StatusElevated, hr.Status)
	assert.Equal(t, "fast", hr.Detail)

	// untouched scales keep the defaults
	assert.Equal(t, DefaultThresholds().Systolic, table.Systolic)
}

func TestThresholdsFromConfig_Malformed(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ThresholdsConfig
	}{
		{"unknown table", config.ThresholdsConfig{"weight": {{Status: "normal", Detail: "x"}}}},
		{"empty table", config.ThresholdsConfig{"systolic": {}}},
		{"no open top band", config.ThresholdsConfig{"systolic": {
			{Status: "normal", Max: float(120), Detail: "x"},
		}}},
		{"open band not last", config.ThresholdsConfig{"systolic": {
			{Status: "normal", Detail: "x"},
			{Status: "high", Detail: "y"},
		}}},
		{"not increasing", config.ThresholdsConfig{"systolic": {
			{Status: "normal", Max: float(120), Detail: "x"},
			{Status: "elevated", Max: float(110), Detail: "y"},
			{Status: "high", Detail: "z"},
		}}},
		{"unknown status", config.ThresholdsConfig{"blood_sugar": {
			{Status: "normal", Max: float(7), Detail: "x"},
			{Status: "severe", Detail: "y"},
		}}},
		{"missing detail", config.ThresholdsConfig{"blood_sugar": {
			{Status: "normal", Max: float(7), Detail: "x"},
			{Status: "high"},
		}}},
		{"no normal band", config.ThresholdsConfig{"temperature": {
			{Status: "elevated", Max: float(38), Detail: "x"},
			{Status: "high", Detail: "y"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ThresholdsFromConfig(tt.cfg)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeThresholdConfigInvalid))
		})
	}
}
