package assessment

import (
	"testing"

	"health-risk-workers/internal/models"

	"github.com/stretchr/testify/assert"
)

func statusesWith(pairs ...models.Status) []models.VitalStatus {
	out := make([]models.VitalStatus, len(pairs))
	for i, st := range pairs {
		out[i] = models.VitalStatus{Vital: models.VitalOrder[i], Status: st}
	}
	return out
}

func output(label models.RiskLevel, low, mid, high float64) models.ModelOutput {
	return models.ModelOutput{
		Label: label,
		ClassProbabilities: map[models.RiskLevel]float64{
			models.RiskLow: low, models.RiskMid: mid, models.RiskHigh: high,
		},
	}
}

func TestRuleLevel(t *testing.T) {
	n, e, h, c := models.StatusNormal, models.StatusElevated, models.StatusHigh, models.StatusCrisis
	tests := []struct {
		name     string
		statuses []models.VitalStatus
		want     models.RiskLevel
	}{
		{"all normal", statusesWith(n, n, n, n), models.RiskLow},
		{"elevated only", statusesWith(e, e, e, e), models.RiskLow},
		{"one high", statusesWith(h, n, e, n), models.RiskMid},
		{"crisis", statusesWith(c, n, n, n), models.RiskHigh},
		{"two high", statusesWith(h, h, e, n), models.RiskHigh},
		{"empty", nil, models.RiskLow},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RuleLevel(tt.statuses))
		})
	}
}

func TestFuse_ModelAtOrAboveRules(t *testing.T) {
	n := models.StatusNormal
	level, conf := Fuse(statusesWith(n, n, n, n), output(models.RiskMid, 0.2, 0.7, 0.1))
	assert.Equal(t, models.RiskMid, level)
	assert.InDelta(t, 0.7, conf, 1e-9)
}

func TestFuse_RulesOverrideUseOverridingProbability(t *testing.T) {
	level, conf := Fuse(statusesWith(models.StatusCrisis), output(models.RiskLow, 0.9, 0.08, 0.02))
	assert.Equal(t, models.RiskHigh, level)
	assert.InDelta(t, 0.02, conf, 1e-9)
}

func TestFuse_RulesOverrideFloor(t *testing.T) {
	out := models.ModelOutput{
		Label:              models.RiskLow,
		ClassProbabilities: map[models.RiskLevel]float64{models.RiskLow: 0.8, models.RiskMid: 0.2},
	}
	level, conf := Fuse(statusesWith(models.StatusCrisis), out)
	assert.Equal(t, models.RiskHigh, level)
	assert.Equal(t, OverrideConfidenceFloor, conf)
}

func TestFuse_ComorbidityOverridesConfidentLowModel(t *testing.T) {
	n, e, h := models.StatusNormal, models.StatusElevated, models.StatusHigh
	// normal BP, blood sugar 12, normal temperature, heart rate 160
	statuses := statusesWith(n, h, n, h)
	assert.Equal(t, models.RiskHigh, RuleLevel(statuses))

	level, conf := Fuse(statuses, output(models.RiskLow, 0.9, 0.05, 0.05))
	assert.Equal(t, models.RiskHigh, level)
	assert.InDelta(t, 0.05, conf, 1e-9)

	// a single high vital keeps the plain mapping
	level, _ = Fuse(statusesWith(n, h, e, n), output(models.RiskLow, 0.9, 0.05, 0.05))
	assert.Equal(t, models.RiskMid, level)
}

func TestFuse_Monotonic(t *testing.T) {
	statusSets := [][]models.VitalStatus{
		statusesWith(models.StatusNormal),
		statusesWith(models.StatusHigh),
		statusesWith(models.StatusCrisis),
		statusesWith(models.StatusHigh, models.StatusHigh),
	}
	for _, statuses := range statusSets {
		rule := RuleLevel(statuses)
		for _, label := range models.RiskLevels {
			level, conf := Fuse(statuses, output(label, 0.5, 0.3, 0.2))
			assert.GreaterOrEqual(t, level.Severity(), rule.Severity())
			assert.GreaterOrEqual(t, level.Severity(), label.Severity())
			assert.GreaterOrEqual(t, conf, 0.0)
			assert.LessOrEqual(t, conf, 1.0)
		}
	}
}

func TestFuseRulesOnly(t *testing.T) {
	level, conf := FuseRulesOnly(statusesWith(models.StatusNormal, models.StatusNormal))
	assert.Equal(t, models.RiskLow, level)
	assert.Equal(t, FallbackConfidence, conf)
}
