package assessment

import (
	"math"

	"health-risk-workers/internal/models"
)

const (
	// OverrideConfidenceFloor is used when the rules override the model and
	// the model gave no probability for the overriding level.
	OverrideConfidenceFloor = 0.60
	// FallbackConfidence is reported for rule-only assessments.
	FallbackConfidence = 0.50

	comorbidityThreshold = 2
)

// RuleLevel maps the worst vital status onto a risk level:
// normal and elevated are low, high is mid, crisis is high. Two or more
// vitals at high or worse escalate to high. The escalation applies to any
// pair, not only blood pressure with blood sugar, so a confident low model
// output is overridden with a low confidence, e.g. blood sugar 12 and heart
// rate 160 against a 0.9 low prediction yield high at P(high).
func RuleLevel(statuses []models.VitalStatus) models.RiskLevel {
	worst := models.StatusNormal
	severe := 0
	for _, s := range statuses {
		worst = models.MaxStatus(worst, s.Status)
		if s.Status.Severity() >= models.StatusHigh.Severity() {
			severe++
		}
	}

	if severe >= comorbidityThreshold {
		return models.RiskHigh
	}
	switch worst {
	case models.StatusCrisis:
		return models.RiskHigh
	case models.StatusHigh:
		return models.RiskMid
	default:
		return models.RiskLow
	}
}

// Fuse combines the rule level with a validated model output. The final
// level is never less severe than either input.
func Fuse(statuses []models.VitalStatus, out models.ModelOutput) (models.RiskLevel, float64) {
	rule := RuleLevel(statuses)
	final := models.MaxRisk(rule, out.Label)

	var confidence float64
	if rule.Severity() <= out.Label.Severity() {
		confidence = out.ClassProbabilities[out.Label]
	} else if p, ok := out.ClassProbabilities[rule]; ok {
		confidence = p
	} else {
		confidence = OverrideConfidenceFloor
	}
	return final, clamp01(confidence)
}

// FuseRulesOnly is the model-unavailable path.
func FuseRulesOnly(statuses []models.VitalStatus) (models.RiskLevel, float64) {
	return RuleLevel(statuses), FallbackConfidence
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
