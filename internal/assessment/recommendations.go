package assessment

import "health-risk-workers/internal/models"

// vitalAdvice is the recommendation table row for one vital. Below-range
// readings use the *Below texts.
type vitalAdvice struct {
	Immediate      map[models.Status]string
	ImmediateBelow string
	Lifestyle      string
	LifestyleBelow string
	Monitoring     string
}

var adviceTable = map[models.Vital]vitalAdvice{
	models.VitalBloodPressure: {
		Immediate: map[models.Status]string{
			models.StatusElevated: "Rest and recheck your blood pressure within the next hour",
			models.StatusHigh:     "Seek emergency medical attention for high blood pressure",
			models.StatusCrisis:   "Call emergency services immediately for hypertensive crisis",
		},
		ImmediateBelow: "Lie down, raise your legs and recheck blood pressure",
		Lifestyle:      "Reduce sodium intake, exercise regularly, manage stress and maintain a healthy weight",
		LifestyleBelow: "Increase fluid intake and stand up slowly from sitting or lying positions",
		Monitoring:     "Daily blood pressure monitoring",
	},
	models.VitalBloodSugar: {
		Immediate: map[models.Status]string{
			models.StatusElevated: "Recheck blood sugar and avoid high-sugar foods and drinks",
			models.StatusHigh:     "Take insulin or diabetes medication as prescribed and contact your healthcare provider",
		},
		ImmediateBelow: "Take 15 g of fast-acting carbohydrate and recheck blood sugar in 15 minutes",
		Lifestyle:      "Follow a balanced low-glycemic diet, exercise regularly and monitor carbohydrate intake",
		LifestyleBelow: "Eat regular meals and carry a fast-acting sugar source",
		Monitoring:     "Keep a log of blood sugar readings",
	},
	models.VitalTemperature: {
		Immediate: map[models.Status]string{
			models.StatusElevated: "Take appropriate fever-reducing medication and stay hydrated",
			models.StatusHigh:     "Seek immediate medical care for high fever",
		},
		ImmediateBelow: "Move to a warm environment and seek immediate medical care for low body temperature",
		Lifestyle:      "Rest, stay hydrated and avoid strenuous activity until the fever resolves",
		LifestyleBelow: "Dress in warm layers and keep your living space heated",
		Monitoring:     "Check body temperature every 4 hours",
	},
	models.VitalHeartRate: {
		Immediate: map[models.Status]string{
			models.StatusElevated: "Sit down, avoid caffeine and recheck your heart rate in 15 minutes",
			models.StatusHigh:     "Seek medical attention for a persistently rapid heart rate",
		},
		ImmediateBelow: "Sit down and seek medical advice if you feel dizzy or faint",
		Lifestyle:      "Limit caffeine and stimulants and practise relaxation techniques",
		LifestyleBelow: "Review medications that slow the heart rate with your healthcare provider",
		Monitoring:     "Track heart rate during rest and activity",
	},
}

const (
	contactProviderAction = "Contact your healthcare provider immediately"
	baselineMonitoring    = "Continue general monitoring of vital signs during routine check-ups"
)

var followUpCare = map[models.RiskLevel][]string{
	models.RiskHigh: {
		"Schedule an immediate appointment with your healthcare provider",
		"Bring your vital signs log to your appointment",
		"Discuss medication adjustments if needed",
	},
	models.RiskMid: {
		"Schedule a follow-up appointment within the next week",
		"Prepare questions about lifestyle modifications",
		"Consider a medication review",
	},
	models.RiskLow: {
		"Continue regular check-ups",
		"Maintain preventive health screenings",
		"Update emergency contact information",
	},
}

// Recommend builds the recommendation lists. statuses are expected in
// models.VitalOrder and the lists keep that order.
func Recommend(level models.RiskLevel, statuses []models.VitalStatus) models.Recommendations {
	recs := models.Recommendations{
		ImmediateActions:      []string{},
		LifestyleChanges:      []string{},
		MonitoringSuggestions: []string{},
		FollowUpCare:          append([]string{}, followUpCare[level]...),
	}

	urgent := level == models.RiskHigh
	for _, s := range statuses {
		if s.Status.Severity() >= models.StatusHigh.Severity() {
			urgent = true
		}
	}

	if level == models.RiskLow {
		recs.MonitoringSuggestions = append(recs.MonitoringSuggestions, baselineMonitoring)
	}

	for _, s := range statuses {
		if !s.Status.Abnormal() {
			continue
		}
		advice, ok := adviceTable[s.Vital]
		if !ok {
			continue
		}
		if urgent {
			recs.ImmediateActions = append(recs.ImmediateActions, advice.immediate(s))
		}
		recs.LifestyleChanges = append(recs.LifestyleChanges, advice.lifestyle(s))
		recs.MonitoringSuggestions = append(recs.MonitoringSuggestions, advice.Monitoring)
	}

	if level == models.RiskHigh && len(recs.ImmediateActions) == 0 {
		recs.ImmediateActions = append(recs.ImmediateActions, contactProviderAction)
	}
	return recs
}

func (a vitalAdvice) immediate(s models.VitalStatus) string {
	if s.BelowRange {
		return a.ImmediateBelow
	}
	if text, ok := a.Immediate[s.Status]; ok {
		return text
	}
	return a.Immediate[models.StatusHigh]
}

func (a vitalAdvice) lifestyle(s models.VitalStatus) string {
	if s.BelowRange {
		return a.LifestyleBelow
	}
	return a.Lifestyle
}
