// internal/workers/clinical/assess-health-risk/models.go
package assesshealthrisk

import "health-risk-workers/internal/models"

type Input struct {
	Vitals         map[string]interface{}
	PatientID      string
	CorrelationKey string
}

type Output struct {
	AssessmentID       string             `json:"assessmentId"`
	RiskLevel          models.RiskLevel   `json:"riskLevel"`
	Confidence         float64            `json:"confidence"`
	ModelAvailable     bool               `json:"modelAvailable"`
	RequiresEscalation bool               `json:"requiresEscalation"`
	Assessment         *models.Assessment `json:"assessment"`
}
