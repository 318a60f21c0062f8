// Package audit keeps a best-effort trail of completed assessments in
// PostgreSQL and Elasticsearch.
package audit

import (
	"encoding/json"
	"time"

	"health-risk-workers/internal/models"

	"github.com/google/uuid"
)

// Sources of an assessment.
const (
	SourceWorker = "worker"
	SourceAPI    = "api"
)

// Record is one completed assessment as persisted.
type Record struct {
	ID             string
	Source         string
	CorrelationKey string
	Assessment     *models.Assessment
	CreatedAt      time.Time
}

// NewRecord stamps a completed assessment with a fresh ID.
func NewRecord(source, correlationKey string, a *models.Assessment) Record {
	return Record{
		ID:             uuid.New().String(),
		Source:         source,
		CorrelationKey: correlationKey,
		Assessment:     a,
		CreatedAt:      time.Now().UTC(),
	}
}

// document is the search-side shape of a Record.
type document struct {
	AssessmentID   string               `json:"assessment_id"`
	Source         string               `json:"source"`
	CorrelationKey string               `json:"correlation_key,omitempty"`
	RiskLevel      models.RiskLevel     `json:"risk_level"`
	RuleLevel      models.RiskLevel     `json:"rule_level"`
	Confidence     float64              `json:"confidence"`
	ModelAvailable bool                 `json:"model_available"`
	ModelVersion   string               `json:"model_version,omitempty"`
	Vitals         models.VitalSnapshot `json:"vitals"`
	Result         json.RawMessage      `json:"result"`
	CreatedAt      time.Time            `json:"created_at"`
}

func (r Record) document() (document, error) {
	result, err := json.Marshal(r.Assessment)
	if err != nil {
		return document{}, err
	}
	return document{
		AssessmentID:   r.ID,
		Source:         r.Source,
		CorrelationKey: r.CorrelationKey,
		RiskLevel:      r.Assessment.RiskLevel,
		RuleLevel:      r.Assessment.RuleLevel,
		Confidence:     r.Assessment.Confidence,
		ModelAvailable: r.Assessment.ModelAvailable,
		ModelVersion:   r.Assessment.ModelVersion,
		Vitals:         r.Assessment.Input,
		Result:         result,
		CreatedAt:      r.CreatedAt,
	}, nil
}
