package main

import (
	"fmt"

	"health-risk-workers/internal/assessment"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/pkg/registry"

	ahr "health-risk-workers/internal/workers/clinical/assess-health-risk"
	nct "health-risk-workers/internal/workers/clinical/notify-care-team"
)

const riskWorkflow = "patient-risk-screening"

func clinicalActivities() ([]registry.Activity, error) {
	validator, err := assessment.NewVitalValidator(assessment.DefaultEnvelopes)
	if err != nil {
		return nil, err
	}
	vitalsSchema, err := registry.SchemaToMap(validator.Schema())
	if err != nil {
		return nil, fmt.Errorf("vitals schema: %w", err)
	}

	notifySchema, err := registry.SchemaToMap(nct.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("notify schema: %w", err)
	}

	assessCfg := ahr.DefaultConfig()
	notifyCfg := nct.DefaultConfig()

	return []registry.Activity{
		{
			ID:                   "clinical.risk.assess",
			DisplayName:          "Assess Health Risk",
			Description:          "Validates raw vitals, classifies them against threshold tables, fuses the result with the risk model and records the assessment.",
			Category:             "clinical",
			Version:              "1.0.0",
			TaskType:             ahr.TaskType,
			ImplementationStatus: registry.StatusCompleted,
			InputSchema:          vitalsSchema,
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"assessmentId", "riskLevel", "confidence", "modelAvailable", "requiresEscalation", "assessment"},
				"properties": map[string]interface{}{
					"assessmentId":       map[string]interface{}{"type": "string"},
					"riskLevel":          map[string]interface{}{"type": "string", "enum": []string{"low", "mid", "high"}},
					"confidence":         map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
					"modelAvailable":     map[string]interface{}{"type": "boolean"},
					"requiresEscalation": map[string]interface{}{"type": "boolean"},
					"assessment":         map[string]interface{}{"type": "object"},
				},
				"additionalProperties": false,
			},
			ErrorCodes: []string{
				string(errors.ErrCodeInputParsingFailed),
				string(errors.ErrCodeVitalsValidationFailed),
				string(errors.ErrCodeInternal),
			},
			Timeout:   assessCfg.Timeout.String(),
			Retries:   assessCfg.MaxRetries,
			Workflows: []string{riskWorkflow},
			Tags:      []string{"clinical", "risk", "vitals"},
		},
		{
			ID:                   "clinical.careteam.notify",
			DisplayName:          "Notify Care Team",
			Description:          "Sends a high-risk assessment to the care team over SNS and SES.",
			Category:             "clinical",
			Version:              "1.0.0",
			TaskType:             nct.TaskType,
			ImplementationStatus: registry.StatusCompleted,
			InputSchema:          notifySchema,
			OutputSchema: map[string]interface{}{
				"type":     "object",
				"required": []string{"notificationStatus"},
				"properties": map[string]interface{}{
					"notificationStatus":     map[string]interface{}{"type": "string", "enum": []string{nct.StatusSent, nct.StatusSkipped}},
					"notificationReason":     map[string]interface{}{"type": "string"},
					"notificationChannels":   map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
					"notificationMessageIds": map[string]interface{}{"type": "object"},
				},
				"additionalProperties": false,
			},
			ErrorCodes: []string{
				string(errors.ErrCodeInputParsingFailed),
				string(errors.ErrCodeAlertSendFailed),
			},
			Timeout:   notifyCfg.Timeout.String(),
			Retries:   notifyCfg.MaxRetries,
			Workflows: []string{riskWorkflow},
			Tags:      []string{"clinical", "alerts", "sns", "ses"},
		},
	}, nil
}
