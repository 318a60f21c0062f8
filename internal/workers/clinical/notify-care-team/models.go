// internal/workers/clinical/notify-care-team/models.go
package notifycareteam

import (
	"health-risk-workers/internal/common/validation"
	"health-risk-workers/internal/models"
)

// InputSchema checks the process variables before the assessment is decoded.
var InputSchema = validation.JSONSchema{
	Type: "object",
	Properties: map[string]validation.Property{
		"assessmentId":   {Type: "string"},
		"patientId":      {Type: "string"},
		"modelAvailable": {Type: "boolean"},
		"forceNotify":    {Type: "boolean"},
		"assessment":     {Type: "object", Required: []string{"risk_level"}},
	},
	Required:             []string{"assessment"},
	AdditionalProperties: true,
}

type Input struct {
	AssessmentID   string
	PatientID      string
	CorrelationKey string
	Assessment     *models.Assessment
	ForceNotify    bool
}

const (
	StatusSent    = "sent"
	StatusSkipped = "skipped"
)

type Output struct {
	NotificationStatus string            `json:"notificationStatus"`
	Reason             string            `json:"notificationReason,omitempty"`
	Channels           []string          `json:"notificationChannels,omitempty"`
	MessageIDs         map[string]string `json:"notificationMessageIds,omitempty"`
}
