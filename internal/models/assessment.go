// internal/models/assessment.go
package models

import (
	"encoding/json"
	"fmt"
)

// VitalStatus is the threshold verdict for one vital.
type VitalStatus struct {
	Vital  Vital  `json:"vital"`
	Value  string `json:"value"`
	Status Status `json:"status"`
	Detail string `json:"details"`
	// BelowRange marks a reading under the normal band (hypotension,
	// hypoglycaemia, hypothermia, bradycardia).
	BelowRange bool `json:"-"`
}

// Recommendations are ordered by vital check order within each list.
type Recommendations struct {
	ImmediateActions      []string `json:"immediate_actions"`
	LifestyleChanges      []string `json:"lifestyle_changes"`
	MonitoringSuggestions []string `json:"monitoring_suggestions"`
	FollowUpCare          []string `json:"follow_up_care"`
}

// Assessment is the result of one assessment. It carries no timestamps or
// IDs so identical input yields byte-identical JSON.
type Assessment struct {
	RiskLevel       RiskLevel
	Confidence      float64
	VitalStatuses   []VitalStatus
	Recommendations Recommendations

	// RuleLevel and ModelAvailable explain how RiskLevel was reached. They are
	// not part of the serialized assessment.
	RuleLevel      RiskLevel
	ModelAvailable bool
	ModelVersion   string

	// Input is the validated snapshot the assessment was computed from.
	Input VitalSnapshot
}

// Status returns the verdict for v.
func (a *Assessment) Status(v Vital) (VitalStatus, bool) {
	for _, s := range a.VitalStatuses {
		if s.Vital == v {
			return s, true
		}
	}
	return VitalStatus{}, false
}

// Source is "model" when the classifier contributed and "rules" otherwise.
func (a *Assessment) Source() string {
	if a.ModelAvailable {
		return "model"
	}
	return "rules"
}

type vitalAnalysis struct {
	Status  Status `json:"status"`
	Value   string `json:"value"`
	Details string `json:"details"`
}

type assessmentJSON struct {
	RiskLevel          RiskLevel                `json:"risk_level"`
	Confidence         float64                  `json:"confidence"`
	VitalSignsAnalysis map[Vital]vitalAnalysis `json:"vital_signs_analysis"`
	Recommendations    Recommendations          `json:"recommendations"`
}

// MarshalJSON emits the external result shape. encoding/json sorts map keys,
// so output is stable.
func (a Assessment) MarshalJSON() ([]byte, error) {
	analysis := make(map[Vital]vitalAnalysis, len(a.VitalStatuses))
	for _, s := range a.VitalStatuses {
		analysis[s.Vital] = vitalAnalysis{Status: s.Status, Value: s.Value, Details: s.Detail}
	}
	return json.Marshal(assessmentJSON{
		RiskLevel:          a.RiskLevel,
		Confidence:         a.Confidence,
		VitalSignsAnalysis: analysis,
		Recommendations: Recommendations{
			ImmediateActions:      nonNil(a.Recommendations.ImmediateActions),
			LifestyleChanges:      nonNil(a.Recommendations.LifestyleChanges),
			MonitoringSuggestions: nonNil(a.Recommendations.MonitoringSuggestions),
			FollowUpCare:          nonNil(a.Recommendations.FollowUpCare),
		},
	})
}

// UnmarshalJSON restores an assessment written by MarshalJSON. Vital order
// is rebuilt from VitalOrder.
func (a *Assessment) UnmarshalJSON(data []byte) error {
	var raw assessmentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if !raw.RiskLevel.Valid() {
		return fmt.Errorf("invalid risk_level %q", raw.RiskLevel)
	}

	statuses := make([]VitalStatus, 0, len(raw.VitalSignsAnalysis))
	for _, v := range VitalOrder {
		if va, ok := raw.VitalSignsAnalysis[v]; ok {
			statuses = append(statuses, VitalStatus{Vital: v, Value: va.Value, Status: va.Status, Detail: va.Details})
		}
	}

	*a = Assessment{
		RiskLevel:       raw.RiskLevel,
		Confidence:      raw.Confidence,
		VitalStatuses:   statuses,
		Recommendations: raw.Recommendations,
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
