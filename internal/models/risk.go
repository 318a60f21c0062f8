// internal/models/risk.go
package models

import (
	"fmt"
	"math"
	"strings"
)

// RiskLevel is the overall clinical risk category.
type RiskLevel string

const (
	RiskLow  RiskLevel = "low"
	RiskMid  RiskLevel = "mid"
	RiskHigh RiskLevel = "high"
)

// RiskLevels lists every level from least to most severe.
var RiskLevels = []RiskLevel{RiskLow, RiskMid, RiskHigh}

// Severity orders levels; unknown levels sort below low.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMid:
		return 1
	case RiskHigh:
		return 2
	default:
		return -1
	}
}

func (r RiskLevel) Valid() bool {
	return r.Severity() >= 0
}

// MaxRisk returns the more severe of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// ParseRiskLevel accepts "low", "Mid", "high risk" and similar labels as
// emitted by trained classifiers.
func ParseRiskLevel(s string) (RiskLevel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimSpace(strings.TrimSuffix(norm, "risk"))
	switch norm {
	case "low":
		return RiskLow, nil
	case "mid", "medium", "moderate":
		return RiskMid, nil
	case "high":
		return RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk label %q", s)
}

// Status is the category of a single vital sign.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusElevated Status = "elevated"
	StatusHigh     Status = "high"
	StatusCrisis   Status = "crisis"
)

func (s Status) Severity() int {
	switch s {
	case StatusNormal:
		return 0
	case StatusElevated:
		return 1
	case StatusHigh:
		return 2
	case StatusCrisis:
		return 3
	default:
		return -1
	}
}

func (s Status) Valid() bool {
	return s.Severity() >= 0
}

// Abnormal reports anything other than normal.
func (s Status) Abnormal() bool {
	return s.Severity() > 0
}

// MaxStatus returns the worse of a and b; a wins ties.
func MaxStatus(a, b Status) Status {
	if b.Severity() > a.Severity() {
		return b
	}
	return a
}

// probabilityTolerance bounds how far class probabilities may drift from 1.
const probabilityTolerance = 1e-3

// ModelOutput is a validated classifier prediction.
type ModelOutput struct {
	Label              RiskLevel             `json:"label"`
	ClassProbabilities map[RiskLevel]float64 `json:"class_probabilities"`
	ModelVersion       string                `json:"model_version,omitempty"`
}

// Validate checks the label is known and present in the probabilities,
// and that probabilities are in [0,1] and sum to 1.
func (m ModelOutput) Validate() error {
	if !m.Label.Valid() {
		return fmt.Errorf("invalid label %q", m.Label)
	}
	if len(m.ClassProbabilities) == 0 {
		return fmt.Errorf("no class probabilities")
	}
	sum := 0.0
	for level, p := range m.ClassProbabilities {
		if !level.Valid() {
			return fmt.Errorf("probability for unknown class %q", level)
		}
		if math.IsNaN(p) || p < 0 || p > 1 {
			return fmt.Errorf("probability %v for %q outside [0,1]", p, level)
		}
		sum += p
	}
	if math.Abs(sum-1) > probabilityTolerance {
		return fmt.Errorf("probabilities sum to %v", sum)
	}
	if _, ok := m.ClassProbabilities[m.Label]; !ok {
		return fmt.Errorf("label %q missing from class probabilities", m.Label)
	}
	return nil
}
