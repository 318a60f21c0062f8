package riskmodel

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"health-risk-workers/internal/models"
)

// LinearArtifact is the on-disk form of a standard-scaled multinomial
// logistic regression.
type LinearArtifact struct {
	Version      string      `json:"version"`
	Features     []string    `json:"features"`
	Classes      []string    `json:"classes"`
	Scaler       Scaler      `json:"scaler"`
	Coefficients [][]float64 `json:"coefficients"`
	Intercepts   []float64   `json:"intercepts"`
}

type Scaler struct {
	Mean  []float64 `json:"mean"`
	Scale []float64 `json:"scale"`
}

// LinearModel is immutable once loaded.
type LinearModel struct {
	artifact LinearArtifact
}

// LoadLinearModel reads and checks an artifact file.
func LoadLinearModel(path string) (*LinearModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model artifact: %w", err)
	}
	return ParseLinearModel(data)
}

func ParseLinearModel(data []byte) (*LinearModel, error) {
	var a LinearArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model artifact: %w", err)
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return &LinearModel{artifact: a}, nil
}

func (a LinearArtifact) validate() error {
	n := len(models.FeatureNames)
	if len(a.Features) != n {
		return fmt.Errorf("artifact has %d features, want %d", len(a.Features), n)
	}
	for i, name := range models.FeatureNames {
		if a.Features[i] != name {
			return fmt.Errorf("feature %d is %q, want %q", i, a.Features[i], name)
		}
	}
	if len(a.Scaler.Mean) != n || len(a.Scaler.Scale) != n {
		return fmt.Errorf("scaler dimensions do not match %d features", n)
	}
	for i, s := range a.Scaler.Scale {
		if s == 0 {
			return fmt.Errorf("scale for %s is zero", a.Features[i])
		}
	}
	if len(a.Classes) < 2 {
		return fmt.Errorf("artifact needs at least two classes")
	}
	if len(a.Coefficients) != len(a.Classes) || len(a.Intercepts) != len(a.Classes) {
		return fmt.Errorf("coefficients and intercepts must have one row per class")
	}
	for i, row := range a.Coefficients {
		if len(row) != n {
			return fmt.Errorf("coefficient row %d has %d values, want %d", i, len(row), n)
		}
	}
	return nil
}

func (m *LinearModel) Version() string {
	return m.artifact.Version
}

// Classify scales the features, computes one logit per class and applies
// softmax. Ties go to the earlier class.
func (m *LinearModel) Classify(ctx context.Context, features []float64) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	a := m.artifact
	if len(features) != len(a.Features) {
		return Prediction{}, fmt.Errorf("got %d features, want %d", len(features), len(a.Features))
	}

	scaled := make([]float64, len(features))
	for i, x := range features {
		scaled[i] = (x - a.Scaler.Mean[i]) / a.Scaler.Scale[i]
	}

	logits := make([]float64, len(a.Classes))
	for c, row := range a.Coefficients {
		z := a.Intercepts[c]
		for i, w := range row {
			z += w * scaled[i]
		}
		logits[c] = z
	}

	probs := softmax(logits)
	best := 0
	out := Prediction{Probabilities: make(map[string]float64, len(probs))}
	for c, p := range probs {
		out.Probabilities[a.Classes[c]] = p
		if p > probs[best] {
			best = c
		}
	}
	out.Label = a.Classes[best]
	return out, nil
}

func softmax(logits []float64) []float64 {
	peak := math.Inf(-1)
	for _, z := range logits {
		if z > peak {
			peak = z
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, z := range logits {
		out[i] = math.Exp(z - peak)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
