package riskmodel

import (
	"context"
	"fmt"

	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/models"
)

// Adapter exposes a Classifier as the assessment pipeline's risk model.
type Adapter struct {
	classifier Classifier
	cache      *PredictionCache
	version    string
}

// NewAdapter wraps c. cache may be nil. A non-empty version overrides the
// classifier's own in output and cache keys.
func NewAdapter(c Classifier, cache *PredictionCache, version string) *Adapter {
	return &Adapter{classifier: c, cache: cache, version: version}
}

func (a *Adapter) modelVersion() string {
	if a.version != "" {
		return a.version
	}
	return a.classifier.Version()
}

// Predict builds the feature vector, consults the cache and validates the
// classifier's answer. Any failure is a ModelUnavailableError.
func (a *Adapter) Predict(ctx context.Context, snapshot models.VitalSnapshot) (models.ModelOutput, error) {
	features := snapshot.Features()
	version := a.modelVersion()

	if a.cache != nil && version != "" {
		if out, ok := a.cache.Get(ctx, version, features); ok {
			return out, nil
		}
	}

	pred, err := a.classifier.Classify(ctx, features)
	if err != nil {
		return models.ModelOutput{}, errors.NewModelUnavailableError(err)
	}
	out, err := toModelOutput(pred, a.modelVersion())
	if err != nil {
		return models.ModelOutput{}, errors.NewModelUnavailableError(err)
	}

	if a.cache != nil && out.ModelVersion != "" {
		a.cache.Set(ctx, out.ModelVersion, features, out)
	}
	return out, nil
}

func toModelOutput(p Prediction, version string) (models.ModelOutput, error) {
	label, err := models.ParseRiskLevel(p.Label)
	if err != nil {
		return models.ModelOutput{}, err
	}
	probs := make(map[models.RiskLevel]float64, len(p.Probabilities))
	for name, v := range p.Probabilities {
		level, err := models.ParseRiskLevel(name)
		if err != nil {
			return models.ModelOutput{}, fmt.Errorf("class probabilities: %w", err)
		}
		probs[level] += v
	}
	out := models.ModelOutput{Label: label, ClassProbabilities: probs, ModelVersion: version}
	if err := out.Validate(); err != nil {
		return models.ModelOutput{}, err
	}
	return out, nil
}
