// Package riskmodel provides the classifier runtimes behind risk assessment
// and the adapter that turns raw predictions into validated model output.
package riskmodel

import "context"

// Prediction is a classifier's raw answer. Labels are the classifier's own
// strings and are normalized by the Adapter.
type Prediction struct {
	Label         string             `json:"label"`
	Probabilities map[string]float64 `json:"probabilities"`
}

// Classifier predicts a risk label from a feature vector ordered as
// models.FeatureNames.
type Classifier interface {
	Classify(ctx context.Context, features []float64) (Prediction, error)
	Version() string
}
