package riskmodel

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	commonhttp "health-risk-workers/internal/common/http"
	"health-risk-workers/internal/models"
)

// RemoteModel calls an inference service that accepts
// {"features": [...], "feature_names": [...]} and answers with a Prediction.
type RemoteModel struct {
	client  *commonhttp.Client
	url     string
	version atomic.Value // string
}

type remoteRequest struct {
	Features     []float64 `json:"features"`
	FeatureNames []string  `json:"feature_names"`
}

type remoteResponse struct {
	Prediction
	ModelVersion string `json:"model_version"`
}

// NewRemoteModel builds a client for url. version is reported until the
// service answers with a model_version of its own; from then on the latest
// reported version is used.
func NewRemoteModel(url, version string, timeout time.Duration) *RemoteModel {
	if version == "" {
		version = "remote"
	}
	m := &RemoteModel{
		client: commonhttp.NewClient(timeout),
		url:    url,
	}
	m.version.Store(version)
	return m
}

func (m *RemoteModel) Version() string {
	return m.version.Load().(string)
}

func (m *RemoteModel) Classify(ctx context.Context, features []float64) (Prediction, error) {
	var resp remoteResponse
	err := m.client.PostJSON(ctx, m.url, remoteRequest{
		Features:     features,
		FeatureNames: models.FeatureNames,
	}, &resp)
	if err != nil {
		return Prediction{}, fmt.Errorf("remote inference at %s: %w", m.url, err)
	}
	if resp.Label == "" {
		return Prediction{}, fmt.Errorf("remote inference at %s: empty label", m.url)
	}
	if resp.ModelVersion != "" {
		m.version.Store(resp.ModelVersion)
	}
	return resp.Prediction, nil
}
