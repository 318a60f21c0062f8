package riskmodel

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
)

// ErrModelNotLoaded is returned before the first successful Reload.
var ErrModelNotLoaded = stderrors.New("risk model not loaded")

// Loader produces a fresh classifier, e.g. by re-reading the artifact.
type Loader func(ctx context.Context) (Classifier, error)

// LoaderFromConfig prefers the remote endpoint when one is configured.
func LoaderFromConfig(cfg config.ModelConfig) Loader {
	if cfg.RemoteURL != "" {
		return func(context.Context) (Classifier, error) {
			return NewRemoteModel(cfg.RemoteURL, cfg.Version, config.GetDuration(cfg.Timeout)), nil
		}
	}
	return func(context.Context) (Classifier, error) {
		return LoadLinearModel(cfg.Path)
	}
}

// Source describes where LoaderFromConfig reads the model from.
func Source(cfg config.ModelConfig) string {
	if cfg.RemoteURL != "" {
		return cfg.RemoteURL
	}
	return cfg.Path
}

type loaded struct {
	classifier Classifier
	loadedAt   time.Time
}

// Registry holds the process-wide classifier. Reads are lock free; Reload
// swaps in a fully loaded replacement or leaves the current one in place.
type Registry struct {
	loader  Loader
	source  string
	current atomic.Pointer[loaded]
	logger  logger.Logger
}

func NewRegistry(loader Loader, source string, log logger.Logger) *Registry {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Registry{loader: loader, source: source, logger: log.Named("riskmodel")}
}

// Reload loads a new classifier and swaps it in.
func (r *Registry) Reload(ctx context.Context) error {
	c, err := r.loader(ctx)
	if err != nil {
		r.logger.Error("risk model reload failed", map[string]interface{}{
			"source": r.source,
			"error":  err.Error(),
		})
		return errors.NewModelLoadFailedError(r.source, err)
	}

	prev := r.current.Swap(&loaded{classifier: c, loadedAt: time.Now().UTC()})
	fields := map[string]interface{}{"source": r.source, "version": c.Version()}
	if prev != nil {
		fields["previousVersion"] = prev.classifier.Version()
	}
	r.logger.Info("risk model loaded", fields)
	return nil
}

// Current returns the active classifier.
func (r *Registry) Current() (Classifier, error) {
	l := r.current.Load()
	if l == nil {
		return nil, ErrModelNotLoaded
	}
	return l.classifier, nil
}

func (r *Registry) Ready() bool {
	return r.current.Load() != nil
}

// LoadedAt is zero before the first load.
func (r *Registry) LoadedAt() time.Time {
	if l := r.current.Load(); l != nil {
		return l.loadedAt
	}
	return time.Time{}
}

// Version is empty before the first load.
func (r *Registry) Version() string {
	if l := r.current.Load(); l != nil {
		return l.classifier.Version()
	}
	return ""
}

// Classify delegates to the active classifier.
func (r *Registry) Classify(ctx context.Context, features []float64) (Prediction, error) {
	c, err := r.Current()
	if err != nil {
		return Prediction{}, err
	}
	return c.Classify(ctx, features)
}
