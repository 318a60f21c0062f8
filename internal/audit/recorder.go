package audit

import (
	"context"
	"time"

	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
)

// Sink persists a Record somewhere.
type Sink interface {
	Name() string
	Record(ctx context.Context, rec Record) error
}

const sinkTimeout = 5 * time.Second

// Recorder fans a Record out to every sink. Failures are logged and
// counted, never returned, so recording cannot fail an assessment.
type Recorder struct {
	sinks  []Sink
	logger logger.Logger
}

// NewRecorder accepts nil sinks and skips them.
func NewRecorder(log logger.Logger, sinks ...Sink) *Recorder {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	r := &Recorder{logger: log.Named("audit")}
	for _, s := range sinks {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
	return r
}

// Record writes rec to each sink and returns how many succeeded.
func (r *Recorder) Record(ctx context.Context, rec Record) int {
	if r == nil {
		return 0
	}
	ok := 0
	for _, s := range r.sinks {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		err := s.Record(sctx, rec)
		cancel()
		if err != nil {
			metrics.AuditRecordFailures.WithLabelValues(s.Name()).Inc()
			r.logger.Warn("failed to record assessment", map[string]interface{}{
				"sink":         s.Name(),
				"assessmentId": rec.ID,
				"error":        err.Error(),
			})
			continue
		}
		ok++
	}
	return ok
}
