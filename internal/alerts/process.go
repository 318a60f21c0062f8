package alerts

import (
	"context"
	"time"

	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
)

// ChannelProcess is the delivery key used when an alert is handed to a BPMN
// process instead of being sent directly.
const ChannelProcess = "process"

// escalationTTL keeps an unmatched message buffered in the broker long
// enough for a process deployment to catch up.
const escalationTTL = time.Hour

// MessagePublisher publishes a correlated BPMN message.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars interface{}) error
}

// ProcessEscalator raises an alert by publishing a message that starts the
// care-team process, whose notify-care-team task then does the sending.
type ProcessEscalator struct {
	publisher   MessagePublisher
	messageName string
	logger      logger.Logger
}

func NewProcessEscalator(publisher MessagePublisher, messageName string, log logger.Logger) *ProcessEscalator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &ProcessEscalator{publisher: publisher, messageName: messageName, logger: log.Named("alerts")}
}

func (p *ProcessEscalator) Enabled() bool {
	return p != nil && p.publisher != nil && p.messageName != ""
}

// Notify publishes the message correlated by assessment ID. The variables
// match what the assess-health-risk worker writes, so the same process
// model serves both entry points.
func (p *ProcessEscalator) Notify(ctx context.Context, alert Alert) (Delivery, error) {
	if !p.Enabled() {
		return nil, ErrNoChannels
	}

	a := alert.Assessment
	vars := map[string]interface{}{
		"assessmentId":       alert.AssessmentID,
		"patientId":          alert.PatientID,
		"riskLevel":          a.RiskLevel,
		"confidence":         a.Confidence,
		"modelAvailable":     a.ModelAvailable,
		"requiresEscalation": true,
		"assessment":         a,
	}
	if err := p.publisher.PublishMessage(ctx, p.messageName, alert.AssessmentID, escalationTTL, vars); err != nil {
		metrics.CareTeamAlerts.WithLabelValues(ChannelProcess, "failed").Inc()
		p.logger.Warn("escalation message failed", map[string]interface{}{
			"message":      p.messageName,
			"assessmentId": alert.AssessmentID,
			"error":        err.Error(),
		})
		return nil, err
	}

	metrics.CareTeamAlerts.WithLabelValues(ChannelProcess, "sent").Inc()
	p.logger.Info("escalation message published", map[string]interface{}{
		"message":      p.messageName,
		"assessmentId": alert.AssessmentID,
	})
	return Delivery{ChannelProcess: p.messageName}, nil
}
