// Package alerts notifies the care team about high-risk assessments over
// SNS and SES.
package alerts

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"health-risk-workers/internal/common/aws"
	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"
	"health-risk-workers/internal/common/logger"
	"health-risk-workers/internal/common/metrics"
	"health-risk-workers/internal/models"
)

const (
	ChannelSNS = "sns"
	ChannelSES = "ses"
)

// ErrNoChannels is returned when alerts are disabled or no channel is set up.
var ErrNoChannels = stderrors.New("no alert channels configured")

// Alert describes one assessment the care team should look at.
type Alert struct {
	AssessmentID   string
	PatientID      string
	CorrelationKey string
	Assessment     *models.Assessment
}

// Delivery maps each channel that accepted the alert to its message ID.
type Delivery map[string]string

type Notifier struct {
	sns        *aws.SNSClient
	topicARN   string
	ses        *aws.SESClient
	from       string
	recipients []string
	logger     logger.Logger
}

// NewNotifier wires the channels enabled in cfg. A nil client disables its
// channel regardless of cfg.
func NewNotifier(cfg config.AlertsConfig, snsClient *aws.SNSClient, sesClient *aws.SESClient, log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	n := &Notifier{logger: log.Named("alerts")}
	if !cfg.Enabled {
		return n
	}
	if cfg.SNS.Enabled && snsClient != nil {
		n.sns = snsClient
		n.topicARN = cfg.SNS.TopicARN
	}
	if cfg.SES.Enabled && sesClient != nil {
		n.ses = sesClient
		n.from = cfg.SES.FromEmail
		n.recipients = cfg.SES.Recipients
	}
	return n
}

// Enabled reports whether at least one channel is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && (n.sns != nil || n.ses != nil)
}

// Notify sends alert on every configured channel. It fails only when every
// channel failed.
func (n *Notifier) Notify(ctx context.Context, alert Alert) (Delivery, error) {
	if !n.Enabled() {
		return nil, ErrNoChannels
	}
	if alert.Assessment == nil {
		return nil, fmt.Errorf("alert %s has no assessment", alert.AssessmentID)
	}

	subject, body := FormatMessage(alert)
	delivery := Delivery{}
	var failed []string
	var lastErr error

	if n.sns != nil {
		id, err := n.sns.PublishToTopic(ctx, n.topicARN, subject, body, map[string]string{
			"risk_level":    string(alert.Assessment.RiskLevel),
			"assessment_id": alert.AssessmentID,
		})
		n.track(ChannelSNS, alert, err)
		if err != nil {
			failed, lastErr = append(failed, ChannelSNS), err
		} else {
			delivery[ChannelSNS] = id
		}
	}

	if n.ses != nil {
		id, err := n.ses.SendTextEmail(ctx, n.from, n.recipients, subject, body)
		n.track(ChannelSES, alert, err)
		if err != nil {
			failed, lastErr = append(failed, ChannelSES), err
		} else {
			delivery[ChannelSES] = id
		}
	}

	if len(delivery) == 0 {
		return nil, errors.NewAlertSendFailedError(strings.Join(failed, ","), lastErr)
	}
	return delivery, nil
}

func (n *Notifier) track(channel string, alert Alert, err error) {
	if err != nil {
		metrics.CareTeamAlerts.WithLabelValues(channel, "failed").Inc()
		n.logger.Warn("care team alert failed", map[string]interface{}{
			"channel":      channel,
			"assessmentId": alert.AssessmentID,
			"error":        err.Error(),
		})
		return
	}
	metrics.CareTeamAlerts.WithLabelValues(channel, "sent").Inc()
	n.logger.Info("care team alert sent", map[string]interface{}{
		"channel":      channel,
		"assessmentId": alert.AssessmentID,
	})
}

// FormatMessage renders the subject and plain-text body of an alert.
func FormatMessage(alert Alert) (string, string) {
	a := alert.Assessment
	subject := fmt.Sprintf("[%s RISK] Health risk assessment %s", strings.ToUpper(string(a.RiskLevel)), alert.AssessmentID)

	var b strings.Builder
	fmt.Fprintf(&b, "Risk level: %s (confidence %.2f)\n", a.RiskLevel, a.Confidence)
	if alert.PatientID != "" {
		fmt.Fprintf(&b, "Patient: %s\n", alert.PatientID)
	}
	if alert.CorrelationKey != "" {
		fmt.Fprintf(&b, "Reference: %s\n", alert.CorrelationKey)
	}
	if !a.ModelAvailable {
		b.WriteString("Note: risk model unavailable, level derived from vital sign thresholds only\n")
	}

	b.WriteString("\nVital signs:\n")
	for _, s := range a.VitalStatuses {
		fmt.Fprintf(&b, "- %s %s: %s. %s\n", s.Vital, s.Value, s.Status, s.Detail)
	}

	if len(a.Recommendations.ImmediateActions) > 0 {
		b.WriteString("\nImmediate actions:\n")
		for _, action := range a.Recommendations.ImmediateActions {
			fmt.Fprintf(&b, "- %s\n", action)
		}
	}
	return subject, b.String()
}
