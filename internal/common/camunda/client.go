package camunda

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client wraps the Zeebe gRPC client with error mapping and retry logic.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig defines retry behavior for transient failures.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig is used when ClientConfig.RetryConfig is nil.
var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// ConfigFrom maps the camunda config section onto a ClientConfig.
func ConfigFrom(cfg config.CamundaConfig) *ClientConfig {
	return &ClientConfig{
		GatewayAddress:         cfg.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         config.GetDuration(cfg.RequestTimeout),
		RetryConfig:            DefaultRetryConfig,
	}
}

// NewClientWithConfig creates a Camunda client and verifies the gateway
// answers a topology request within ConnectionTimeout.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: cfg,
	}, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	return c.client.Close()
}

// PublishMessage publishes a correlated BPMN message, retrying transient
// gateway failures. vars is marshalled to JSON.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars interface{}) error {
	payload, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("marshal message variables: %w", err)
	}

	_, err = c.ExecuteWithRetry(ctx, func(ctx context.Context) (interface{}, error) {
		cmd, err := c.client.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			TimeToLive(ttl).
			VariablesFromString(string(payload))
		if err != nil {
			return nil, err
		}
		return cmd.Send(ctx)
	}, "publish-message:"+name)
	return err
}

// ExecuteWithRetry executes a Zeebe command with exponential backoff retry logic.
// Only retryable errors (timeouts, connection issues) are retried.
func (c *Client) ExecuteWithRetry(
	ctx context.Context,
	commandFunc func(context.Context) (interface{}, error),
	operationName string,
) (interface{}, error) {
	retry := c.config.RetryConfig
	var lastErr error

	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		callCtx := ctx
		var cancel context.CancelFunc = func() {}
		if c.config.RequestTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
		}
		result, err := commandFunc(callCtx)
		cancel()
		if err == nil {
			return result, nil
		}

		lastErr = err

		if !isRetryableZeebeError(err) || attempt == retry.MaxRetries {
			return nil, mapZeebeError(err, operationName, attempt)
		}

		delay := retry.BaseDelay * time.Duration(1<<attempt)
		if delay > retry.MaxDelay {
			delay = retry.MaxDelay
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("operation %s cancelled after %d attempts: %w", operationName, attempt+1, ctx.Err())
		}
	}

	return nil, fmt.Errorf("operation %s failed after %d retries: %w", operationName, retry.MaxRetries, lastErr)
}

// isRetryableZeebeError checks if the error is transient and should be retried.
// gRPC status codes win; the message check covers errors raised before the
// call reached the gateway.
func isRetryableZeebeError(err error) bool {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		switch st.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
			return true
		default:
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"deadline exceeded",
		"unavailable",
		"unreachable",
		"broken pipe",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

// mapZeebeError converts Zeebe errors into standardized application errors.
func mapZeebeError(err error, operation string, attempt int) error {
	msg := err.Error()
	lowerMsg := strings.ToLower(msg)

	enhancedMsg := fmt.Sprintf("Zeebe operation '%s' failed", operation)
	if attempt > 0 {
		enhancedMsg += fmt.Sprintf(" after %d attempts", attempt+1)
	}
	wrapped := fmt.Errorf("%s: %s", enhancedMsg, msg)

	code := codes.Unknown
	if st, ok := status.FromError(err); ok {
		code = st.Code()
	}

	switch {
	case code == codes.DeadlineExceeded ||
		strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded"):
		return errors.NewTimeoutError("zeebe", wrapped)

	case code == codes.NotFound || strings.Contains(lowerMsg, "not found"):
		return errors.NewResourceNotFoundError("zeebe", wrapped.Error())

	case code == codes.AlreadyExists || strings.Contains(lowerMsg, "already exists"):
		return errors.NewBusinessRuleError(wrapped.Error(), "Resource already exists")

	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}

// HealthCheck performs a basic health check against the Zeebe broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	_, err := c.client.NewTopologyCommand().Send(ctx)
	if err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}
