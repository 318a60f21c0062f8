package camunda

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"health-risk-workers/internal/common/config"
	"health-risk-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func testClient(maxRetries int) *Client {
	return &Client{config: &ClientConfig{
		RetryConfig: &RetryConfig{
			MaxRetries: maxRetries,
			BaseDelay:  time.Millisecond,
			MaxDelay:   2 * time.Millisecond,
		},
	}}
}

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"grpc unavailable", status.Error(codes.Unavailable, "gateway down"), true},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"grpc not found", status.Error(codes.NotFound, "no such job"), false},
		{"plain connection refused", stderrors.New("dial tcp: connection refused"), true},
		{"plain validation", stderrors.New("invalid variables"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(tt.err))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	assert.True(t, errors.IsCode(mapZeebeError(status.Error(codes.DeadlineExceeded, "x"), "op", 0), errors.ErrCodeTimeout))
	assert.True(t, errors.IsCode(mapZeebeError(status.Error(codes.NotFound, "x"), "op", 0), errors.ErrCodeResourceNotFound))
	assert.True(t, errors.IsCode(mapZeebeError(stderrors.New("message already exists"), "op", 0), errors.ErrCodeBusinessRule))
	assert.True(t, errors.IsCode(mapZeebeError(stderrors.New("boom"), "op", 2), errors.ErrCodeExternalService))
}

func TestExecuteWithRetry_RetriesTransient(t *testing.T) {
	c := testClient(3)
	calls := 0
	out, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		if calls < 3 {
			return nil, status.Error(codes.Unavailable, "gateway down")
		}
		return "ok", nil
	}, "publish")

	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 3, calls)
}

func TestExecuteWithRetry_StopsOnPermanent(t *testing.T) {
	c := testClient(3)
	calls := 0
	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, status.Error(codes.InvalidArgument, "bad variables")
	}, "publish")

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.IsCode(err, errors.ErrCodeExternalService))
}

func TestExecuteWithRetry_GivesUp(t *testing.T) {
	c := testClient(2)
	calls := 0
	_, err := c.ExecuteWithRetry(context.Background(), func(context.Context) (interface{}, error) {
		calls++
		return nil, status.Error(codes.Unavailable, "gateway down")
	}, "publish")

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestConfigFrom(t *testing.T) {
	cc := ConfigFrom(config.CamundaConfig{BrokerAddress: "zeebe:26500", RequestTimeout: 1500})
	assert.Equal(t, "zeebe:26500", cc.GatewayAddress)
	assert.Equal(t, 1500*time.Millisecond, cc.RequestTimeout)
	assert.Same(t, DefaultRetryConfig, cc.RetryConfig)
}
