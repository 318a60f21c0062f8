// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNS rejects subjects longer than this.
const maxSubjectLen = 100

// SNSAPI is the subset of the SNS client used here; tests substitute it.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type SNSClient struct {
	client SNSAPI
}

func NewSNSClient(cfg awssdk.Config) *SNSClient {
	return &SNSClient{client: sns.NewFromConfig(cfg)}
}

func NewSNSClientWithAPI(api SNSAPI) *SNSClient {
	return &SNSClient{client: api}
}

// PublishToTopic publishes message to topicARN and returns the SNS message ID.
// attrs become string message attributes so subscribers can filter on them.
func (s *SNSClient) PublishToTopic(ctx context.Context, topicARN, subject, message string, attrs map[string]string) (string, error) {
	if len(subject) > maxSubjectLen {
		subject = subject[:maxSubjectLen]
	}

	input := &sns.PublishInput{
		TopicArn: awssdk.String(topicARN),
		Subject:  awssdk.String(subject),
		Message:  awssdk.String(message),
	}
	if len(attrs) > 0 {
		keys := make([]string, 0, len(attrs))
		for k := range attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(attrs))
		for _, k := range keys {
			input.MessageAttributes[k] = types.MessageAttributeValue{
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String(attrs[k]),
			}
		}
	}

	out, err := s.client.Publish(ctx, input)
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}
