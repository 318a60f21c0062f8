// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SESClient struct {
	client SESAPI
}

func NewSESClient(cfg awssdk.Config) *SESClient {
	return &SESClient{client: ses.NewFromConfig(cfg)}
}

func NewSESClientWithAPI(api SESAPI) *SESClient {
	return &SESClient{client: api}
}

// SendTextEmail sends a plain-text email and returns the SES message ID.
func (s *SESClient) SendTextEmail(ctx context.Context, from string, to []string, subject, body string) (string, error) {
	if len(to) == 0 {
		return "", fmt.Errorf("ses send: no recipients")
	}
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: to,
		},
		Message: &types.Message{
			Subject: &types.Content{Data: awssdk.String(subject), Charset: awssdk.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: awssdk.String(body), Charset: awssdk.String("UTF-8")},
			},
		},
		Source: awssdk.String(from),
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return awssdk.ToString(out.MessageId), nil
}
