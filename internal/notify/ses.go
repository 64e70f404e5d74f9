package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// SES emails the operator instead of messaging them. The first line of
// the text becomes the subject.
type SES struct {
	client *sesv2.Client
	from   string
	to     string
}

func NewSES(cfg aws.Config, from, to string) (*SES, error) {
	if from == "" {
		return nil, fmt.Errorf("SES_FROM_EMAIL is not set")
	}
	return &SES{
		client: sesv2.NewFromConfig(cfg),
		from:   from,
		to:     to,
	}, nil
}

func (s *SES) Send(ctx context.Context, text string) error {
	subject := text
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		subject = text[:i]
	}

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{s.to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(text)},
				},
			},
		},
	})
	return err
}
