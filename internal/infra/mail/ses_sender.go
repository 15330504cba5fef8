package mail

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/rotisserie/eris"
)

type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender relays operator notifications through Amazon SES.
type SESSender struct {
	client sesAPI
	from   string
	to     []string
}

func NewSESSender(cfg aws.Config, sesCfg SESConfig) (*SESSender, error) {
	return newSESSender(sesv2.NewFromConfig(cfg), sesCfg)
}

func newSESSender(client sesAPI, sesCfg SESConfig) (*SESSender, error) {
	to := cleanRecipients(sesCfg.To)
	if sesCfg.From == "" || len(to) == 0 {
		return nil, ErrNotConfigured
	}
	return &SESSender{client: client, from: sesCfg.From, to: to}, nil
}

func (s *SESSender) Send(ctx context.Context, subject, body string) error {
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: s.to,
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
	})
	if err != nil {
		return eris.Wrap(err, "ses send failed")
	}
	return nil
}
