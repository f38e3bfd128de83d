package aws

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type SESClient struct {
	client *ses.Client
}

func NewSESClient(cfg aws.Config) *SESClient {
	return &SESClient{client: ses.NewFromConfig(cfg)}
}

// SendRaw sends a complete MIME message, which SES needs for attachments.
func (c *SESClient) SendRaw(ctx context.Context, from string, to []string, raw []byte) (string, error) {
	out, err := c.client.SendRawEmail(ctx, &ses.SendRawEmailInput{
		Source:       aws.String(from),
		Destinations: to,
		RawMessage:   &types.RawMessage{Data: raw},
	})
	if err != nil {
		log.Printf("Error sending email: %s\n", err.Error())
		return "", err
	}
	log.Printf("Sent email with id: %s\n", aws.ToString(out.MessageId))
	return aws.ToString(out.MessageId), nil
}
