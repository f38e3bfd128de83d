package aws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSPublisher sends JSON messages to a named queue. The URL is resolved on first use.
type SQSPublisher struct {
	client *sqs.Client
	queue  string

	mu       sync.Mutex
	queueURL *string
}

func NewSQSPublisher(cfg aws.Config, queue string) *SQSPublisher {
	return &SQSPublisher{client: sqs.NewFromConfig(cfg), queue: queue}
}

func (p *SQSPublisher) url(ctx context.Context) (*string, error) {
	p.mu.Lock()
	cached := p.queueURL
	p.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	out, err := p.client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{
		QueueName: aws.String(p.queue),
	})
	if err != nil {
		log.Printf("Failed to retrieve queue URL for %s: %s\n", p.queue, err.Error())
		return nil, err
	}
	p.mu.Lock()
	p.queueURL = out.QueueUrl
	p.mu.Unlock()
	return out.QueueUrl, nil
}

func (p *SQSPublisher) Publish(ctx context.Context, payload any) error {
	qurl, err := p.url(ctx)
	if err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    qurl,
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		log.Printf("Could not send message to queue: %s\n", err.Error())
		return err
	}
	log.Printf("Message sent to queue: %s\n", aws.ToString(out.MessageId))
	return nil
}
