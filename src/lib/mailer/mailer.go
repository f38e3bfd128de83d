// Package mailer delivers ticket emails over SMTP or SES.
package mailer

import (
	"context"
	"log"
	"ticketing/src/types"
	"time"

	"github.com/avast/retry-go"
)

type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
	// Key is where the attachment is stored; it lets a retry skip rendering.
	Key string
}

type Message struct {
	To         string
	Subject    string
	Body       string
	Html       bool
	Attachment *Attachment
}

// Transport makes exactly one external call per Send.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

type TransportFunc func(ctx context.Context, msg *Message) error

func (f TransportFunc) Send(ctx context.Context, msg *Message) error { return f(ctx, msg) }

// Mailer bounds a Transport by a timeout and reports failures as DeliveryError.
type Mailer struct {
	transport Transport
	attempts  uint
	timeout   time.Duration
	delay     time.Duration
}

func New(transport Transport, attempts uint, timeout time.Duration) *Mailer {
	if attempts == 0 {
		attempts = 1
	}
	return &Mailer{transport: transport, attempts: attempts, timeout: timeout, delay: 500 * time.Millisecond}
}

func (m *Mailer) Send(ctx context.Context, msg *Message) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	err := retry.Do(
		func() error { return m.transport.Send(ctx, msg) },
		retry.Attempts(m.attempts),
		retry.Delay(m.delay),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("[mailer] Attempt %d to %s failed: %s\n", n+1, msg.To, err.Error())
		}),
	)
	if err != nil {
		de := &types.DeliveryError{Recipient: msg.To, Err: err}
		if msg.Attachment != nil {
			de.AttachmentKey = msg.Attachment.Key
		}
		return de
	}
	log.Printf("[mailer] Sent %q to %s\n", msg.Subject, msg.To)
	return nil
}
