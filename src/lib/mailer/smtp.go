package mailer

import (
	"bytes"
	"context"
	"errors"
	"log"
	"ticketing/src/config"
	"time"

	awslib "ticketing/src/lib/aws"

	"github.com/wneessen/go-mail"
)

const sendGridHost = "smtp.sendgrid.net"

type SMTPTransport struct {
	client   *mail.Client
	from     string
	fromName string
}

func NewSMTPTransport(cfg config.Mail, timeout time.Duration) (*SMTPTransport, error) {
	host := cfg.Host
	if cfg.Driver == "sendgrid" && host == "" {
		host = sendGridHost
	}
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(tlsPolicy(cfg.TLSPolicy)),
	}
	// relays without credentials take unauthenticated mail
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if timeout > 0 {
		opts = append(opts, mail.WithTimeout(timeout))
	}
	c, err := mail.NewClient(host, opts...)
	if err != nil {
		log.Printf("Could not initialize smtp client: %s\n", err.Error())
		return nil, err
	}
	return &SMTPTransport{client: c, from: cfg.From, fromName: cfg.FromName}, nil
}

func tlsPolicy(name string) mail.TLSPolicy {
	switch name {
	case "opportunistic":
		return mail.TLSOpportunistic
	case "none":
		return mail.NoTLS
	}
	return mail.TLSMandatory
}

func (t *SMTPTransport) Send(ctx context.Context, msg *Message) error {
	m, err := buildMsg(t.from, t.fromName, msg)
	if err != nil {
		return err
	}
	return t.client.DialAndSendWithContext(ctx, m)
}

type SESTransport struct {
	ses      *awslib.SESClient
	from     string
	fromName string
}

func NewSESTransport(ses *awslib.SESClient, cfg config.Mail) *SESTransport {
	return &SESTransport{ses: ses, from: cfg.From, fromName: cfg.FromName}
}

func (t *SESTransport) Send(ctx context.Context, msg *Message) error {
	raw, err := Render(t.from, t.fromName, msg)
	if err != nil {
		return err
	}
	_, err = t.ses.SendRaw(ctx, t.from, []string{msg.To}, raw)
	return err
}

// Render returns the MIME encoding of msg.
func Render(from, fromName string, msg *Message) ([]byte, error) {
	m, err := buildMsg(from, fromName, msg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildMsg(from, fromName string, msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.FromFormat(fromName, from); err != nil {
		log.Printf("Failed to set From address: %s\n", err.Error())
		return nil, err
	}
	if err := m.To(msg.To); err != nil {
		log.Printf("Failed to set To address: %s\n", err.Error())
		return nil, err
	}
	m.Subject(msg.Subject)
	if msg.Html {
		m.SetBodyString(mail.TypeTextHTML, msg.Body)
	} else {
		m.SetBodyString(mail.TypeTextPlain, msg.Body)
	}
	if a := msg.Attachment; a != nil {
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content), mail.WithFileContentType(mail.ContentType(a.ContentType))); err != nil {
			return nil, err
		}
	}
	return m, nil
}
