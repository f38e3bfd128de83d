package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"ticketing/src/types"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ticketMessage() *Message {
	return &Message{
		To:      "buyer@example.com",
		Subject: "Your Event Ticket",
		Body:    "Thank you for booking. Your ticket is attached as a PDF.",
		Attachment: &Attachment{
			Filename:    "ticket.pdf",
			ContentType: "application/pdf",
			Content:     []byte("%PDF-1.3 test"),
			Key:         "tickets/ticket-1.pdf",
		},
	}
}

func TestMailerSend(t *testing.T) {
	var calls int
	m := New(TransportFunc(func(ctx context.Context, msg *Message) error {
		calls++
		_, ok := ctx.Deadline()
		assert.True(t, ok, "transport call must be bounded")
		return nil
	}), 1, time.Second)

	require.NoError(t, m.Send(context.Background(), ticketMessage()))
	assert.Equal(t, 1, calls)
}

func TestMailerDeliveryError(t *testing.T) {
	var calls int
	m := New(TransportFunc(func(context.Context, *Message) error {
		calls++
		return errors.New("535 authentication failed")
	}), 2, time.Second)
	m.delay = time.Millisecond

	err := m.Send(context.Background(), ticketMessage())
	require.Error(t, err)
	assert.Equal(t, 2, calls)

	var de *types.DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "buyer@example.com", de.Recipient)
	assert.Equal(t, "tickets/ticket-1.pdf", de.AttachmentKey)
	assert.Contains(t, de.Error(), "535")
}

func TestRender(t *testing.T) {
	raw, err := Render("tickets@example.com", "Event Tickets", ticketMessage())
	require.NoError(t, err)
	s := string(raw)
	assert.True(t, strings.Contains(s, "Your Event Ticket"))
	assert.True(t, strings.Contains(s, "ticket.pdf"))
	assert.True(t, strings.Contains(s, "application/pdf"))
	assert.True(t, strings.Contains(s, "buyer@example.com"))

	_, err = Render("tickets@example.com", "Event Tickets", &Message{To: "not an address"})
	assert.Error(t, err)
}
