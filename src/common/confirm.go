package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"ticketing/src/lib/gateway"
	"ticketing/src/lib/mailer"
	"ticketing/src/lib/tickets"
	"ticketing/src/metrics"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

const (
	ticketSubject = "Your Event Ticket"
	ticketBody    = "Thank you for booking. Your ticket is attached as a PDF."
)

type ConfirmRequest struct {
	EventRef  string
	UserEmail string
	Amount    int64
	PaymentID string
	OrderID   string
	Signature string
}

// BookingResult reports how far the pipeline got. Booking is set whenever persistence succeeded.
type BookingResult struct {
	Booking           *models.Booking
	Replayed          bool
	Persisted         bool
	DocumentGenerated bool
	EmailSent         bool
	State             types.DeliveryState
	Errors            []error
}

type TicketRenderer interface {
	Render(ctx context.Context, b *models.Booking, ev *models.Event) (*tickets.Document, error)
	Load(ctx context.Context, b *models.Booking, ev *models.Event, key string) (*tickets.Document, error)
}

type Notifier interface {
	Send(ctx context.Context, msg *mailer.Message) error
}

type Publisher interface {
	Publish(ctx context.Context, payload any) error
}

type BookingConfirmedMessage struct {
	Type      string    `json:"type"`
	BookingID string    `json:"bookingId"`
	EventID   string    `json:"eventId"`
	UserEmail string    `json:"userEmail"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	PaymentID string    `json:"paymentId"`
	CreatedAt time.Time `json:"createdAt"`
}

type ConfirmerDeps struct {
	Store    *BookingStore
	Catalog  EventCatalog
	Verifier gateway.Verifier
	Renderer TicketRenderer
	Notifier Notifier
	Gateway  gateway.Client

	// CheckOrderAmount compares the confirmed amount with the gateway's order. Needs Gateway.
	CheckOrderAmount bool

	// Publisher receives booking.confirmed messages. Optional.
	Publisher      Publisher
	PublishTimeout time.Duration
	Currency       string
}

// Confirmer runs a payment confirmation through persistence, ticket rendering and delivery.
type Confirmer struct {
	store     *BookingStore
	catalog   EventCatalog
	verifier  gateway.Verifier
	renderer  TicketRenderer
	notifier  Notifier
	gateway   gateway.Client
	publisher Publisher
	pubWait   time.Duration
	currency  string
	checkAmt  bool
}

func NewConfirmer(deps ConfirmerDeps) (*Confirmer, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("booking store is required")
	case deps.Catalog == nil:
		return nil, errors.New("event catalog is required")
	case deps.Verifier == nil:
		return nil, errors.New("payment verifier is required")
	case deps.Renderer == nil:
		return nil, errors.New("ticket renderer is required")
	case deps.Notifier == nil:
		return nil, errors.New("notifier is required")
	}
	currency := deps.Currency
	if currency == "" {
		currency = "INR"
	}
	pubWait := deps.PublishTimeout
	if pubWait <= 0 {
		pubWait = 5 * time.Second
	}
	return &Confirmer{
		store:     deps.Store,
		catalog:   deps.Catalog,
		verifier:  deps.Verifier,
		renderer:  deps.Renderer,
		notifier:  deps.Notifier,
		gateway:   deps.Gateway,
		publisher: deps.Publisher,
		pubWait:   pubWait,
		currency:  strings.ToUpper(currency),
		checkAmt:  deps.CheckOrderAmount && deps.Gateway != nil,
	}, nil
}

func validateConfirm(req ConfirmRequest) error {
	switch {
	case strings.TrimSpace(req.EventRef) == "":
		return types.NewValidationError("eventRef", "is required")
	case strings.TrimSpace(req.UserEmail) == "":
		return types.NewValidationError("userEmail", "is required")
	case req.Amount <= 0:
		return types.NewValidationError("amount", "must be a positive integer in minor currency units")
	case strings.TrimSpace(req.PaymentID) == "":
		return types.NewValidationError("paymentId", "is required")
	}
	return nil
}

// Confirm returns an error only when nothing was persisted. Rendering and
// delivery failures are reported in BookingResult.Errors.
func (c *Confirmer) Confirm(ctx context.Context, req ConfirmRequest) (*BookingResult, error) {
	start := time.Now()
	defer func() { metrics.ConfirmDuration.Observe(time.Since(start).Seconds()) }()

	if err := validateConfirm(req); err != nil {
		metrics.Confirmations.WithLabelValues("rejected").Inc()
		return nil, err
	}
	err := c.verifier.Verify(ctx, gateway.Confirmation{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Amount:    req.Amount,
	})
	if err != nil {
		log.Printf("[Confirm] Payment %s failed verification: %s\n", req.PaymentID, err.Error())
		metrics.Confirmations.WithLabelValues("rejected").Inc()
		return nil, err
	}

	// a stored booking is the authoritative fact; replays skip the catalog and the gateway
	stored, err := c.store.FindByPaymentID(ctx, req.PaymentID)
	if err == nil {
		return c.replay(ctx, stored), nil
	}
	if !types.IsNotFound(err) {
		metrics.Confirmations.WithLabelValues("failed").Inc()
		return nil, err
	}

	event, err := c.catalog.GetEvent(ctx, req.EventRef)
	if types.IsNotFound(err) {
		metrics.Confirmations.WithLabelValues("rejected").Inc()
		return nil, types.NewValidationError("eventRef", "does not reference a known event")
	}
	if err != nil {
		metrics.Confirmations.WithLabelValues("failed").Inc()
		return nil, err
	}

	currency := c.currency
	if c.checkAmt && req.OrderID != "" {
		order, err := c.gateway.FetchOrder(ctx, req.OrderID)
		if err != nil {
			metrics.Confirmations.WithLabelValues("failed").Inc()
			return nil, err
		}
		if order.Amount != req.Amount {
			metrics.Confirmations.WithLabelValues("rejected").Inc()
			return nil, &types.AuthenticityError{Reason: fmt.Sprintf("amount %d does not match order amount %d", req.Amount, order.Amount)}
		}
		if order.Currency != "" {
			currency = order.Currency
		}
	}

	provider := ""
	if c.gateway != nil {
		provider = c.gateway.Provider()
	}
	persisted, err := c.store.Persist(ctx, &models.Booking{
		EventID:   event.ID,
		UserEmail: strings.TrimSpace(req.UserEmail),
		Amount:    req.Amount,
		Currency:  currency,
		Provider:  provider,
		PaymentID: req.PaymentID,
		OrderID:   req.OrderID,
		Signature: req.Signature,
	})
	if err != nil {
		log.Printf("[Confirm] Could not persist booking for payment %s: %s\n", req.PaymentID, err.Error())
		metrics.Confirmations.WithLabelValues("failed").Inc()
		return nil, err
	}

	if persisted.Outcome == AlreadyExists {
		return c.replay(ctx, persisted.Booking), nil
	}
	result := &BookingResult{Booking: persisted.Booking, Persisted: true}
	metrics.Confirmations.WithLabelValues("inserted").Inc()
	log.Printf("[Confirm] Booking %s created for payment %s\n", persisted.Booking.ID, req.PaymentID)

	c.publish(ctx, persisted.Booking)
	c.deliver(ctx, result, event, "")
	return result, nil
}

// replay reports the current delivery progress of a booking that was already stored. Nothing is re-sent.
func (c *Confirmer) replay(ctx context.Context, booking *models.Booking) *BookingResult {
	metrics.Confirmations.WithLabelValues("replayed").Inc()
	result := &BookingResult{Booking: booking, Persisted: true, Replayed: true}
	d, err := c.store.Delivery(ctx, booking.ID)
	if err != nil {
		result.Errors = append(result.Errors, err)
		return result
	}
	result.State = d.State
	result.DocumentGenerated = d.DocumentKey != ""
	result.EmailSent = d.State == types.DELIVERY_DELIVERED
	return result
}

// Resend renders the ticket again when needed and re-sends it for an existing booking.
func (c *Confirmer) Resend(ctx context.Context, id string, rerender bool) (*BookingResult, error) {
	booking, err := c.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.redrive(ctx, booking, rerender)
}

func (c *Confirmer) redrive(ctx context.Context, booking *models.Booking, rerender bool) (*BookingResult, error) {
	event, err := c.eventFor(ctx, booking)
	if err != nil {
		return nil, err
	}
	delivery, err := c.store.Delivery(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	key := delivery.DocumentKey
	if rerender {
		key = ""
	}
	result := &BookingResult{Booking: booking, Persisted: true, State: delivery.State}
	c.deliver(ctx, result, event, key)
	return result, nil
}

// Redeliver retries bookings whose ticket was not delivered and were last touched before cutoff.
func (c *Confirmer) Redeliver(ctx context.Context, cutoff time.Time, maxAttempts, limit int) (int, error) {
	pending, err := c.store.PendingDeliveries(ctx, cutoff, maxAttempts, limit)
	if err != nil {
		return 0, err
	}
	delivered := 0
	for i := range pending {
		result, err := c.redrive(ctx, &pending[i], false)
		if err != nil {
			log.Printf("[Redeliver] Booking %s: %s\n", pending[i].ID, err.Error())
			continue
		}
		if result.EmailSent {
			delivered++
		}
	}
	if len(pending) > 0 {
		log.Printf("[Redeliver] Delivered %d of %d pending tickets\n", delivered, len(pending))
	}
	return delivered, nil
}

// Ticket returns the stored document for a booking, rendering it when missing.
func (c *Confirmer) Ticket(ctx context.Context, id string) (*tickets.Document, error) {
	booking, err := c.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	event, err := c.eventFor(ctx, booking)
	if err != nil {
		return nil, err
	}
	delivery, err := c.store.Delivery(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if delivery.DocumentKey != "" {
		doc, err := c.renderer.Load(ctx, booking, event, delivery.DocumentKey)
		if err == nil {
			return doc, nil
		}
		log.Printf("[Ticket] Stored document %s unavailable, rendering: %s\n", delivery.DocumentKey, err.Error())
	}
	doc, err := c.renderer.Render(ctx, booking, event)
	metrics.TicketsRendered.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		return nil, err
	}
	if err := c.store.RecordDocument(ctx, booking.ID, doc.Key); err != nil {
		log.Printf("[Ticket] Could not record document %s: %s\n", doc.Key, err.Error())
	}
	return doc, nil
}

// eventFor resolves the booking's event; a removed event is nil, not an error.
func (c *Confirmer) eventFor(ctx context.Context, b *models.Booking) (*models.Event, error) {
	events, err := c.catalog.GetEvents(ctx, []uuid.UUID{b.EventID})
	if err != nil {
		return nil, err
	}
	return events[b.EventID], nil
}

// deliver drives the document and email steps, recording progress on result.
// A non-empty key reuses the stored document instead of rendering.
func (c *Confirmer) deliver(ctx context.Context, result *BookingResult, event *models.Event, key string) {
	booking := result.Booking
	var doc *tickets.Document
	if key != "" {
		loaded, err := c.renderer.Load(ctx, booking, event, key)
		if err != nil {
			log.Printf("[Deliver] Stored document %s unavailable, rendering: %s\n", key, err.Error())
		} else if c.fromPaid(ctx, result) && c.advance(ctx, result, types.DELIVERY_DOCUMENT_READY, nil) {
			doc = loaded
		}
	}
	if doc == nil {
		if !c.advance(ctx, result, types.DELIVERY_DOCUMENT_PENDING, nil) {
			return
		}
		rendered, err := c.renderer.Render(ctx, booking, event)
		metrics.TicketsRendered.WithLabelValues(metrics.Result(err)).Inc()
		if err != nil {
			log.Printf("[Deliver] %s\n", err.Error())
			result.Errors = append(result.Errors, err)
			c.advance(ctx, result, types.DELIVERY_DOCUMENT_PENDING, func(d *models.TicketDelivery) {
				d.Attempts++
				d.LastError = err.Error()
			})
			return
		}
		if !c.advance(ctx, result, types.DELIVERY_DOCUMENT_READY, func(d *models.TicketDelivery) {
			d.DocumentKey = rendered.Key
			d.LastError = ""
		}) {
			return
		}
		doc = rendered
	}
	result.DocumentGenerated = true

	err := c.notifier.Send(ctx, &mailer.Message{
		To:      booking.UserEmail,
		Subject: ticketSubject,
		Body:    ticketBody,
		Attachment: &mailer.Attachment{
			Filename:    doc.Filename,
			ContentType: doc.ContentType,
			Content:     doc.Content,
			Key:         doc.Key,
		},
	})
	metrics.TicketsDelivered.WithLabelValues(metrics.Result(err)).Inc()
	if err != nil {
		log.Printf("[Deliver] %s\n", err.Error())
		result.Errors = append(result.Errors, err)
		c.advance(ctx, result, types.DELIVERY_FAILED, func(d *models.TicketDelivery) {
			d.Attempts++
			d.LastError = err.Error()
		})
		return
	}
	result.EmailSent = true
	c.advance(ctx, result, types.DELIVERY_DELIVERED, func(d *models.TicketDelivery) {
		now := time.Now()
		d.Attempts++
		d.LastError = ""
		d.DeliveredAt = &now
	})
}

// fromPaid moves a PAID delivery to DOCUMENT_PENDING so a stored document can mark it ready.
func (c *Confirmer) fromPaid(ctx context.Context, result *BookingResult) bool {
	if result.State != types.DELIVERY_PAID {
		return true
	}
	return c.advance(ctx, result, types.DELIVERY_DOCUMENT_PENDING, nil)
}

func (c *Confirmer) advance(ctx context.Context, result *BookingResult, to types.DeliveryState, fn func(*models.TicketDelivery)) bool {
	d, err := c.store.Advance(ctx, result.Booking.ID, to, fn)
	if err != nil {
		log.Printf("[Deliver] Booking %s could not move to %s: %s\n", result.Booking.ID, to, err.Error())
		result.Errors = append(result.Errors, err)
		return false
	}
	result.State = d.State
	return true
}

func (c *Confirmer) publish(ctx context.Context, b *models.Booking) {
	if c.publisher == nil {
		return
	}
	ctx, cancel := bound(ctx, c.pubWait)
	defer cancel()
	err := c.publisher.Publish(ctx, BookingConfirmedMessage{
		Type:      "booking.confirmed",
		BookingID: b.ID.String(),
		EventID:   b.EventID.String(),
		UserEmail: b.UserEmail,
		Amount:    b.Amount,
		Currency:  b.Currency,
		PaymentID: b.PaymentID,
		CreatedAt: b.CreatedAt,
	})
	if err != nil {
		log.Printf("[Confirm] Could not publish booking %s: %s\n", b.ID, err.Error())
	}
}
