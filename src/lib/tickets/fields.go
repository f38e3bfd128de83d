package tickets

import (
	"fmt"
	"strings"
	"ticketing/src/models"

	"github.com/gosimple/slug"
)

const removedEventTitle = "Event removed"

// Fields is the content printed on a ticket. It depends only on the Booking and Event.
type Fields struct {
	Title       string
	Location    string
	Date        string
	Description string
	BookingID   string
	UserEmail   string
	AmountPaid  string
	PaymentID   string
	OrderID     string
}

func FieldsFor(b *models.Booking, ev *models.Event) Fields {
	f := Fields{
		Title:      removedEventTitle,
		BookingID:  b.ID.String(),
		UserEmail:  b.UserEmail,
		AmountPaid: FormatAmount(b.Amount, b.Currency),
		PaymentID:  b.PaymentID,
		OrderID:    b.OrderID,
	}
	if ev == nil {
		return f
	}
	if strings.TrimSpace(ev.Title) != "" {
		f.Title = ev.Title
	} else {
		f.Title = "Untitled event"
	}
	f.Location = ev.Location
	if !ev.Date.IsZero() {
		f.Date = ev.Date.UTC().Format("Mon, 02 Jan 2006 15:04 MST")
	}
	if ev.Description != nil {
		f.Description = *ev.Description
	}
	return f
}

// FormatAmount prints a minor-unit amount in major units, e.g. 49900 INR as "INR 499.00".
func FormatAmount(minor int64, currency string) string {
	if currency == "" {
		currency = "INR"
	}
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s %s%d.%02d", strings.ToUpper(currency), sign, minor/100, minor%100)
}

// Filename is the attachment name shown to the purchaser.
func Filename(ev *models.Event) string {
	if ev == nil || slug.Make(ev.Title) == "" {
		return "ticket.pdf"
	}
	return fmt.Sprintf("%s-ticket.pdf", slug.Make(ev.Title))
}

// Key is the storage key of the document for a booking.
func Key(b *models.Booking) string {
	return fmt.Sprintf("tickets/ticket-%s.pdf", b.ID.String())
}

func (f Fields) lines() [][2]string {
	rows := [][2]string{
		{"Event", f.Title},
		{"Location", f.Location},
		{"Date", f.Date},
		{"Booking ID", f.BookingID},
		{"User Email", f.UserEmail},
		{"Amount Paid", f.AmountPaid},
		{"Payment ID", f.PaymentID},
	}
	if f.OrderID != "" {
		rows = append(rows, [2]string{"Order ID", f.OrderID})
	}
	return rows
}

