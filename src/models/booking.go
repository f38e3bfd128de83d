package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking is written once on confirmation and never updated.
type Booking struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	EventID   uuid.UUID `gorm:"type:uuid;index" json:"event_id"`
	UserEmail string    `gorm:"index;not null" json:"user_email"`
	Amount    int64     `gorm:"not null" json:"amount"`
	Currency  string    `json:"currency,omitempty"`
	Provider  string    `json:"provider,omitempty"`
	PaymentID string    `gorm:"uniqueIndex:idx_bookings_payment_id;not null" json:"payment_id"`
	OrderID   string    `json:"order_id,omitempty"`
	Signature string    `json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime:nano;index" json:"created_at"`
}
