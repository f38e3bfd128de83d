package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

// TicketDelivery tracks document and email progress for one Booking.
type TicketDelivery struct {
	BookingID   uuid.UUID           `gorm:"primarykey;type:uuid" json:"booking_id"`
	State       types.DeliveryState `gorm:"index;not null" json:"state"`
	DocumentKey string              `json:"document_key,omitempty"`
	Attempts    int                 `json:"attempts"`
	LastError   string              `json:"last_error,omitempty"`
	DeliveredAt *time.Time          `json:"delivered_at,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime:nano" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:nano" json:"updated_at"`
}
