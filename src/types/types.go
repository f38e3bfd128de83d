package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type JSONBArray []any

func (a JSONBArray) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONBArray) Scan(value any) error {
	b, err := scanBytes(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &a)
}

// postgres hands jsonb back as []byte, sqlite as string.
func scanBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return []byte("null"), nil
	}
	return nil, errors.New("type assertion to []byte failed")
}

type CreateOrderRequestBody struct {
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency,omitempty" binding:"omitempty,currencycode"`
}

type ConfirmBookingRequestBody struct {
	EventRef  string `json:"eventRef" binding:"required"`
	UserEmail string `json:"userEmail" binding:"required,email"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	PaymentID string `json:"paymentId" binding:"required"`
	OrderID   string `json:"orderId,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type BookingURIParams struct {
	ID string `uri:"id" binding:"required"`
}

type UserBookingsURIParams struct {
	Email string `uri:"email" binding:"required"`
}

type BookingsQueryFilters struct {
	User string `form:"user" binding:"required"`
}

type ResendQueryParams struct {
	Rerender bool `form:"rerender,omitempty"`
}

type TicketQueryParams struct {
	// Link asks for a temporary download URL instead of the document body.
	Link bool `form:"link,omitempty"`
}

type DeliveryState string

const (
	DELIVERY_PAID             DeliveryState = "PAID"
	DELIVERY_DOCUMENT_PENDING DeliveryState = "DOCUMENT_PENDING"
	DELIVERY_DOCUMENT_READY   DeliveryState = "DOCUMENT_READY"
	DELIVERY_DELIVERED        DeliveryState = "DELIVERED"
	DELIVERY_FAILED           DeliveryState = "DELIVERY_FAILED"
)

type APIResponseOrder struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type APIResponseEvent struct {
	ID          string     `json:"id"`
	Title       string     `json:"title,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
	Location    string     `json:"location,omitempty"`
	Description *string    `json:"description,omitempty"`
	Price       int64      `json:"price,omitempty"`
	Images      []string   `json:"images,omitempty"`
}

type APIResponseBooking struct {
	ID           string            `json:"id"`
	EventID      string            `json:"eventId"`
	UserEmail    string            `json:"userEmail"`
	Amount       int64             `json:"amount"`
	Currency     string            `json:"currency,omitempty"`
	PaymentID    string            `json:"paymentId"`
	OrderID      string            `json:"orderId,omitempty"`
	CreatedAt    time.Time         `json:"createdAt"`
	State        DeliveryState     `json:"state,omitempty"`
	Event        *APIResponseEvent `json:"event"`
	EventRemoved bool              `json:"eventRemoved,omitempty"`
}

type APIResponseError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type APIResponseConfirm struct {
	BookingID         string             `json:"bookingId"`
	Replayed          bool               `json:"replayed"`
	Persisted         bool               `json:"persisted"`
	DocumentGenerated bool               `json:"documentGenerated"`
	DocumentDelivered bool               `json:"documentDelivered"`
	State             DeliveryState      `json:"state"`
	Errors            []APIResponseError `json:"errors"`
}
