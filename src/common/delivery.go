package common

import (
	"context"
	"errors"
	"fmt"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var transitions = map[types.DeliveryState][]types.DeliveryState{
	types.DELIVERY_PAID:             {types.DELIVERY_DOCUMENT_PENDING},
	types.DELIVERY_DOCUMENT_PENDING: {types.DELIVERY_DOCUMENT_PENDING, types.DELIVERY_DOCUMENT_READY},
	types.DELIVERY_DOCUMENT_READY:   {types.DELIVERY_DOCUMENT_READY, types.DELIVERY_DOCUMENT_PENDING, types.DELIVERY_DELIVERED, types.DELIVERY_FAILED},
	types.DELIVERY_FAILED:           {types.DELIVERY_DOCUMENT_READY, types.DELIVERY_DOCUMENT_PENDING},
	types.DELIVERY_DELIVERED:        {types.DELIVERY_DOCUMENT_READY, types.DELIVERY_DOCUMENT_PENDING},
}

func CanTransition(from, to types.DeliveryState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type InvalidTransitionError struct {
	From, To types.DeliveryState
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid delivery transition %s -> %s", e.From, e.To)
}

// Delivery returns the delivery row for a booking. Bookings stored before
// deliveries were tracked get a PAID row on first access.
func (s *BookingStore) Delivery(ctx context.Context, bookingID uuid.UUID) (*models.TicketDelivery, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	delivery := models.TicketDelivery{BookingID: bookingID, State: types.DELIVERY_PAID}
	err := s.db.WithContext(ctx).
		Where(&models.TicketDelivery{BookingID: bookingID}).
		FirstOrCreate(&delivery).
		Error
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// Advance moves a booking's delivery to state `to`, applying fn to the row before saving.
func (s *BookingStore) Advance(ctx context.Context, bookingID uuid.UUID, to types.DeliveryState, fn func(*models.TicketDelivery)) (*models.TicketDelivery, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var delivery models.TicketDelivery
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where(&models.TicketDelivery{BookingID: bookingID}).
			First(&delivery).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			delivery = models.TicketDelivery{BookingID: bookingID, State: types.DELIVERY_PAID}
			err = tx.Create(&delivery).Error
		}
		if err != nil {
			return err
		}
		if !CanTransition(delivery.State, to) {
			return &InvalidTransitionError{From: delivery.State, To: to}
		}
		delivery.State = to
		if fn != nil {
			fn(&delivery)
		}
		return tx.Save(&delivery).Error
	})
	if err != nil {
		return nil, err
	}
	return &delivery, nil
}

// RecordDocument stores the document key on a booking's delivery row without changing its state.
func (s *BookingStore) RecordDocument(ctx context.Context, bookingID uuid.UUID, key string) error {
	if _, err := s.Delivery(ctx, bookingID); err != nil {
		return err
	}
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	return s.db.WithContext(ctx).
		Model(&models.TicketDelivery{}).
		Where(&models.TicketDelivery{BookingID: bookingID}).
		Update("document_key", key).
		Error
}

// PendingDeliveries lists bookings whose ticket never reached the user, last touched before cutoff.
func (s *BookingStore) PendingDeliveries(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]models.Booking, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Joins("JOIN ticket_deliveries ON ticket_deliveries.booking_id = bookings.id").
		Where("ticket_deliveries.state IN ?", []types.DeliveryState{
			types.DELIVERY_PAID,
			types.DELIVERY_DOCUMENT_PENDING,
			types.DELIVERY_DOCUMENT_READY,
			types.DELIVERY_FAILED,
		}).
		Where("ticket_deliveries.attempts < ?", maxAttempts).
		Where("ticket_deliveries.updated_at < ?", cutoff).
		Order("ticket_deliveries.updated_at ASC").
		Limit(limit).
		Find(&bookings).
		Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
