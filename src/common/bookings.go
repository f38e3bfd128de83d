package common

import (
	"context"
	"errors"
	"log"
	"strings"
	"ticketing/src/lib/locks"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PersistOutcome int

const (
	Inserted PersistOutcome = iota + 1
	AlreadyExists
)

func (o PersistOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

type PersistResult struct {
	Outcome PersistOutcome
	Booking *models.Booking
}

// BookingStore owns the bookings and ticket_deliveries tables.
type BookingStore struct {
	db      *gorm.DB
	locker  locks.Locker
	catalog EventCatalog
	timeout time.Duration
}

func NewBookingStore(db *gorm.DB, locker locks.Locker, catalog EventCatalog, timeout time.Duration) *BookingStore {
	return &BookingStore{db: db, locker: locker, catalog: catalog, timeout: timeout}
}

// Persist records b unless a booking for the same payment id exists, in which
// case the stored booking is returned untouched.
func (s *BookingStore) Persist(ctx context.Context, b *models.Booking) (*PersistResult, error) {
	unlock, err := s.locker.Lock(ctx, "payment:"+b.PaymentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	dbctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var existing models.Booking
	outcome := Inserted
	err = s.db.WithContext(dbctx).Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where(&models.Booking{PaymentID: b.PaymentID}).
			First(&existing).
			Error
		if err == nil {
			outcome = AlreadyExists
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if b.ID == uuid.Nil {
			b.ID = uuid.New()
		}
		if err := tx.Create(b).Error; err != nil {
			return err
		}
		return tx.Create(&models.TicketDelivery{
			BookingID: b.ID,
			State:     types.DELIVERY_PAID,
		}).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// another instance won the insert without holding our lock
		log.Printf("[BookingStore] Duplicate payment id %s, reading stored booking\n", b.PaymentID)
		err = s.db.WithContext(dbctx).
			Where(&models.Booking{PaymentID: b.PaymentID}).
			First(&existing).
			Error
		outcome = AlreadyExists
	}
	if err != nil {
		return nil, err
	}
	if outcome == AlreadyExists {
		return &PersistResult{Outcome: AlreadyExists, Booking: &existing}, nil
	}
	return &PersistResult{Outcome: Inserted, Booking: b}, nil
}

// Find returns the stored booking for id.
func (s *BookingStore) Find(ctx context.Context, id string) (*models.Booking, error) {
	bookingID, err := uuid.Parse(id)
	if err != nil {
		return nil, types.NewValidationError("id", "must be a valid booking id")
	}
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var booking models.Booking
	err = s.db.WithContext(ctx).
		Where(&models.Booking{ID: bookingID}).
		First(&booking).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "booking", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindByPaymentID returns the booking recorded for a gateway payment id.
func (s *BookingStore) FindByPaymentID(ctx context.Context, paymentID string) (*models.Booking, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var booking models.Booking
	err := s.db.WithContext(ctx).
		Where(&models.Booking{PaymentID: paymentID}).
		First(&booking).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "booking", ID: paymentID}
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *BookingStore) GetByID(ctx context.Context, id string) (*types.APIResponseBooking, error) {
	booking, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	events, err := s.catalog.GetEvents(ctx, []uuid.UUID{booking.EventID})
	if err != nil {
		return nil, err
	}
	states, err := s.deliveryStates(ctx, []uuid.UUID{booking.ID})
	if err != nil {
		return nil, err
	}
	view := bookingView(booking, events[booking.EventID], states[booking.ID])
	return &view, nil
}

// ListByUserEmail returns the user's bookings oldest first. No bookings is an empty list.
func (s *BookingStore) ListByUserEmail(ctx context.Context, email string) ([]types.APIResponseBooking, error) {
	email = strings.TrimSpace(email)
	dbctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	var bookings []models.Booking
	err := s.db.WithContext(dbctx).
		Where(&models.Booking{UserEmail: email}).
		Order("created_at ASC").
		Order("id ASC").
		Find(&bookings).
		Error
	if err != nil {
		return nil, err
	}

	views := make([]types.APIResponseBooking, 0, len(bookings))
	if len(bookings) == 0 {
		return views, nil
	}
	eventIDs := make([]uuid.UUID, 0, len(bookings))
	bookingIDs := make([]uuid.UUID, 0, len(bookings))
	for _, b := range bookings {
		eventIDs = append(eventIDs, b.EventID)
		bookingIDs = append(bookingIDs, b.ID)
	}
	events, err := s.catalog.GetEvents(ctx, eventIDs)
	if err != nil {
		return nil, err
	}
	states, err := s.deliveryStates(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		views = append(views, bookingView(&bookings[i], events[bookings[i].EventID], states[bookings[i].ID]))
	}
	return views, nil
}

func (s *BookingStore) deliveryStates(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]types.DeliveryState, error) {
	ctx, cancel := bound(ctx, s.timeout)
	defer cancel()

	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, id.String())
	}
	var rows []models.TicketDelivery
	err := s.db.WithContext(ctx).
		Where("booking_id IN ?", refs).
		Find(&rows).
		Error
	if err != nil {
		return nil, err
	}
	states := make(map[uuid.UUID]types.DeliveryState, len(rows))
	for _, row := range rows {
		states[row.BookingID] = row.State
	}
	return states, nil
}

func bookingView(b *models.Booking, ev *models.Event, state types.DeliveryState) types.APIResponseBooking {
	view := types.APIResponseBooking{
		ID:        b.ID.String(),
		EventID:   b.EventID.String(),
		UserEmail: b.UserEmail,
		Amount:    b.Amount,
		Currency:  b.Currency,
		PaymentID: b.PaymentID,
		OrderID:   b.OrderID,
		CreatedAt: b.CreatedAt,
		State:     state,
	}
	if ev == nil {
		view.EventRemoved = true
		return view
	}
	date := ev.Date
	view.Event = &types.APIResponseEvent{
		ID:          ev.ID.String(),
		Title:       ev.Title,
		Date:        &date,
		Location:    ev.Location,
		Description: ev.Description,
		Price:       ev.Price,
		Images:      ev.ImageRefs(),
	}
	return view
}
