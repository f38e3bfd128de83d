package common

import (
	"context"
	"regexp"
	"testing"
	"ticketing/src/db"
	"ticketing/src/lib/locks"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
)

func TestPersist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.store.Persist(ctx, &models.Booking{
		EventID:   h.event.ID,
		UserEmail: "a@x.com",
		Amount:    49900,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)
	assert.Equal(t, Inserted, first.Outcome)
	assert.NotEqual(t, uuid.Nil, first.Booking.ID)

	second, err := h.store.Persist(ctx, &models.Booking{
		EventID:   h.event.ID,
		UserEmail: "someone-else@x.com",
		Amount:    1,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, second.Outcome)
	assert.Equal(t, first.Booking.ID, second.Booking.ID)
	assert.Equal(t, "a@x.com", second.Booking.UserEmail)

	d, err := h.store.Delivery(ctx, first.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, types.DELIVERY_PAID, d.State)
}

func TestFindByPaymentID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.store.Persist(ctx, &models.Booking{
		EventID:   h.event.ID,
		UserEmail: "a@x.com",
		Amount:    49900,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)

	found, err := h.store.FindByPaymentID(ctx, "pay_1")
	require.NoError(t, err)
	assert.Equal(t, res.Booking.ID, found.ID)

	_, err = h.store.FindByPaymentID(ctx, "pay_missing")
	assert.True(t, types.IsNotFound(err), "got %v", err)
}

func TestGetByID(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.store.GetByID(ctx, "not-a-uuid")
	assert.True(t, types.IsValidation(err))

	_, err = h.store.GetByID(ctx, uuid.NewString())
	assert.True(t, types.IsNotFound(err))

	res, err := h.store.Persist(ctx, &models.Booking{
		EventID:   h.event.ID,
		UserEmail: "a@x.com",
		Amount:    49900,
		Currency:  "INR",
		PaymentID: "pay_1",
	})
	require.NoError(t, err)
	view, err := h.store.GetByID(ctx, res.Booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, res.Booking.ID.String(), view.ID)
	assert.Equal(t, h.event.ID.String(), view.EventID)
	assert.Equal(t, types.DELIVERY_PAID, view.State)
	assert.False(t, view.EventRemoved)
}

func TestListByUserEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := h.addEvent(t, "Comedy Hour", 299)

	for i, ev := range []*models.Event{h.event, other} {
		_, err := h.store.Persist(ctx, &models.Booking{
			EventID:   ev.ID,
			UserEmail: "a@x.com",
			Amount:    ev.Price * 100,
			PaymentID: []string{"pay_1", "pay_2"}[i],
			CreatedAt: time.Date(2025, 3, 1+i, 10, 0, 0, 0, time.UTC),
		})
		require.NoError(t, err)
	}
	_, err := h.store.Persist(ctx, &models.Booking{
		EventID:   h.event.ID,
		UserEmail: "b@x.com",
		Amount:    49900,
		PaymentID: "pay_3",
	})
	require.NoError(t, err)

	// the catalog drops an event after it was booked
	require.NoError(t, h.db.Delete(other).Error)

	list, err := h.store.ListByUserEmail(ctx, "a@x.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "pay_1", list[0].PaymentID)
	require.NotNil(t, list[0].Event)
	assert.Equal(t, "Jazz Night", list[0].Event.Title)
	assert.Equal(t, "pay_2", list[1].PaymentID)
	assert.Nil(t, list[1].Event)
	assert.True(t, list[1].EventRemoved)

	padded, err := h.store.ListByUserEmail(ctx, "  a@x.com\t")
	require.NoError(t, err)
	assert.Len(t, padded, 2)

	none, err := h.store.ListByUserEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]types.DeliveryState{
		{types.DELIVERY_PAID, types.DELIVERY_DOCUMENT_PENDING},
		{types.DELIVERY_DOCUMENT_PENDING, types.DELIVERY_DOCUMENT_PENDING},
		{types.DELIVERY_DOCUMENT_PENDING, types.DELIVERY_DOCUMENT_READY},
		{types.DELIVERY_DOCUMENT_READY, types.DELIVERY_DELIVERED},
		{types.DELIVERY_DOCUMENT_READY, types.DELIVERY_FAILED},
		{types.DELIVERY_FAILED, types.DELIVERY_DOCUMENT_READY},
		{types.DELIVERY_DELIVERED, types.DELIVERY_DOCUMENT_READY},
	}
	for _, pair := range allowed {
		assert.True(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
	denied := [][2]types.DeliveryState{
		{types.DELIVERY_PAID, types.DELIVERY_DELIVERED},
		{types.DELIVERY_PAID, types.DELIVERY_DOCUMENT_READY},
		{types.DELIVERY_DOCUMENT_PENDING, types.DELIVERY_DELIVERED},
		{types.DELIVERY_FAILED, types.DELIVERY_DELIVERED},
		{types.DELIVERY_DELIVERED, types.DELIVERY_PAID},
	}
	for _, pair := range denied {
		assert.False(t, CanTransition(pair[0], pair[1]), "%s -> %s", pair[0], pair[1])
	}
}

func TestAdvanceRejectsInvalidTransition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	res, err := h.store.Persist(ctx, &models.Booking{
		EventID:   h.event.ID,
		UserEmail: "a@x.com",
		Amount:    49900,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)

	_, err = h.store.Advance(ctx, res.Booking.ID, types.DELIVERY_DELIVERED, nil)
	var ite *InvalidTransitionError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, types.DELIVERY_PAID, ite.From)

	d, err := h.store.Advance(ctx, res.Booking.ID, types.DELIVERY_DOCUMENT_PENDING, func(d *models.TicketDelivery) {
		d.LastError = "renderer busy"
	})
	require.NoError(t, err)
	assert.Equal(t, types.DELIVERY_DOCUMENT_PENDING, d.State)
	assert.Equal(t, "renderer busy", d.LastError)
}

func newMockStore(t *testing.T) (*BookingStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := db.OpenDialector(postgres.New(postgres.Config{Conn: sqlDB}))
	require.NoError(t, err)
	return NewBookingStore(gdb, locks.NewKeyedMutex(), NewEventCatalog(gdb, time.Second), time.Second), mock
}

func TestFindNotFoundPostgres(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.NewString()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE "bookings"."id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id"}))

	_, err := store.Find(context.Background(), id)
	assert.True(t, types.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistDuplicateKeyPostgres(t *testing.T) {
	store, mock := newMockStore(t)
	existing := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE "bookings"."payment_id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id"}))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "bookings"`)).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "bookings" WHERE "bookings"."payment_id" = $1`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_id", "user_email"}).
			AddRow(existing.String(), "pay_1", "a@x.com"))

	res, err := store.Persist(context.Background(), &models.Booking{
		EventID:   uuid.New(),
		UserEmail: "b@x.com",
		Amount:    49900,
		PaymentID: "pay_1",
	})
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, res.Outcome)
	assert.Equal(t, existing, res.Booking.ID)
	assert.Equal(t, "a@x.com", res.Booking.UserEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}
