package common

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"ticketing/src/db"
	"ticketing/src/lib/gateway"
	"ticketing/src/lib/locks"
	"ticketing/src/lib/mailer"
	"ticketing/src/lib/storage"
	"ticketing/src/lib/tickets"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "rzp_test_secret"

type fakeGateway struct {
	mu       sync.Mutex
	orders   map[string]*gateway.Order
	fetchErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: make(map[string]*gateway.Order)}
}

func (g *fakeGateway) Provider() string { return gateway.ProviderRazorpay }

func (g *fakeGateway) CreateOrder(_ context.Context, amount int64, currency string) (*gateway.Order, error) {
	if amount <= 0 {
		return nil, types.NewValidationError("amount", "must be positive")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	o := &gateway.Order{
		ID:       fmt.Sprintf("order_%d", len(g.orders)+1),
		Amount:   amount,
		Currency: currency,
		Receipt:  "receipt_1700000000000",
		Status:   "created",
	}
	g.orders[o.ID] = o
	return o, nil
}

func (g *fakeGateway) FetchOrder(_ context.Context, orderID string) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fetchErr != nil {
		return nil, &types.GatewayError{Op: "fetch order", Err: g.fetchErr}
	}
	o, ok := g.orders[orderID]
	if !ok {
		return nil, &types.GatewayError{Op: "fetch order", Err: errors.New("order not found")}
	}
	return o, nil
}

// recordingTransport captures sent mail and fails while failing is set.
type recordingTransport struct {
	mu      sync.Mutex
	sent    []*mailer.Message
	failing atomic.Bool
}

func (r *recordingTransport) Send(_ context.Context, msg *mailer.Message) error {
	if r.failing.Load() {
		return errors.New("smtp: 421 service not available")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) messages() []*mailer.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*mailer.Message(nil), r.sent...)
}

// flakyStore wraps a store and fails writes while failing is set.
type flakyStore struct {
	storage.ObjectStore
	failing atomic.Bool
}

func (s *flakyStore) Put(ctx context.Context, key, contentType string, body []byte) error {
	if s.failing.Load() {
		return errors.New("storage unavailable")
	}
	return s.ObjectStore.Put(ctx, key, contentType, body)
}

type harness struct {
	db        *gorm.DB
	store     *BookingStore
	catalog   *GormEventCatalog
	gateway   *fakeGateway
	verifier  *gateway.SignatureVerifier
	transport *recordingTransport
	objects   *flakyStore
	confirmer *Confirmer
	event     *models.Event
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenDialector(sqlite.Open("file::memory:"))
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// one connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := newTestDB(t)

	local, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	objects := &flakyStore{ObjectStore: local}
	renderer, err := tickets.NewRenderer(objects, "")
	require.NoError(t, err)

	h := &harness{
		db:        gdb,
		catalog:   NewEventCatalog(gdb, time.Second),
		gateway:   newFakeGateway(),
		verifier:  gateway.NewSignatureVerifier(testSecret),
		transport: &recordingTransport{},
		objects:   objects,
	}
	h.store = NewBookingStore(gdb, locks.NewKeyedMutex(), h.catalog, time.Second)
	h.confirmer, err = NewConfirmer(ConfirmerDeps{
		Store:            h.store,
		Catalog:          h.catalog,
		Verifier:         h.verifier,
		Renderer:         renderer,
		Notifier:         mailer.New(h.transport, 1, time.Second),
		Gateway:          h.gateway,
		CheckOrderAmount: true,
		Currency:         "INR",
	})
	require.NoError(t, err)
	h.event = h.addEvent(t, "Jazz Night", 499)
	return h
}

func (h *harness) addEvent(t *testing.T, title string, price int64) *models.Event {
	t.Helper()
	desc := "Live at the park"
	ev := &models.Event{
		ID:          uuid.New(),
		Title:       title,
		Date:        time.Date(2025, 4, 12, 19, 30, 0, 0, time.UTC),
		Location:    "Mumbai",
		Description: &desc,
		Price:       price,
		Images:      types.JSONBArray{"events/jazz.png"},
	}
	require.NoError(t, h.db.Create(ev).Error)
	return ev
}

// paid creates an order for amount and returns a correctly signed confirmation.
func (h *harness) paid(t *testing.T, ev *models.Event, email string, amount int64, paymentID string) ConfirmRequest {
	t.Helper()
	order, err := h.gateway.CreateOrder(context.Background(), amount, "INR")
	require.NoError(t, err)
	return ConfirmRequest{
		EventRef:  ev.ID.String(),
		UserEmail: email,
		Amount:    amount,
		PaymentID: paymentID,
		OrderID:   order.ID,
		Signature: h.verifier.Sign(order.ID, paymentID),
	}
}

func (h *harness) bookingCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(&models.Booking{}).Count(&n).Error)
	return n
}
