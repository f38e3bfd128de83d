package common

import (
	"context"
	"errors"
	"ticketing/src/models"
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventCatalog is the read-only view of events owned by the catalog service.
type EventCatalog interface {
	GetEvent(ctx context.Context, ref string) (*models.Event, error)
	GetEvents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Event, error)
}

type GormEventCatalog struct {
	db      *gorm.DB
	timeout time.Duration
}

func NewEventCatalog(db *gorm.DB, timeout time.Duration) *GormEventCatalog {
	return &GormEventCatalog{db: db, timeout: timeout}
}

func (c *GormEventCatalog) GetEvent(ctx context.Context, ref string) (*models.Event, error) {
	id, err := uuid.Parse(ref)
	if err != nil {
		return nil, types.NewValidationError("eventRef", "must be a valid event id")
	}
	ctx, cancel := bound(ctx, c.timeout)
	defer cancel()

	var event models.Event
	err = c.db.WithContext(ctx).
		Where(&models.Event{ID: id}).
		First(&event).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &types.NotFoundError{Kind: "event", ID: ref}
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

// GetEvents resolves ids in one query. Missing ids are simply absent from the map.
func (c *GormEventCatalog) GetEvents(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Event, error) {
	found := make(map[uuid.UUID]*models.Event, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	ctx, cancel := bound(ctx, c.timeout)
	defer cancel()

	refs := make([]string, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, id.String())
	}
	var events []models.Event
	err := c.db.WithContext(ctx).
		Where("id IN ?", refs).
		Find(&events).
		Error
	if err != nil {
		return nil, err
	}
	for i := range events {
		found[events[i].ID] = &events[i]
	}
	return found, nil
}

func bound(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
