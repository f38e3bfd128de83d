package models

import (
	"ticketing/src/types"
	"time"

	"github.com/google/uuid"
)

// Event belongs to the catalog. This service only reads it.
type Event struct {
	ID          uuid.UUID        `gorm:"primarykey;type:uuid" json:"id"`
	Title       string           `json:"title"`
	Date        time.Time        `json:"date"`
	Location    string           `json:"location"`
	Description *string          `json:"description,omitempty"`
	Price       int64            `json:"price"`
	Images      types.JSONBArray `gorm:"type:jsonb" json:"images,omitempty"`

	types.Timestamps
}

func (e *Event) ImageRefs() []string {
	refs := make([]string, 0, len(e.Images))
	for _, img := range e.Images {
		if s, ok := img.(string); ok {
			refs = append(refs, s)
		}
	}
	return refs
}
