package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
)

// CreateEventInput holds the validated payload to create a market event.
type CreateEventInput struct {
	Name     string     `json:"name" validate:"required"`
	Location *string    `json:"location,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

// UpdateEventInput holds optional mutation values for a market event.
type UpdateEventInput struct {
	Name     *string    `json:"name,omitempty"`
	Location *string    `json:"location,omitempty"`
	StartsAt *time.Time `json:"starts_at,omitempty"`
	EndsAt   *time.Time `json:"ends_at,omitempty"`
}

// EventDTO is the API-facing view of a market event.
type EventDTO struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Location    *string    `json:"location,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
	StagedCount int64      `json:"staged_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func eventToDTO(event *models.MarketEvent, stagedCount int64) *EventDTO {
	if event == nil {
		return nil
	}
	return &EventDTO{
		ID:          event.ID,
		Name:        event.Name,
		Location:    event.Location,
		StartsAt:    event.StartsAt,
		EndsAt:      event.EndsAt,
		StagedCount: stagedCount,
		CreatedAt:   event.CreatedAt,
		UpdatedAt:   event.UpdatedAt,
	}
}
