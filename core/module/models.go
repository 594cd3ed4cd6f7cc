package module

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/yles/portal/core"
)

// Module is a scheduled activity of the event.
type Module struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Day         int        `json:"day"`
	StartTime   *time.Time `json:"start_time"` // UTC
	Venue       string     `json:"venue"`
	VenueMapURL string     `json:"venue_map_url"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"created_at"` // UTC
}

// NewModule contains information needed to create a Module or replace an existing one.
type NewModule struct {
	Name        string     `json:"name" validate:"notblank"`
	Day         int        `json:"day" validate:"min=1"`
	StartTime   *time.Time `json:"start_time"`
	Venue       string     `json:"venue"`
	VenueMapURL string     `json:"venue_map_url" validate:"omitempty,url"`
	Description string     `json:"description"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Venue = core.CleanString(nm.Venue)
	nm.VenueMapURL = core.CleanString(nm.VenueMapURL)
	nm.Description = core.CleanString(nm.Description)
	if nm.StartTime != nil {
		st := nm.StartTime.UTC()
		nm.StartTime = &st
	}
	return validate.Struct(nm)
}

// Less orders modules by day, then start time (unscheduled last), then name.
func Less(a, b Module) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	switch {
	case a.StartTime == nil && b.StartTime != nil:
		return false
	case a.StartTime != nil && b.StartTime == nil:
		return true
	case a.StartTime != nil && b.StartTime != nil && !a.StartTime.Equal(*b.StartTime):
		return a.StartTime.Before(*b.StartTime)
	}
	return a.Name < b.Name
}
