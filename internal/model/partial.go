package model

import "time"

// A Partial is a possibly-incomplete issue row as carried by change events.
// Every optional field is a pointer: nil means "not present in the event",
// which is a valid state and never an error. Merge rules live in the store.
type Partial struct {
	ID            string
	Title         *string
	Image         *string
	DeviceID      *string
	Category      *string
	Latitude      *float64
	Longitude     *float64
	Status        *string
	ReactionCount *int
	Views         *int
	CreatedAt     *time.Time
}

// Issue materializes the partial into a full issue, using zero values for
// absent fields. Used when an insert event has to be built from a partial row.
func (p *Partial) Issue() *Issue {
	issue := &Issue{}
	issue.ID = p.ID
	if p.CreatedAt != nil {
		issue.SetCreatedAt(*p.CreatedAt)
	}
	if p.Title != nil {
		issue.Title = *p.Title
	}
	if p.Image != nil {
		issue.Image = *p.Image
	}
	if p.DeviceID != nil {
		issue.DeviceID = *p.DeviceID
	}
	if p.Category != nil {
		issue.Category = *p.Category
	}
	issue.Latitude = p.Latitude
	issue.Longitude = p.Longitude
	if p.Status != nil {
		issue.Status = *p.Status
	}
	if p.ReactionCount != nil {
		issue.ReactionCount = *p.ReactionCount
	}
	if p.Views != nil {
		issue.Views = *p.Views
	}
	return issue
}
