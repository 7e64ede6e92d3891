package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Stream names for the store's change streams.
const (
	StreamStories   = "stories"
	StreamHeadlines = "headlines"
)

// Change event names, mirroring the store capability contract. Nothing in
// this system deletes rows, but consumers must tolerate REMOVE.
const (
	EventInsert = "INSERT"
	EventModify = "MODIFY"
	EventRemove = "REMOVE"
)

// ChangeEvent is one row of the change stream: a write to stories or
// headlines captured in the same transaction as the write itself.
// Delivery to consumers is at-least-once.
type ChangeEvent struct {
	ID           int64           `json:"id"`
	Stream       string          `json:"stream"`
	EventName    string          `json:"event_name"`
	YearMonthDay string          `json:"year_month_day"`
	RecordID     string          `json:"record_id"`
	NewImage     json.RawMessage `json:"new_image"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Story decodes the event's new image as a Story.
func (e *ChangeEvent) Story() (Story, error) {
	var s Story
	if err := json.Unmarshal(e.NewImage, &s); err != nil {
		return Story{}, fmt.Errorf("failed to decode story image for event %d: %w", e.ID, err)
	}
	return s, nil
}

// Headline decodes the event's new image as a Headline.
func (e *ChangeEvent) Headline() (Headline, error) {
	var h Headline
	if err := json.Unmarshal(e.NewImage, &h); err != nil {
		return Headline{}, fmt.Errorf("failed to decode headline image for event %d: %w", e.ID, err)
	}
	return h, nil
}
