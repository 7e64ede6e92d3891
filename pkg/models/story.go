// Package models defines the shared data model: stories, headlines, the
// word bank, and the change events that flow between pipeline components.
package models

import "time"

// Story is one real news item as fetched from the upstream feed.
// Keyed by (YearMonthDay, StoryID); unique per (YearMonthDay, Title).
// Stories are immutable after ingest.
type Story struct {
	YearMonthDay string `json:"YearMonthDay"`
	StoryID      string `json:"StoryId"`

	Title       string `json:"Title"`
	Description string `json:"Description"`
	// PublishedAt keeps the feed's raw ISO 8601 pubDate string; YearMonthDay
	// is derived from it at ingest time.
	PublishedAt string `json:"PublishedAt"`
	Author      string `json:"Author,omitempty"`
	Content     string `json:"Content,omitempty"`
	URL         string `json:"Url"`
	ImageURL    string `json:"ImageUrl"`
	VideoURL    string `json:"VideoUrl,omitempty"`

	Language string   `json:"Language,omitempty"`
	Country  string   `json:"Country,omitempty"`
	Keywords []string `json:"Keywords,omitempty"`
	Category []string `json:"Category,omitempty"`

	// FetchCategory records how the story entered the pipeline: a feed
	// category name, "wildcard", or "manual:<query>" for CLI fetches.
	FetchCategory string    `json:"FetchCategory"`
	Source        string    `json:"Source"`
	RetrievedTime time.Time `json:"RetrievedTime"`
}
