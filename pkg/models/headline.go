package models

import "time"

// Headline is one satirical variant of a Story. Created by the subvert
// worker with no tournament fields; only the tournament engine mutates it
// afterwards. Headlines are never deleted.
type Headline struct {
	YearMonthDay string `json:"YearMonthDay"`
	HeadlineID   string `json:"HeadlineId"`

	// Headline is the current text; a polish pass may rewrite it, in which
	// case OriginalSubverted preserves the pre-polish text.
	Headline          string  `json:"Headline"`
	OriginalHeadline  string  `json:"OriginalHeadline"`
	OriginalSubverted *string `json:"OriginalSubverted,omitempty"`

	Angle      string    `json:"Angle"`
	AngleSetup string    `json:"AngleSetup"`
	StoryID    string    `json:"StoryId"`
	CreateTime time.Time `json:"CreateTime"`

	// Rank is the position within the day's last tournament run; only
	// survivors carry one. CrossDayRank is assigned by the cross-day
	// tournament and coexists with Rank.
	Rank            *int  `json:"Rank,omitempty"`
	CrossDayRank    *int  `json:"CrossDayRank,omitempty"`
	TournamentBatch *int  `json:"TournamentBatch,omitempty"`
	Survived        *bool `json:"Survived,omitempty"`
}

// IsSurvivor reports whether the headline is in the day's live cohort.
func (h *Headline) IsSurvivor() bool {
	return h.Survived != nil && *h.Survived
}

// Polished reports whether a polish pass already rewrote this headline.
// The tournament engine uses it as the do-not-repolish guard.
func (h *Headline) Polished() bool {
	return h.OriginalSubverted != nil
}

// InTournament reports whether the headline has been through any run.
func (h *Headline) InTournament() bool {
	return h.TournamentBatch != nil
}
