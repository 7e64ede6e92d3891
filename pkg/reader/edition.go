package reader

import (
	"context"
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/satyrpress/satyr/pkg/models"
	"github.com/satyrpress/satyr/pkg/words"
)

// fallbackPaperName is used when the word bank cannot be reached.
const fallbackPaperName = "The Satyr Press"

// Edition is one reader response. Field names are the wire contract; the
// frontend consumes them as-is.
type Edition struct {
	PaperName    string         `json:"PaperName"`
	Stories      []StoryView    `json:"Stories"`
	TopHeadlines []HeadlineView `json:"TopHeadlines"`
}

// StoryView is one enriched front-page slot: the selected headline joined
// with its story and its sibling headlines.
type StoryView struct {
	YearMonthDay     string         `json:"YearMonthDay"`
	HeadlineID       string         `json:"HeadlineId"`
	Headline         string         `json:"Headline"`
	OriginalHeadline string         `json:"OriginalHeadline"`
	Angle            string         `json:"Angle"`
	AngleSetup       string         `json:"AngleSetup,omitempty"`
	StoryID          string         `json:"StoryId"`
	Description      string         `json:"Description"`
	URL              string         `json:"Url"`
	ImageURL         string         `json:"ImageUrl"`
	Source           string         `json:"Source"`
	PublishedAt      string         `json:"PublishedAt"`
	ShowOriginal     bool           `json:"ShowOriginal"`
	SiblingHeadlines []HeadlineView `json:"SiblingHeadlines"`
}

// HeadlineView is the list-view shape shared by TopHeadlines and sibling
// lists. Rank carries whichever rank field the edition was sorted by.
type HeadlineView struct {
	YearMonthDay string `json:"YearMonthDay"`
	HeadlineID   string `json:"HeadlineId"`
	Headline     string `json:"Headline"`
	Angle        string `json:"Angle"`
	Rank         *int   `json:"Rank,omitempty"`
}

// assemble enriches the selected headlines into the final edition. A
// slug-requested headline never shows its original: the reader asked for
// the satirical one by id.
func (s *Selector) assemble(ctx context.Context, sorted, selected []models.Headline,
	slug string, rankOf func(models.Headline) *int) (Edition, error) {

	lookup, err := s.storyLookup(ctx, selected)
	if err != nil {
		return Edition{}, err
	}

	stories := make([]StoryView, 0, len(selected))
	for _, h := range selected {
		// A missing story row leaves the story fields blank; the headline
		// still runs.
		story, ok := lookup[storyKey(h)]
		if !ok {
			s.log.Warn("Headline has no story row",
				"day", h.YearMonthDay, "headline", h.HeadlineID, "story", h.StoryID)
		}

		original := h.OriginalHeadline
		if original == "" {
			original = story.Title
		}

		stories = append(stories, StoryView{
			YearMonthDay:     h.YearMonthDay,
			HeadlineID:       h.HeadlineID,
			Headline:         h.Headline,
			OriginalHeadline: original,
			Angle:            h.Angle,
			AngleSetup:       h.AngleSetup,
			StoryID:          h.StoryID,
			Description:      story.Description,
			URL:              story.URL,
			ImageURL:         story.ImageURL,
			Source:           story.Source,
			PublishedAt:      story.PublishedAt,
			ShowOriginal:     h.HeadlineID != slug && s.chance(showOriginalP),
			SiblingHeadlines: siblings(sorted, h, rankOf),
		})
	}

	top := make([]HeadlineView, 0, min(topHeadlinesMax, len(sorted)))
	for _, h := range sorted[:min(topHeadlinesMax, len(sorted))] {
		top = append(top, headlineView(h, rankOf))
	}

	return Edition{
		PaperName:    s.paperName(ctx),
		Stories:      stories,
		TopHeadlines: top,
	}, nil
}

// storyLookup batch-loads the stories behind the selected headlines, one
// day query per distinct day.
func (s *Selector) storyLookup(ctx context.Context, selected []models.Headline) (map[string]models.Story, error) {
	days := make(map[string]bool)
	needed := make(map[string]bool)
	for _, h := range selected {
		days[h.YearMonthDay] = true
		needed[storyKey(h)] = true
	}

	lookup := make(map[string]models.Story)
	for day := range days {
		stories, err := s.store.ListStoriesByDay(ctx, day)
		if err != nil {
			return nil, fmt.Errorf("failed to load stories for %s: %w", day, err)
		}
		for _, story := range stories {
			key := story.YearMonthDay + "/" + story.StoryID
			if needed[key] {
				lookup[key] = story
			}
		}
	}
	return lookup, nil
}

// siblings lists the story's other headlines from the same day.
func siblings(pool []models.Headline, of models.Headline, rankOf func(models.Headline) *int) []HeadlineView {
	out := []HeadlineView{}
	for _, h := range pool {
		if h.HeadlineID == of.HeadlineID {
			continue
		}
		if h.YearMonthDay != of.YearMonthDay || h.StoryID != of.StoryID {
			continue
		}
		out = append(out, headlineView(h, rankOf))
	}
	return out
}

func headlineView(h models.Headline, rankOf func(models.Headline) *int) HeadlineView {
	return HeadlineView{
		YearMonthDay: h.YearMonthDay,
		HeadlineID:   h.HeadlineID,
		Headline:     h.Headline,
		Angle:        h.Angle,
		Rank:         rankOf(h),
	}
}

// paperName composes a fresh masthead per request from the word bank.
func (s *Selector) paperName(ctx context.Context) string {
	adjective, err := s.words.RandomWord(ctx, words.TypeAdjective)
	if err != nil {
		s.log.Warn("Word bank unavailable for paper name", "error", err)
		return fallbackPaperName
	}
	name, err := s.words.RandomWord(ctx, words.TypeNewspaperName)
	if err != nil {
		s.log.Warn("Word bank unavailable for paper name", "error", err)
		return fallbackPaperName
	}
	return "The " + capitalize(adjective) + " " + capitalize(name)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
