package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/models"
)

// Wildcard is the no-filter fetch slot appended after the configured
// categories for diversity.
const Wildcard = "wildcard"

// StoryWriter is the store surface the fetcher needs. PutStory returns
// false without error when the day already has a story with that title.
type StoryWriter interface {
	PutStory(ctx context.Context, story models.Story) (bool, error)
}

// Feed is the newsdata surface, split out so tests can script pages.
type Feed interface {
	FetchByCategory(ctx context.Context, category string, usePriority bool, page string) (*FeedPage, error)
	FetchByQuery(ctx context.Context, query string, usePriority bool, page string) (*FeedPage, error)
}

// Summary is one fetch run's outcome.
type Summary struct {
	Saved       int
	Processed   int
	PerCategory map[string]int
}

func (s Summary) String() string {
	return fmt.Sprintf("saved %d of %d processed: %v", s.Saved, s.Processed, s.PerCategory)
}

// Fetcher runs scheduled story ingestion.
type Fetcher struct {
	feed  Feed
	store StoryWriter
	cfg   config.IngestConfig
	log   *slog.Logger
	now   func() time.Time
}

// NewFetcher wires a fetcher to the feed and store.
func NewFetcher(feed Feed, store StoryWriter, cfg config.IngestConfig) *Fetcher {
	return &Fetcher{
		feed:  feed,
		store: store,
		cfg:   cfg,
		log:   slog.With("component", "ingest"),
		now:   time.Now,
	}
}

// FetchRun fetches every configured category plus the wildcard slot. A
// category failure is logged and skipped; the other categories still run.
func (f *Fetcher) FetchRun(ctx context.Context) (Summary, error) {
	summary := Summary{PerCategory: make(map[string]int)}

	for _, category := range f.cfg.Categories {
		saved, processed, err := f.fetchCategory(ctx, category, true)
		if err != nil {
			f.log.Error("Category fetch failed", "category", category, "error", err)
		}
		summary.PerCategory[category] = saved
		summary.Saved += saved
		summary.Processed += processed
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}
	}

	// Wildcard: no category filter, no priority filter.
	saved, processed, err := f.fetchCategory(ctx, Wildcard, false)
	if err != nil {
		f.log.Error("Wildcard fetch failed", "error", err)
	}
	summary.PerCategory[Wildcard] = saved
	summary.Saved += saved
	summary.Processed += processed

	f.log.Info("Fetch run complete",
		"saved", summary.Saved, "processed", summary.Processed, "by_category", summary.PerCategory)
	return summary, ctx.Err()
}

// fetchCategory pages through one category, saving up to the per-category
// story cap within the per-category call budget.
func (f *Fetcher) fetchCategory(ctx context.Context, category string, usePriority bool) (saved, processed int, err error) {
	apiCategory := category
	if category == Wildcard {
		apiCategory = ""
	}

	page := ""
	for calls := 0; calls < f.cfg.MaxCallsPerCategory; calls++ {
		feedPage, err := f.feed.FetchByCategory(ctx, apiCategory, usePriority, page)
		if err != nil {
			return saved, processed, err
		}

		for _, raw := range feedPage.Results {
			processed++
			if f.saveStory(ctx, raw, category) {
				saved++
				if saved >= f.cfg.MaxStoriesPerCategory {
					return saved, processed, nil
				}
			}
		}

		if feedPage.NextPage == "" {
			break
		}
		page = feedPage.NextPage
	}
	return saved, processed, nil
}

// saveStory converts and conditionally writes one raw story. Returns true
// only when a new row landed.
func (f *Fetcher) saveStory(ctx context.Context, raw RawStory, fetchCategory string) bool {
	story, err := f.storyFromRaw(raw, fetchCategory)
	if err != nil {
		f.log.Info("Skipped story", "title", raw.Title, "reason", err)
		return false
	}

	written, err := f.store.PutStory(ctx, story)
	if err != nil {
		f.log.Error("Failed to save story", "title", story.Title, "error", err)
		return false
	}
	if !written {
		f.log.Info("Skipped story, already saved", "title", story.Title, "day", story.YearMonthDay)
	}
	return written
}

// storyFromRaw maps a feed result onto the data model, rejecting stories
// the paper cannot present (no image, no usable pubDate).
func (f *Fetcher) storyFromRaw(raw RawStory, fetchCategory string) (models.Story, error) {
	if raw.ImageURL == "" {
		return models.Story{}, fmt.Errorf("no image")
	}

	day, err := models.DayKeyFromPubDate(raw.PubDate)
	if err != nil {
		return models.Story{}, err
	}

	category := raw.Category
	if len(category) == 0 {
		category = []string{fetchCategory}
	}

	return models.Story{
		YearMonthDay:  day,
		StoryID:       models.NewRecordID(),
		Title:         raw.Title,
		Description:   raw.Description,
		PublishedAt:   raw.PubDate,
		Author:        strings.Join(raw.Creator, ", "),
		Content:       raw.Content,
		URL:           raw.Link,
		ImageURL:      raw.ImageURL,
		VideoURL:      raw.VideoURL,
		Language:      raw.Language,
		Country:       strings.Join(raw.Country, ", "),
		Keywords:      raw.Keywords,
		Category:      category,
		FetchCategory: fetchCategory,
		Source:        raw.SourceID,
		RetrievedTime: f.now().UTC(),
	}, nil
}

// FetchTopic pulls stories matching a search query into the pipeline,
// tagged "manual:<query>". The fetchtopic CLI is its only caller.
func (f *Fetcher) FetchTopic(ctx context.Context, query string, maxStories int, usePriority bool) (Summary, error) {
	summary := Summary{PerCategory: make(map[string]int)}
	fetchCategory := "manual:" + query

	page := ""
	for calls := 0; calls < f.cfg.MaxCallsPerCategory; calls++ {
		feedPage, err := f.feed.FetchByQuery(ctx, query, usePriority, page)
		if err != nil {
			return summary, err
		}

		for _, raw := range feedPage.Results {
			summary.Processed++
			if f.saveStory(ctx, raw, fetchCategory) {
				summary.Saved++
				if summary.Saved >= maxStories {
					summary.PerCategory[fetchCategory] = summary.Saved
					return summary, nil
				}
			}
		}

		if feedPage.NextPage == "" {
			break
		}
		page = feedPage.NextPage
	}

	summary.PerCategory[fetchCategory] = summary.Saved
	return summary, nil
}
