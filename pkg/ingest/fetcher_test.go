package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyrpress/satyr/pkg/config"
	"github.com/satyrpress/satyr/pkg/models"
)

type scriptedFeed struct {
	// pages[category][pageToken] = page; "" is the first page.
	pages map[string]map[string]*FeedPage
	errs  map[string]error
	calls int
}

func (s *scriptedFeed) FetchByCategory(_ context.Context, category string, _ bool, page string) (*FeedPage, error) {
	s.calls++
	if err := s.errs[category]; err != nil {
		return nil, err
	}
	p, ok := s.pages[category][page]
	if !ok {
		return &FeedPage{Status: "success"}, nil
	}
	return p, nil
}

func (s *scriptedFeed) FetchByQuery(ctx context.Context, query string, usePriority bool, page string) (*FeedPage, error) {
	return s.FetchByCategory(ctx, "q:"+query, usePriority, page)
}

type memStoryStore struct {
	stories []models.Story
	titles  map[string]bool
	err     error
}

func (m *memStoryStore) PutStory(_ context.Context, story models.Story) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	if m.titles == nil {
		m.titles = make(map[string]bool)
	}
	key := story.YearMonthDay + "/" + story.Title
	if m.titles[key] {
		return false, nil
	}
	m.titles[key] = true
	m.stories = append(m.stories, story)
	return true, nil
}

func rawStory(title string) RawStory {
	return RawStory{
		Title:    title,
		Link:     "https://example.com/" + title,
		PubDate:  "2024-01-01 12:00:00",
		ImageURL: "https://example.com/img.jpg",
		SourceID: "example",
	}
}

func testIngestConfig() config.IngestConfig {
	return config.IngestConfig{
		Categories:            []string{"sports"},
		MaxStoriesPerCategory: 5,
		MaxCallsPerCategory:   3,
	}
}

func TestFetchRunSavesAndCounts(t *testing.T) {
	feed := &scriptedFeed{pages: map[string]map[string]*FeedPage{
		"sports": {"": {Status: "success", Results: []RawStory{rawStory("a"), rawStory("b")}}},
		"":       {"": {Status: "success", Results: []RawStory{rawStory("c")}}},
	}}
	store := &memStoryStore{}

	f := NewFetcher(feed, store, testIngestConfig())
	summary, err := f.FetchRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Saved)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 2, summary.PerCategory["sports"])
	assert.Equal(t, 1, summary.PerCategory[Wildcard])

	require.Len(t, store.stories, 3)
	assert.Equal(t, "20240101", store.stories[0].YearMonthDay)
	assert.Equal(t, "sports", store.stories[0].FetchCategory)
	assert.Equal(t, Wildcard, store.stories[2].FetchCategory)
	assert.Len(t, store.stories[0].StoryID, 5)
}

func TestFetchRunRejectsImagelessStories(t *testing.T) {
	noImage := rawStory("bare")
	noImage.ImageURL = ""
	feed := &scriptedFeed{pages: map[string]map[string]*FeedPage{
		"sports": {"": {Status: "success", Results: []RawStory{noImage, rawStory("ok")}}},
	}}
	store := &memStoryStore{}

	f := NewFetcher(feed, store, testIngestConfig())
	summary, err := f.FetchRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Saved)
	assert.Equal(t, 2, summary.Processed)
	require.Len(t, store.stories, 1)
	assert.Equal(t, "ok", store.stories[0].Title)
}

func TestFetchRunStopsAtStoryCap(t *testing.T) {
	var results []RawStory
	for _, title := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		results = append(results, rawStory(title))
	}
	feed := &scriptedFeed{pages: map[string]map[string]*FeedPage{
		"sports": {"": {Status: "success", Results: results, NextPage: "p2"}},
	}}
	store := &memStoryStore{}

	f := NewFetcher(feed, store, testIngestConfig())
	summary, err := f.FetchRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, summary.PerCategory["sports"], "stops at the per-category cap")
}

func TestFetchRunFollowsPagesWithinCallBudget(t *testing.T) {
	feed := &scriptedFeed{pages: map[string]map[string]*FeedPage{
		"sports": {
			"":   {Status: "success", Results: []RawStory{rawStory("a")}, NextPage: "p2"},
			"p2": {Status: "success", Results: []RawStory{rawStory("b")}, NextPage: "p3"},
			"p3": {Status: "success", Results: []RawStory{rawStory("c")}, NextPage: "p4"},
			"p4": {Status: "success", Results: []RawStory{rawStory("d")}},
		},
	}}
	store := &memStoryStore{}

	f := NewFetcher(feed, store, testIngestConfig())
	summary, err := f.FetchRun(context.Background())
	require.NoError(t, err)

	// 3 calls max for sports: pages "", p2, p3. p4 is never fetched.
	assert.Equal(t, 3, summary.PerCategory["sports"])
}

func TestFetchRunCategoryFailureDoesNotAbortOthers(t *testing.T) {
	feed := &scriptedFeed{
		pages: map[string]map[string]*FeedPage{
			"tech": {"": {Status: "success", Results: []RawStory{rawStory("t")}}},
		},
		errs: map[string]error{"sports": errors.New("feed error 429: rate limited")},
	}
	store := &memStoryStore{}

	cfg := testIngestConfig()
	cfg.Categories = []string{"sports", "tech"}
	f := NewFetcher(feed, store, cfg)
	summary, err := f.FetchRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.PerCategory["sports"])
	assert.Equal(t, 1, summary.PerCategory["tech"])
}

func TestFetchRunIdempotentAgainstIdenticalFeed(t *testing.T) {
	feed := &scriptedFeed{pages: map[string]map[string]*FeedPage{
		"sports": {"": {Status: "success", Results: []RawStory{rawStory("same")}}},
	}}
	store := &memStoryStore{}
	f := NewFetcher(feed, store, testIngestConfig())

	first, err := f.FetchRun(context.Background())
	require.NoError(t, err)
	second, err := f.FetchRun(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first.Saved)
	assert.Equal(t, 0, second.Saved, "conditional put makes the rerun a no-op")
	assert.Len(t, store.stories, 1)
}

func TestFetchTopicTagsStories(t *testing.T) {
	feed := &scriptedFeed{pages: map[string]map[string]*FeedPage{
		"q:mars rover": {"": {Status: "success", Results: []RawStory{rawStory("rover")}}},
	}}
	store := &memStoryStore{}

	f := NewFetcher(feed, store, testIngestConfig())
	summary, err := f.FetchTopic(context.Background(), "mars rover", 3, true)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Saved)
	require.Len(t, store.stories, 1)
	assert.Equal(t, "manual:mars rover", store.stories[0].FetchCategory)
}
