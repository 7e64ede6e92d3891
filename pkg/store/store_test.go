package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satyrpress/satyr/pkg/models"
	"github.com/satyrpress/satyr/test/util"
)

func newTestStore(t *testing.T) *Store {
	pool, _ := util.SetupTestDatabase(t)
	return New(pool)
}

func testStory(day, id, title string) models.Story {
	return models.Story{
		YearMonthDay:  day,
		StoryID:       id,
		Title:         title,
		Description:   "a description",
		PublishedAt:   "2026-08-20 14:05:00",
		URL:           "https://example.com/" + id,
		ImageURL:      "https://example.com/" + id + ".jpg",
		Keywords:      []string{"one", "two"},
		Category:      []string{"business"},
		FetchCategory: "business",
		Source:        "example",
		RetrievedTime: time.Now().UTC(),
	}
}

func testHeadline(day, id, storyID string) models.Headline {
	return models.Headline{
		YearMonthDay:     day,
		HeadlineID:       id,
		Headline:         "Witty Take " + id,
		OriginalHeadline: "Original Title",
		Angle:            "wordplay",
		AngleSetup:       "lean on the pun",
		StoryID:          storyID,
		CreateTime:       time.Now().UTC(),
	}
}

// drainEvents marks everything currently pending as processed so a test can
// assert on only the events its own writes produce.
func drainEvents(t *testing.T, s *Store, stream string) {
	t.Helper()
	ctx := context.Background()
	events, err := s.PendingEvents(ctx, stream, 1000)
	require.NoError(t, err)
	ids := make([]int64, 0, len(events))
	for _, ev := range events {
		ids = append(ids, ev.ID)
	}
	require.NoError(t, s.MarkEventsProcessed(ctx, ids))
}

func TestPutStoryConditional(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	inserted, err := s.PutStory(ctx, testStory("20260820", "aaaaa", "Fed Raises Rates"))
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same title, same day, different feed ID: the put must back off.
	inserted, err = s.PutStory(ctx, testStory("20260820", "bbbbb", "Fed Raises Rates"))
	require.NoError(t, err)
	assert.False(t, inserted)

	// Same title on another day is a fresh story.
	inserted, err = s.PutStory(ctx, testStory("20260821", "ccccc", "Fed Raises Rates"))
	require.NoError(t, err)
	assert.True(t, inserted)

	stories, err := s.ListStoriesByDay(ctx, "20260820")
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, "aaaaa", stories[0].StoryID)
	assert.Equal(t, []string{"one", "two"}, stories[0].Keywords)
}

func TestPutStoryEmitsEventOnlyWhenWritten(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.PutStory(ctx, testStory("20260820", "aaaaa", "Fed Raises Rates"))
	require.NoError(t, err)
	_, err = s.PutStory(ctx, testStory("20260820", "bbbbb", "Fed Raises Rates"))
	require.NoError(t, err)

	events, err := s.PendingEvents(ctx, models.StreamStories, 10)
	require.NoError(t, err)
	require.Len(t, events, 1, "the rejected duplicate must not emit")

	assert.Equal(t, models.EventInsert, events[0].EventName)
	assert.Equal(t, "20260820", events[0].YearMonthDay)
	assert.Equal(t, "aaaaa", events[0].RecordID)

	story, err := events[0].Story()
	require.NoError(t, err)
	assert.Equal(t, "Fed Raises Rates", story.Title)
}

func TestListStoriesByDayRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := testStory("20260820", "aaaaa", "Fed Raises Rates")
	_, err := s.PutStory(ctx, want)
	require.NoError(t, err)

	stories, err := s.ListStoriesByDay(ctx, "20260820")
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, want.Title, stories[0].Title)
	assert.Equal(t, want.URL, stories[0].URL)
	assert.WithinDuration(t, want.RetrievedTime, stories[0].RetrievedTime, time.Second)

	stories, err = s.ListStoriesByDay(ctx, "20260821")
	require.NoError(t, err)
	assert.Empty(t, stories)
}

func TestPutHeadlinesBatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []models.Headline{
		testHeadline("20260820", "h0001", "aaaaa"),
		testHeadline("20260820", "h0002", "aaaaa"),
		testHeadline("20260820", "h0003", "aaaaa"),
	}
	require.NoError(t, s.PutHeadlines(ctx, batch))

	headlines, err := s.ListHeadlinesByDay(ctx, "20260820")
	require.NoError(t, err)
	assert.Len(t, headlines, 3)

	exists, err := s.HeadlinesExistForStory(ctx, "20260820", "aaaaa")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.HeadlinesExistForStory(ctx, "20260820", "other")
	require.NoError(t, err)
	assert.False(t, exists)

	events, err := s.PendingEvents(ctx, models.StreamHeadlines, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3, "one insert event per headline")
}

func TestApplyTournament(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	batch := []models.Headline{
		testHeadline("20260820", "h0001", "aaaaa"),
		testHeadline("20260820", "h0002", "aaaaa"),
		testHeadline("20260820", "h0003", "aaaaa"),
		testHeadline("20260820", "h0004", "aaaaa"),
	}
	require.NoError(t, s.PutHeadlines(ctx, batch))
	drainEvents(t, s, models.StreamHeadlines)

	survivors := []RankUpdate{
		{HeadlineID: "h0002", Rank: 1},
		{HeadlineID: "h0004", Rank: 2},
		{HeadlineID: "h0001", Rank: 3},
	}
	require.NoError(t, s.ApplyTournament(ctx, "20260820", 0, survivors, []string{"h0003"}))

	byID := mapByID(t, s, "20260820")
	require.NotNil(t, byID["h0002"].Rank)
	assert.Equal(t, 1, *byID["h0002"].Rank)
	h0002 := byID["h0002"]
	assert.True(t, h0002.IsSurvivor())
	require.NotNil(t, byID["h0001"].Rank)
	assert.Equal(t, 3, *byID["h0001"].Rank)

	assert.Nil(t, byID["h0003"].Rank, "eliminated headlines carry no rank")
	require.NotNil(t, byID["h0003"].Survived)
	assert.False(t, *byID["h0003"].Survived)
	require.NotNil(t, byID["h0003"].TournamentBatch)
	assert.Equal(t, 0, *byID["h0003"].TournamentBatch)

	events, err := s.PendingEvents(ctx, models.StreamHeadlines, 10)
	require.NoError(t, err)
	assert.Len(t, events, 4)
	for _, ev := range events {
		assert.Equal(t, models.EventModify, ev.EventName)
	}
}

func TestApplyTournamentDemotesFormerSurvivor(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutHeadlines(ctx, []models.Headline{
		testHeadline("20260820", "h0001", "aaaaa"),
		testHeadline("20260820", "h0002", "aaaaa"),
	}))

	require.NoError(t, s.ApplyTournament(ctx, "20260820", 0,
		[]RankUpdate{{HeadlineID: "h0001", Rank: 1}, {HeadlineID: "h0002", Rank: 2}}, nil))

	// Next run: h0002 wins, h0001 falls out of the cohort entirely.
	require.NoError(t, s.ApplyTournament(ctx, "20260820", 1,
		[]RankUpdate{{HeadlineID: "h0002", Rank: 1}}, []string{"h0001"}))

	byID := mapByID(t, s, "20260820")
	assert.Nil(t, byID["h0001"].Rank, "demoted survivor must lose its stale rank")
	require.NotNil(t, byID["h0001"].TournamentBatch)
	assert.Equal(t, 1, *byID["h0001"].TournamentBatch)
	require.NotNil(t, byID["h0002"].Rank)
	assert.Equal(t, 1, *byID["h0002"].Rank)
}

func TestSetPolished(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h := testHeadline("20260820", "h0001", "aaaaa")
	require.NoError(t, s.PutHeadlines(ctx, []models.Headline{h}))

	require.NoError(t, s.SetPolished(ctx, "20260820", "h0001", "Sharper Witty Take"))

	byID := mapByID(t, s, "20260820")
	got := byID["h0001"]
	assert.Equal(t, "Sharper Witty Take", got.Headline)
	require.NotNil(t, got.OriginalSubverted)
	assert.Equal(t, h.Headline, *got.OriginalSubverted)

	// A second polish attempt must not overwrite the preserved original.
	err := s.SetPolished(ctx, "20260820", "h0001", "Third Version")
	assert.Error(t, err)
}

func TestSetCrossDayRanks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutHeadlines(ctx, []models.Headline{
		testHeadline("20260819", "h0001", "aaaaa"),
		testHeadline("20260820", "h0002", "bbbbb"),
	}))

	updates := []CrossDayRankUpdate{
		{Day: "20260820", HeadlineID: "h0002", Rank: 1},
		{Day: "20260819", HeadlineID: "h0001", Rank: 2},
	}
	require.NoError(t, s.SetCrossDayRanks(ctx, "20260820", updates))

	yesterday := mapByID(t, s, "20260819")
	require.NotNil(t, yesterday["h0001"].CrossDayRank)
	assert.Equal(t, 2, *yesterday["h0001"].CrossDayRank)

	today := mapByID(t, s, "20260820")
	require.NotNil(t, today["h0002"].CrossDayRank)
	assert.Equal(t, 1, *today["h0002"].CrossDayRank)
}

func TestListRankedHeadlines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutHeadlines(ctx, []models.Headline{
		testHeadline("20260820", "h0001", "aaaaa"),
		testHeadline("20260820", "h0002", "aaaaa"),
		testHeadline("20260820", "h0003", "aaaaa"),
	}))
	require.NoError(t, s.ApplyTournament(ctx, "20260820", 0,
		[]RankUpdate{{HeadlineID: "h0003", Rank: 1}, {HeadlineID: "h0001", Rank: 2}},
		[]string{"h0002"}))

	ranked, err := s.ListRankedHeadlines(ctx, "20260820", 16)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, "h0003", ranked[0].HeadlineID)
	assert.Equal(t, "h0001", ranked[1].HeadlineID)

	top1, err := s.ListRankedHeadlines(ctx, "20260820", 1)
	require.NoError(t, err)
	require.Len(t, top1, 1)
	assert.Equal(t, "h0003", top1[0].HeadlineID)
}

func TestPendingEventsOrderAndMark(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"aaaaa", "bbbbb", "ccccc"} {
		_, err := s.PutStory(ctx, testStory("20260820", id, "Title "+string(rune('A'+i))))
		require.NoError(t, err)
	}

	events, err := s.PendingEvents(ctx, models.StreamStories, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Less(t, events[0].ID, events[1].ID)
	assert.Less(t, events[1].ID, events[2].ID)

	// Consume the first two; only the third stays pending.
	require.NoError(t, s.MarkEventsProcessed(ctx, []int64{events[0].ID, events[1].ID}))

	remaining, err := s.PendingEvents(ctx, models.StreamStories, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, events[2].ID, remaining[0].ID)

	// Marking again is harmless.
	require.NoError(t, s.MarkEventsProcessed(ctx, []int64{events[0].ID}))
}

func TestListWords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, wordType := range []string{"noun", "adjective", "person", "newspaper-name"} {
		words, err := s.ListWords(ctx, wordType)
		require.NoError(t, err)
		assert.NotEmpty(t, words, "seed data for %q", wordType)
	}

	nouns, err := s.ListWords(ctx, "noun")
	require.NoError(t, err)
	assert.Contains(t, nouns, "pickle")

	none, err := s.ListWords(ctx, "verb")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func mapByID(t *testing.T, s *Store, day string) map[string]models.Headline {
	t.Helper()
	headlines, err := s.ListHeadlinesByDay(context.Background(), day)
	require.NoError(t, err)
	byID := make(map[string]models.Headline, len(headlines))
	for _, h := range headlines {
		byID[h.HeadlineID] = h
	}
	return byID
}
