// Package reader assembles the reader-facing edition: a paper name, four
// enriched front-page stories, and a top-headline list, selected from the
// tournament's rankings with a bias toward the top but room for surprise.
package reader

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/satyrpress/satyr/pkg/models"
)

const (
	// editionSize is how many front-page stories an edition carries.
	editionSize = 4
	// topHeadlinesMax caps the edition's headline list.
	topHeadlinesMax = 64
	// showOriginalP is the chance a story leads with its real headline.
	showOriginalP = 0.25
)

// selectionPools are the expanding rank-prefix pools the selector draws
// from after the top slot: one random pick from the top 16, another from
// the top 16, then top 32, then top 64.
var selectionPools = [...]int{16, 16, 32, 64}

// Store is the data surface the selector reads.
type Store interface {
	ListHeadlinesByDay(ctx context.Context, day string) ([]models.Headline, error)
	ListStoriesByDay(ctx context.Context, day string) ([]models.Story, error)
}

// WordSource supplies paper-name words.
type WordSource interface {
	RandomWord(ctx context.Context, wordType string) (string, error)
}

// Params scope one edition request.
type Params struct {
	// Day is a YYYYMMDD key; empty means the rolling today view.
	Day string
	// Slug pins a specific headline into the top slot.
	Slug string
	// Query filters candidates by substring before selection.
	Query string
	// Seen lists headline ids the reader already saw; the top slot skips
	// them.
	Seen map[string]bool
}

// Selector picks and enriches edition content.
type Selector struct {
	store Store
	words WordSource
	log   *slog.Logger
	now   func() time.Time

	// rng backs every random choice; handlers run concurrently, so draws
	// go through the mutex.
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector wires a selector.
func NewSelector(st Store, words WordSource) *Selector {
	return &Selector{
		store: st,
		words: words,
		log:   slog.With("component", "reader"),
		now:   time.Now,
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// Edition assembles one edition for the given scope.
func (s *Selector) Edition(ctx context.Context, p Params) (Edition, error) {
	pool, useCross, err := s.gather(ctx, p.Day)
	if err != nil {
		return Edition{}, err
	}

	rankOf := func(h models.Headline) *int {
		if useCross {
			return h.CrossDayRank
		}
		return h.Rank
	}
	sortByRank(pool, rankOf)

	selected := s.pick(pool, p)
	return s.assemble(ctx, pool, selected, p.Slug, rankOf)
}

// gather loads the day scope's candidate pool and decides the rank field.
// The today view unions three days and prefers CrossDayRank when any
// headline carries one; a specific day uses its own Rank, padded with
// yesterday's headlines when the day is sparse.
func (s *Selector) gather(ctx context.Context, day string) ([]models.Headline, bool, error) {
	if day == "" {
		today := models.DayKey(s.now())
		var pool []models.Headline
		for _, offset := range []int{0, -1, -2} {
			d, err := models.DayKeyOffset(today, offset)
			if err != nil {
				return nil, false, err
			}
			headlines, err := s.store.ListHeadlinesByDay(ctx, d)
			if err != nil {
				return nil, false, err
			}
			pool = append(pool, headlines...)
		}
		useCross := false
		for _, h := range pool {
			if h.CrossDayRank != nil {
				useCross = true
				break
			}
		}
		return pool, useCross, nil
	}

	pool, err := s.store.ListHeadlinesByDay(ctx, day)
	if err != nil {
		return nil, false, err
	}
	if len(pool) < editionSize {
		yesterday, err := models.DayKeyOffset(models.DayKey(s.now()), -1)
		if err != nil {
			return nil, false, err
		}
		if yesterday != day {
			extra, err := s.store.ListHeadlinesByDay(ctx, yesterday)
			if err != nil {
				return nil, false, err
			}
			pool = append(pool, extra...)
		}
	}
	return pool, false, nil
}

// sortByRank orders best rank first; unranked headlines keep their
// relative order after every ranked one.
func sortByRank(pool []models.Headline, rankOf func(models.Headline) *int) {
	sort.SliceStable(pool, func(i, j int) bool {
		ri, rj := rankOf(pool[i]), rankOf(pool[j])
		switch {
		case ri == nil:
			return false
		case rj == nil:
			return true
		default:
			return *ri < *rj
		}
	})
}

// pick chooses up to four headlines with distinct stories from the sorted
// pool: slug or best-unseen in the top slot, query matches when asked,
// then one draw per expanding pool, then rank order.
func (s *Selector) pick(sorted []models.Headline, p Params) []models.Headline {
	var selected []models.Headline
	chosen := make(map[string]bool)  // headline ids already selected
	claimed := make(map[string]bool) // story keys already covered

	take := func(h models.Headline) {
		selected = append(selected, h)
		chosen[h.HeadlineID] = true
		claimed[storyKey(h)] = true
	}

	if p.Slug != "" {
		for _, h := range sorted {
			if h.HeadlineID == p.Slug {
				take(h)
				break
			}
		}
	}

	// Best-ranked unseen fill for the top slot, also when a slug matched
	// nothing. A query takes over slot filling instead.
	if len(selected) == 0 && p.Query == "" {
		for _, h := range sorted {
			if p.Seen[h.HeadlineID] || claimed[storyKey(h)] {
				continue
			}
			take(h)
			break
		}
	}

	if p.Query != "" {
		var matches []models.Headline
		for _, h := range sorted {
			if chosen[h.HeadlineID] || claimed[storyKey(h)] {
				continue
			}
			if matchesQuery(h, p.Query) {
				matches = append(matches, h)
			}
		}
		s.shuffle(matches)
		for _, h := range matches {
			if len(selected) == editionSize {
				break
			}
			if claimed[storyKey(h)] {
				continue
			}
			take(h)
		}
	}

	for _, size := range selectionPools {
		if len(selected) == editionSize {
			break
		}
		prefix := sorted[:min(size, len(sorted))]
		var candidates []models.Headline
		for _, h := range prefix {
			if chosen[h.HeadlineID] || claimed[storyKey(h)] {
				continue
			}
			candidates = append(candidates, h)
		}
		if len(candidates) == 0 {
			continue
		}
		take(candidates[s.intN(len(candidates))])
	}

	for _, h := range sorted {
		if len(selected) == editionSize {
			break
		}
		if chosen[h.HeadlineID] || claimed[storyKey(h)] {
			continue
		}
		take(h)
	}

	return selected
}

// storyKey identifies a story across the multi-day pool.
func storyKey(h models.Headline) string {
	return h.YearMonthDay + "/" + h.StoryID
}

func matchesQuery(h models.Headline, query string) bool {
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(h.Headline), q) ||
		strings.Contains(strings.ToLower(h.OriginalHeadline), q)
}

func (s *Selector) shuffle(headlines []models.Headline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rng.Shuffle(len(headlines), func(i, j int) {
		headlines[i], headlines[j] = headlines[j], headlines[i]
	})
}

func (s *Selector) intN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

func (s *Selector) chance(p float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}
