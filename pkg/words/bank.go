// Package words exposes the word bank: short lists of inspiration words
// keyed by type, seeded by migration and cached process-wide. The subvert
// worker draws random words for brainstorming; the reader builds paper
// names from them.
package words

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Word types present in the bank.
const (
	TypeAdjective     = "adjective"
	TypeNoun          = "noun"
	TypePerson        = "person"
	TypeNewspaperName = "newspaper-name"
)

// Lister is the store surface the bank reads through.
type Lister interface {
	ListWords(ctx context.Context, wordType string) ([]string, error)
}

// Bank is a read-through cache over the words table. Lists are fetched on
// first use and kept for the process lifetime; the table only changes by
// migration, so there is no invalidation.
type Bank struct {
	source Lister

	mu     sync.RWMutex
	byType map[string][]string
}

// NewBank creates a bank over a word source.
func NewBank(source Lister) *Bank {
	return &Bank{
		source: source,
		byType: make(map[string][]string),
	}
}

// Words returns every word of one type, loading it on first use.
func (b *Bank) Words(ctx context.Context, wordType string) ([]string, error) {
	b.mu.RLock()
	cached, ok := b.byType[wordType]
	b.mu.RUnlock()
	if ok {
		return cached, nil
	}

	words, err := b.source.ListWords(ctx, wordType)
	if err != nil {
		return nil, fmt.Errorf("failed to load word bank type %s: %w", wordType, err)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("word bank type %s is empty", wordType)
	}

	b.mu.Lock()
	b.byType[wordType] = words
	b.mu.Unlock()
	return words, nil
}

// RandomWord returns one uniformly random word of the given type.
func (b *Bank) RandomWord(ctx context.Context, wordType string) (string, error) {
	words, err := b.Words(ctx, wordType)
	if err != nil {
		return "", err
	}
	return words[rand.IntN(len(words))], nil
}

// RandomWords draws n words, each from a uniformly chosen type among those
// given. Repeats are possible; the draw is inspiration, not a lottery.
func (b *Bank) RandomWords(ctx context.Context, n int, wordTypes ...string) ([]string, error) {
	if len(wordTypes) == 0 {
		wordTypes = []string{TypeNoun, TypeAdjective, TypePerson}
	}

	out := make([]string, 0, n)
	for range n {
		w, err := b.RandomWord(ctx, wordTypes[rand.IntN(len(wordTypes))])
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}
