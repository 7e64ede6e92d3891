package words

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	lists map[string][]string
	calls map[string]int
	err   error
}

func (f *fakeLister) ListWords(_ context.Context, wordType string) ([]string, error) {
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[wordType]++
	if f.err != nil {
		return nil, f.err
	}
	return f.lists[wordType], nil
}

func TestBankCachesPerType(t *testing.T) {
	lister := &fakeLister{lists: map[string][]string{
		TypeNoun: {"pickle", "llama"},
	}}
	bank := NewBank(lister)

	for range 5 {
		words, err := bank.Words(context.Background(), TypeNoun)
		require.NoError(t, err)
		assert.Equal(t, []string{"pickle", "llama"}, words)
	}
	assert.Equal(t, 1, lister.calls[TypeNoun], "store hit once, then cached")
}

func TestBankEmptyTypeIsError(t *testing.T) {
	bank := NewBank(&fakeLister{lists: map[string][]string{}})

	_, err := bank.Words(context.Background(), TypeAdjective)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestBankSourceErrorNotCached(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	bank := NewBank(lister)

	_, err := bank.Words(context.Background(), TypeNoun)
	require.Error(t, err)

	// A later call retries instead of caching the failure.
	lister.err = nil
	lister.lists = map[string][]string{TypeNoun: {"gnome"}}
	words, err := bank.Words(context.Background(), TypeNoun)
	require.NoError(t, err)
	assert.Equal(t, []string{"gnome"}, words)
}

func TestRandomWordsDrawsFromGivenTypes(t *testing.T) {
	bank := NewBank(&fakeLister{lists: map[string][]string{
		TypeNoun:      {"walrus"},
		TypeAdjective: {"soggy"},
	}})

	words, err := bank.RandomWords(context.Background(), 8, TypeNoun, TypeAdjective)
	require.NoError(t, err)
	require.Len(t, words, 8)
	for _, w := range words {
		assert.Contains(t, []string{"walrus", "soggy"}, w)
	}
}

func TestRandomWordMissingType(t *testing.T) {
	bank := NewBank(&fakeLister{lists: map[string][]string{}})

	_, err := bank.RandomWord(context.Background(), TypeNewspaperName)
	assert.Error(t, err)
}
