package store

import (
	"context"
	"fmt"
)

// ListWords returns every word of one type from the word bank.
func (s *Store) ListWords(ctx context.Context, wordType string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT word FROM words WHERE word_type = $1 ORDER BY word`, wordType)
	if err != nil {
		return nil, fmt.Errorf("failed to query words of type %s: %w", wordType, err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("failed to scan word: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read words of type %s: %w", wordType, err)
	}
	return words, nil
}
