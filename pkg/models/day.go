package models

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
	"time"
)

// EditorialTimezone is the newspaper's fixed editorial timezone. Day keys,
// tournament cutoffs, and the "today" view are all derived from it.
const EditorialTimezone = "America/New_York"

var editorialLoc = func() *time.Location {
	loc, err := time.LoadLocation(EditorialTimezone)
	if err != nil {
		panic(fmt.Sprintf("load editorial timezone: %v", err))
	}
	return loc
}()

// EditorialLocation returns the fixed editorial *time.Location.
func EditorialLocation() *time.Location {
	return editorialLoc
}

// DayKey formats t as a YYYYMMDD key in the editorial timezone.
func DayKey(t time.Time) string {
	return t.In(editorialLoc).Format("20060102")
}

// DayKeyFromPubDate derives the day key from a feed pubDate. The feed emits
// "2006-01-02 15:04:05" timestamps; plain RFC 3339 is accepted too.
func DayKeyFromPubDate(pubDate string) (string, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, pubDate); err == nil {
			return t.Format("20060102"), nil
		}
	}
	return "", fmt.Errorf("unparseable pubDate %q", pubDate)
}

// DayKeyOffset shifts a day key by a number of days (negative for past).
func DayKeyOffset(day string, days int) (string, error) {
	t, err := time.Parse("20060102", day)
	if err != nil {
		return "", fmt.Errorf("invalid day key %q: %w", day, err)
	}
	return t.AddDate(0, 0, days).Format("20060102"), nil
}

var dayKeyRe = regexp.MustCompile(`^\d{8}$`)

// ValidDayKey reports whether s looks like a YYYYMMDD day key.
func ValidDayKey(s string) bool {
	return dayKeyRe.MatchString(s)
}

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRecordID returns a fresh 5-character base36 id, the key format shared
// by stories and headlines. Uniqueness is probabilistic within a day
// (36^5 ≈ 60M) and enforced by the store's primary key.
func NewRecordID() string {
	var b strings.Builder
	b.Grow(5)
	for range 5 {
		b.WriteByte(idAlphabet[rand.IntN(len(idAlphabet))])
	}
	return b.String()
}
