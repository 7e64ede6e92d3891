package prompt

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/satyrpress/satyr/pkg/models"
)

// ErrUnparseableRanking indicates no line of the judge response looked
// like a ranking. The tournament treats the group as shuffled.
var ErrUnparseableRanking = errors.New("no ranking line found in judge response")

const labels = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Label returns the letter label for a 0-based group position.
func Label(i int) string {
	return string(labels[i])
}

// JudgeSystem is shared by elimination and final rounds. Byte-stable,
// cacheable.
const JudgeSystem = `You judge satirical headlines. You are shown a group of candidates, each labeled with a letter, alongside the real headline it riffs on and the comedic angle behind it.

Value CRAFT as much as humor:
- Clever alliteration or assonance
- Puns that actually work phonetically
- Unexpected wordplay or double meanings
- Rhythm and flow when read aloud
- How well the joke plays off the original headline

A straightforward joke that lands is good, but a headline with clever linguistic craft is equally valuable.

Respond with a single line ranking every label from best to worst, separated by commas. Example: C, A, D, B`

// BuildRanking renders the judge prompt for one group. Labels follow the
// group's insertion order. With verbose set, the judge may explain itself
// after the ranking line; the parser skips the explanation either way.
func BuildRanking(group []models.Headline, verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rank these %d satirical headlines from best to worst.\n\n", len(group))

	for i, h := range group {
		fmt.Fprintf(&b, "%s: %q\n", Label(i), h.Headline)
		if h.OriginalHeadline != "" {
			fmt.Fprintf(&b, "   Original: %q\n", h.OriginalHeadline)
		}
		if h.Angle != "" {
			fmt.Fprintf(&b, "   Comedic angle: %s\n", h.Angle)
		}
		if h.AngleSetup != "" {
			fmt.Fprintf(&b, "   Approach: %s\n", h.AngleSetup)
		}
		b.WriteByte('\n')
	}

	if verbose {
		fmt.Fprintf(&b, "Reply with the ranking line (all %d letters, best first, comma-separated), then briefly explain your top pick on the following lines.", len(group))
	} else {
		fmt.Fprintf(&b, "Reply with ONLY the ranking line: all %d letters, best first, comma-separated.", len(group))
	}
	return b.String()
}

// ParseRanking finds the judge's ranking line and returns a permutation of
// 0..n-1, best first. The accepted line is the first whose comma-separated
// letter tokens cover at least half the expected labels; anything before
// it is preamble, anything after is explanation. Labels the judge forgot
// are appended in random order. Duplicate mentions keep their first
// position.
func ParseRanking(text string, n int, rng *rand.Rand) ([]int, error) {
	for _, line := range strings.Split(text, "\n") {
		order, ok := parseRankingLine(line, n)
		if !ok {
			continue
		}
		return appendMissing(order, n, rng), nil
	}
	return nil, ErrUnparseableRanking
}

func parseRankingLine(line string, n int) ([]int, bool) {
	tokens := strings.Split(line, ",")
	if len(tokens) < 2 {
		return nil, false
	}

	seen := make(map[int]bool, n)
	var order []int
	for _, tok := range tokens {
		tok = strings.Trim(strings.TrimSpace(tok), `."'*)`)
		if len(tok) != 1 {
			return nil, false
		}
		idx := strings.IndexByte(labels[:n], strings.ToUpper(tok)[0])
		if idx < 0 {
			return nil, false
		}
		if !seen[idx] {
			seen[idx] = true
			order = append(order, idx)
		}
	}

	// At least half the group must be mentioned for the line to count as
	// the ranking rather than stray prose.
	if len(order)*2 < n {
		return nil, false
	}
	return order, true
}

// appendMissing tacks unmentioned positions onto the tail in random order.
func appendMissing(order []int, n int, rng *rand.Rand) []int {
	mentioned := make(map[int]bool, len(order))
	for _, idx := range order {
		mentioned[idx] = true
	}

	var missing []int
	for i := range n {
		if !mentioned[i] {
			missing = append(missing, i)
		}
	}
	rng.Shuffle(len(missing), func(i, j int) {
		missing[i], missing[j] = missing[j], missing[i]
	})
	return append(order, missing...)
}
