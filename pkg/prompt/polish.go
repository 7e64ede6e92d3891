package prompt

import (
	"fmt"
	"strings"

	"github.com/satyrpress/satyr/pkg/models"
)

// PolishSystem is the finalist punch-up prompt. Byte-stable, cacheable.
const PolishSystem = `You punch up satirical headlines that already won a ranking tournament. The joke works; your job is to make the wording land harder.

- Tighten the rhythm. Cut filler words.
- Sharpen word choice without changing the joke.
- Keep the headline recognizable against the real one.
- If the headline is already as good as it gets, return it unchanged.

Respond with ONLY the headline text. No quotes, no explanation, no period at the end.`

// BuildPolish renders the punch-up prompt for one finalist.
func BuildPolish(h models.Headline) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HEADLINE: %s\n", h.Headline)
	if h.OriginalHeadline != "" {
		fmt.Fprintf(&b, "REAL HEADLINE IT RIFFS ON: %s\n", h.OriginalHeadline)
	}
	if h.Angle != "" {
		fmt.Fprintf(&b, "COMEDIC ANGLE: %s\n", h.Angle)
	}
	b.WriteString("\nPunch it up.")
	return b.String()
}

// ParsePolish cleans a polish response into headline text. Empty means the
// response was unusable and the headline stays as it was.
func ParsePolish(text string) string {
	text = strings.TrimSpace(text)
	// Models love to quote their own output.
	if len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"' {
		text = text[1 : len(text)-1]
	}
	if strings.ContainsRune(text, '\n') {
		// Multi-line responses are explanations, not headlines; keep the
		// first line if it looks like one.
		text = strings.TrimSpace(strings.SplitN(text, "\n", 2)[0])
	}
	return strings.TrimSuffix(text, ".")
}
