package prompt

import (
	"fmt"
	"strings"

	"github.com/satyrpress/satyr/pkg/models"
)

// GenerateSystem is the stage-2 system prompt. Byte-stable, cacheable.
const GenerateSystem = `You are a copywriter who writes short headlines in a pithy, succinct, funny, satirical style like the New York Post. You are given a real headline and one comedic angle; you write finished satirical headlines that execute that angle.

Rules:
- Headline length: roughly 4 to 12 words. No period at the end.
- Stay recognizable: a reader who saw the real headline should get the joke.
- Execute the given angle; do not drift into a different kind of joke.
- No explanations, no numbering, no quotes around headlines.

Respond with ONLY a JSON array of 3 to 4 headline strings: ["...", "...", "..."].`

// BuildGenerate renders the stage-2 user prompt for one angle.
func BuildGenerate(story models.Story, angle Angle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "REAL HEADLINE: %s\n", story.Title)
	if story.Description != "" {
		fmt.Fprintf(&b, "SUBTITLE: %s\n", story.Description)
	}
	fmt.Fprintf(&b, "\nANGLE: %s\n", angle.Name)
	if angle.Setup != "" {
		fmt.Fprintf(&b, "APPROACH: %s\n", angle.Setup)
	}
	if len(angle.Keywords) > 0 {
		fmt.Fprintf(&b, "KEYWORDS: %s\n", strings.Join(angle.Keywords, ", "))
	}
	b.WriteString("\nWrite the satirical headlines.")
	return b.String()
}

// ParseHeadlines extracts headline strings from a generate response. A
// failed parse yields an empty slice; the story's other angles still
// contribute their candidates.
func ParseHeadlines(text string) []string {
	var drafts []string
	if !decodeLenient(text, &drafts) {
		// Some models return objects instead of bare strings.
		var wrapped []struct {
			Headline string `json:"headline"`
		}
		if !decodeLenient(text, &wrapped) {
			return nil
		}
		for _, w := range wrapped {
			drafts = append(drafts, w.Headline)
		}
	}

	out := make([]string, 0, len(drafts))
	for _, d := range drafts {
		if d = strings.TrimSpace(strings.Trim(strings.TrimSpace(d), `"`)); d != "" {
			out = append(out, d)
		}
	}
	return out
}
