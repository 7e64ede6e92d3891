package prompt

import (
	"fmt"
	"strings"

	"github.com/satyrpress/satyr/pkg/models"
)

// Angle is one comedic strategy proposed for a story.
type Angle struct {
	Name     string   `json:"angle_name"`
	Setup    string   `json:"setup"`
	Keywords []string `json:"keywords"`
}

// maxAngles caps how many brainstormed angles a story gets. More angles
// mean more generate calls; five is plenty of variety per story.
const maxAngles = 5

// BrainstormSystem is the stage-1 system prompt. Keep it byte-stable: it
// rides on every brainstorm call and is marked cacheable.
const BrainstormSystem = `You are the head writer of a satirical newspaper. Given a real news headline, you brainstorm comedic angles for rewriting it. An angle is a strategy, not a finished joke.

What makes an angle good:
- It exploits something specific in THIS story: a name that begs for wordplay, a premise one step from absurdity, an official tone worth deflating.
- It can support 3-4 distinct headlines, not just one joke.
- Puns must work phonetically. Rhymes must scan. Absurdist escalation must start from the story's actual facts.

Example angles for "City Council Approves Pigeon Feeding Ban":
[
  {"angle_name": "bureaucratic escalation", "setup": "Treat the ban as the first step of an authoritarian crackdown on birds", "keywords": ["task force", "pigeon registry", "wanted posters"]},
  {"angle_name": "pigeon perspective", "setup": "Report the story as pigeons reacting to losing their livelihood", "keywords": ["union", "strike", "breadline"]},
  {"angle_name": "wordplay on coo", "setup": "Pun on coo/coup and feather idioms", "keywords": ["coup", "ruffled feathers", "flipping the bird"]}
]

Respond with ONLY a JSON array of at most 5 angle objects in exactly that format: [{"angle_name": ..., "setup": ..., "keywords": [...]}]. No prose before or after the array.`

// BuildBrainstorm renders the stage-1 user prompt: the real story plus
// random inspiration words from the word bank.
func BuildBrainstorm(story models.Story, inspiration []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HEADLINE: %s\n", story.Title)
	if story.Description != "" {
		fmt.Fprintf(&b, "SUBTITLE: %s\n", story.Description)
	}
	fmt.Fprintf(&b, "\nInspiration words (use any that spark something, ignore the rest): %s\n",
		strings.Join(inspiration, ", "))
	b.WriteString("\nBrainstorm comedic angles for this story.")
	return b.String()
}

// ParseAngles extracts angles from a brainstorm response. Returns nil when
// nothing usable came back; the caller falls back to DefaultAngles.
func ParseAngles(text string) []Angle {
	var angles []Angle
	if !decodeLenient(text, &angles) {
		return nil
	}

	out := make([]Angle, 0, len(angles))
	for _, a := range angles {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		out = append(out, a)
		if len(out) == maxAngles {
			break
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DefaultAngles is the fallback set used when brainstorming yields nothing
// parseable. Generic but serviceable for any story.
func DefaultAngles() []Angle {
	return []Angle{
		{Name: "wordplay", Setup: "Puns and double meanings on the key words of the headline"},
		{Name: "rhyme", Setup: "Rewrite the headline so it rhymes or scans like a jingle"},
		{Name: "absurdist escalation", Setup: "Take the premise one unreasonable step further"},
	}
}
