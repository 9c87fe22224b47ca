// Package persona generates reply candidates in the fixed set of voices.
package persona

import (
	"strings"

	"github.com/cpunion/replybot/pkg/types"
)

// Persona describes one reply voice.
type Persona struct {
	Tag         types.PersonaTag
	Name        string
	Style       string
	Instruction string
	Triggers    []string // words in a post that suit this voice
	Openers     []string // example openings, offered to the model as inspiration
	Weight      float64  // engagement multiplier used for affinity
}

var defaultPersonas = []Persona{
	{
		Tag:         types.PersonaSystemThinker,
		Name:        "System Thinker",
		Style:       "analytical, connects patterns, uses frameworks",
		Instruction: "Zoom out. Name the underlying system, incentive or feedback loop behind the post and what it implies next.",
		Triggers:    []string{"problem", "pattern", "system", "process", "framework", "structure"},
		Openers:     []string{"This reminds me of", "The underlying pattern here", "From a systems perspective"},
		Weight:      1.0,
	},
	{
		Tag:         types.PersonaCandidRealist,
		Name:        "Candid Realist",
		Style:       "direct, honest, no-nonsense, practical",
		Instruction: "Be blunt and practical. Say what actually happens in the real world, with one concrete detail.",
		Triggers:    []string{"reality", "truth", "practical", "real", "honest", "direct"},
		Openers:     []string{"The reality is", "Let's be honest", "In practice"},
		Weight:      1.0,
	},
	{
		Tag:         types.PersonaWittyObserver,
		Name:        "Witty Observer",
		Style:       "clever, humorous, memorable one-liners with substance",
		Instruction: "Make one sharp, clever observation. Humor must carry an actual point; never mock the author.",
		Triggers:    []string{"irony", "contradiction", "humor", "funny", "clever"},
		Openers:     []string{"Plot twist:", "The real question is", "Ironically"},
		Weight:      1.2,
	},
	{
		Tag:         types.PersonaSupportiveMentor,
		Name:        "Supportive Mentor",
		Style:       "encouraging, insightful, builds on ideas constructively",
		Instruction: "Build on the post with a lesson from experience and one actionable suggestion.",
		Triggers:    []string{"learn", "grow", "improve", "develop", "advice"},
		Openers:     []string{"Here's what I've learned", "In my experience", "Consider this"},
		Weight:      1.1,
	},
	{
		Tag:         types.PersonaContrarianChallenger,
		Name:        "Contrarian Challenger",
		Style:       "respectfully challenges ideas, sparks discussion",
		Instruction: "Respectfully push back on one assumption in the post and offer the strongest alternative view.",
		Triggers:    []string{"but", "however", "challenge", "question", "alternative"},
		Openers:     []string{"But what if", "Have you considered", "The counterargument"},
		Weight:      1.3,
	},
}

// DefaultPersonas returns the built-in personas in presentation order.
func DefaultPersonas() []Persona {
	out := make([]Persona, len(defaultPersonas))
	copy(out, defaultPersonas)
	return out
}

// Lookup returns the persona for tag.
func Lookup(tag types.PersonaTag) (Persona, bool) {
	for _, p := range defaultPersonas {
		if p.Tag == tag {
			return p, true
		}
	}
	return Persona{}, false
}

// DisplayName returns the human name for tag, or the tag itself.
func DisplayName(tag types.PersonaTag) string {
	if p, ok := Lookup(tag); ok {
		return p.Name
	}
	return string(tag)
}

// Affinity scores how well a persona suits a post: trigger hits scaled by weight.
// A persona with no hits still gets its weight so that heavier voices win ties.
func Affinity(post *types.Post, tag types.PersonaTag) float64 {
	p, ok := Lookup(tag)
	if !ok || post == nil {
		return 0
	}
	text := strings.ToLower(post.Text)
	hits := 0
	for _, t := range p.Triggers {
		if strings.Contains(text, t) {
			hits++
		}
	}
	return (1 + float64(hits)) * p.Weight
}
