package scoring

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cpunion/replybot/pkg/types"
)

// Sub-score names recorded on each candidate.
const (
	SubRelevance  = "relevance"
	SubTone       = "tone"
	SubLength     = "length"
	SubEngagement = "engagement"
	SubUniqueness = "uniqueness"
	SubSubstance  = "substance"
)

// subScoreOrder fixes the summation order so equal inputs give equal scores.
var subScoreOrder = []string{SubRelevance, SubTone, SubLength, SubEngagement, SubUniqueness, SubSubstance}

// ReplyScorer drops unsafe candidates and ranks the rest.
type ReplyScorer struct {
	Safety         SafetyPolicy
	IdealMin       int
	IdealMax       int
	GenericPhrases []string
	EngagementCues []string
	SubstanceCues  []string

	// Affinity, when set, orders candidates whose scores tie.
	Affinity func(post *types.Post, persona types.PersonaTag) float64
}

// NewReplyScorer returns a scorer with the stock phrase lists.
func NewReplyScorer(safety SafetyPolicy, idealMin, idealMax int) *ReplyScorer {
	return &ReplyScorer{
		Safety:   safety,
		IdealMin: idealMin,
		IdealMax: idealMax,
		GenericPhrases: []string{
			"great post", "thanks for sharing", "well said", "so true", "couldn't agree more",
			"love this", "this is amazing", "interesting point", "totally agree", "nice one",
		},
		EngagementCues: []string{"?", "what", "how", "why", "curious", "wonder", "thoughts", "have you"},
		SubstanceCues: []string{
			"because", "however", "which means", "for example", "in my experience",
			"the tradeoff", "data", "evidence", "instead", "unless", "actually",
		},
	}
}

// Rejection pairs a dropped candidate with the reason.
type Rejection struct {
	Candidate types.ReplyCandidate
	Err       error
}

// Rank scores every candidate, drops those failing the safety gate, and sorts
// the survivors by descending score. Ties keep persona affinity then input order.
func (s *ReplyScorer) Rank(post *types.Post, candidates []types.ReplyCandidate) ([]types.ReplyCandidate, []Rejection) {
	kept := make([]types.ReplyCandidate, 0, len(candidates))
	var rejected []Rejection
	for _, c := range candidates {
		scored, err := s.Evaluate(post, c)
		if err != nil {
			rejected = append(rejected, Rejection{Candidate: c, Err: err})
			continue
		}
		kept = append(kept, scored)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		if s.Affinity != nil {
			return s.Affinity(post, kept[i].Persona) > s.Affinity(post, kept[j].Persona)
		}
		return false
	})
	return kept, rejected
}

// Evaluate applies the safety gate and fills Score and SubScores.
func (s *ReplyScorer) Evaluate(post *types.Post, c types.ReplyCandidate) (types.ReplyCandidate, error) {
	if err := s.Safety.Check(post, c); err != nil {
		return c, err
	}
	c.Score, c.SubScores = s.Score(post, c.Text)
	return c, nil
}

// Score computes the composite 0-100 score as the mean of the sub-scores.
func (s *ReplyScorer) Score(post *types.Post, reply string) (float64, map[string]float64) {
	postText := ""
	if post != nil {
		postText = post.Text
	}
	lowerReply := strings.ToLower(reply)

	subs := map[string]float64{
		SubRelevance:  s.relevance(postText, reply),
		SubTone:       s.tone(strings.ToLower(postText), lowerReply),
		SubLength:     s.length(reply),
		SubEngagement: clamp(float64(countCues(lowerReply, s.EngagementCues))*15+40, 0, 100),
		SubUniqueness: clamp(100-float64(countCues(lowerReply, s.GenericPhrases))*25, 50, 100),
		SubSubstance:  clamp(float64(countCues(lowerReply, s.SubstanceCues))*10+70, 0, 100),
	}
	total := 0.0
	for _, name := range subScoreOrder {
		total += subs[name]
	}
	return total / float64(len(subScoreOrder)), subs
}

func (s *ReplyScorer) relevance(post, reply string) float64 {
	postWords := wordSet(post)
	if len(postWords) == 0 {
		return 50
	}
	replyWords := wordSet(reply)
	overlap := 0
	for w := range replyWords {
		if _, ok := postWords[w]; ok {
			overlap++
		}
	}
	return clamp(float64(overlap)/float64(len(postWords))*150, 0, 100)
}

func (s *ReplyScorer) tone(post, reply string) float64 {
	score := 70.0
	serious := containsAny(post, s.Safety.SeriousKeywords)
	playful := containsAny(reply, s.Safety.HumorKeywords)
	switch {
	case serious && playful:
		score -= 40
	case serious:
		score += 15
	case playful:
		score += 5
	}
	if IsQuestion(post) && !strings.HasSuffix(strings.TrimSpace(reply), "?") {
		// A question is better met with an answer than with another question.
		score += 15
	}
	return clamp(score, 0, 100)
}

func (s *ReplyScorer) length(reply string) float64 {
	n := utf8.RuneCountInString(strings.TrimSpace(reply))
	switch {
	case n >= s.IdealMin && n <= s.IdealMax:
		return 100
	case n < s.IdealMin/2:
		return 40
	default:
		return 70
	}
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "that": {}, "this": {}, "with": {}, "you": {}, "are": {},
	"was": {}, "but": {}, "not": {}, "have": {}, "has": {}, "its": {}, "it's": {}, "from": {},
	"they": {}, "their": {}, "what": {}, "your": {}, "just": {}, "about": {}, "will": {},
}

func wordSet(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if utf8.RuneCountInString(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

func countCues(text string, cues []string) int {
	n := 0
	for _, c := range cues {
		if c != "" && strings.Contains(text, c) {
			n++
		}
	}
	return n
}
