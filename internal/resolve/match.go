package resolve

import (
	"sort"
	"strings"

	"repscore-engine/internal/domain"
)

// Candidate is one listing link pulled off a platform search page.
type Candidate struct {
	Name string
	Ref  string
}

// Scores below this never count as a match.
const minScore = 0.5

// A runner-up this close to the best candidate makes the pick
// ambiguous; park it for a human instead of guessing.
const reviewMargin = 0.15

var fillerWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "&": true,
	"at": true, "of": true, "in": true, "on": true,
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.Join(strings.Fields(s), " ")
	return strings.TrimSpace(s)
}

// nameTokens lowercases, strips punctuation and drops filler words so
// "The Driskill Hotel" and "Driskill Hotel, Austin" compare cleanly.
func nameTokens(s string) []string {
	s = strings.ToLower(cleanText(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			return r
		default:
			return ' '
		}
	}, s)

	seen := map[string]bool{}
	var out []string
	for _, tok := range strings.Fields(s) {
		if fillerWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// scoreNames is token-set overlap (Jaccard) between the property name
// and a candidate's listing title.
func scoreNames(want, got string) float64 {
	a, b := nameTokens(want), nameTokens(got)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inA := make(map[string]bool, len(a))
	for _, t := range a {
		inA[t] = true
	}
	shared := 0
	for _, t := range b {
		if inA[t] {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	return float64(shared) / float64(union)
}

// PickCandidate chooses the listing that matches the property, or
// reports why none can be chosen: no confident match means the
// property is simply not findable yet, two near-equal matches need a
// human decision.
func PickCandidate(prop domain.Property, pl domain.Platform, cands []Candidate) (Candidate, error) {
	if len(cands) == 0 {
		return Candidate{}, domain.Classedf(domain.ClassNoIdentity, pl, "no search results for %q", prop.Name)
	}

	type scored struct {
		c     Candidate
		score float64
	}
	ranked := make([]scored, 0, len(cands))
	for _, c := range cands {
		s := scoreNames(prop.Name, c.Name)
		if prop.City != "" && strings.Contains(strings.ToLower(c.Name), strings.ToLower(prop.City)) {
			s += 0.1
		}
		ranked = append(ranked, scored{c: c, score: s})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	best := ranked[0]
	if best.score < minScore {
		return Candidate{}, domain.Classedf(domain.ClassNoIdentity, pl,
			"no confident match for %q (best %q scored %.2f)", prop.Name, best.c.Name, best.score)
	}
	if len(ranked) > 1 {
		second := ranked[1]
		if second.c.Ref != best.c.Ref && best.score-second.score < reviewMargin && best.score < 0.95 {
			return Candidate{}, domain.Classedf(domain.ClassNeedsReview, pl,
				"ambiguous match for %q: %q (%.2f) vs %q (%.2f)",
				prop.Name, best.c.Name, best.score, second.c.Name, second.score)
		}
	}
	return best.c, nil
}

func searchQuery(prop domain.Property) string {
	parts := []string{prop.Name}
	if prop.City != "" {
		parts = append(parts, prop.City)
	}
	if prop.State != "" {
		parts = append(parts, prop.State)
	}
	return cleanText(strings.Join(parts, " "))
}
