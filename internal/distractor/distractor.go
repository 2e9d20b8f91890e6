// Package distractor picks wrong answers for multiple-choice questions.
package distractor

import (
	"math/rand"
	"strings"

	"github.com/danieldreier/kanji-srs/internal/srs"
)

// ValueFunc extracts the comparable answer text from a card.
type ValueFunc func(srs.Card) string

// FacetValue returns a ValueFunc reading facet f. Cards without the facet
// yield the empty string.
func FacetValue(f srs.FacetKind) ValueFunc {
	return func(c srs.Card) string {
		v, _ := c.Value(f)
		return v
	}
}

// CharacterValue reads the card's front face.
func CharacterValue(c srs.Card) string {
	return c.Character
}

// Generate returns up to n distinct values drawn uniformly without
// replacement from pool, excluding correct and empty values. When the pool
// has fewer candidates than n, all of them are returned; the result is never
// padded.
func Generate(pool []srs.Card, correct string, value ValueFunc, n int, rng *rand.Rand) []string {
	if n <= 0 {
		return nil
	}
	correct = strings.TrimSpace(correct)

	seen := map[string]bool{correct: true}
	candidates := make([]string, 0, len(pool))
	for _, c := range pool {
		v := strings.TrimSpace(value(c))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		candidates = append(candidates, v)
	}

	if len(candidates) <= n {
		rng.Shuffle(len(candidates), func(i, j int) {
			candidates[i], candidates[j] = candidates[j], candidates[i]
		})
		return candidates
	}

	// Partial Fisher-Yates: the first n slots become the sample.
	for i := 0; i < n; i++ {
		j := i + rng.Intn(len(candidates)-i)
		candidates[i], candidates[j] = candidates[j], candidates[i]
	}
	return candidates[:n]
}

// Options shuffles correct in among the distractors and returns the option
// list together with the index of the correct answer.
func Options(correct string, distractors []string, rng *rand.Rand) ([]string, int) {
	opts := make([]string, 0, len(distractors)+1)
	opts = append(opts, strings.TrimSpace(correct))
	opts = append(opts, distractors...)
	rng.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	for i, o := range opts {
		if o == strings.TrimSpace(correct) {
			return opts, i
		}
	}
	return opts, -1
}
