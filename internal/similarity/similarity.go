// Package similarity ranks known tags by edit distance to an input string.
package similarity

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/starford/smarttags/internal/tagname"
)

// Defaults used when no matcher configuration is supplied.
const (
	DefaultMaxResults  = 3
	DefaultMaxDistance = 3
)

// Suggestion is a candidate tag and its edit distance to the input.
type Suggestion struct {
	Tag      string `json:"tag"`
	Distance int    `json:"distance"`
}

// Matcher carries the thresholds used to build suggestions.
type Matcher struct {
	MaxResults  int
	MaxDistance int
}

// DefaultMatcher returns a Matcher with the default thresholds.
func DefaultMatcher() Matcher {
	return Matcher{MaxResults: DefaultMaxResults, MaxDistance: DefaultMaxDistance}
}

// Suggest applies the matcher thresholds to candidates.
func (m Matcher) Suggest(input string, candidates []string) []Suggestion {
	return Suggest(input, candidates, m.MaxResults, m.MaxDistance)
}

// Suggest returns the candidates within maxDistance edits of input, closest
// first. Ties keep the original candidate order. maxResults <= 0 returns
// every match.
func Suggest(input string, candidates []string, maxResults, maxDistance int) []Suggestion {
	needle := tagname.Normalize(input)
	if needle == "" || maxDistance < 0 {
		return nil
	}

	var out []Suggestion
	for _, c := range candidates {
		candidate := tagname.Normalize(c)
		if candidate == "" {
			continue
		}
		d := levenshtein.ComputeDistance(needle, candidate)
		if d > maxDistance {
			continue
		}
		out = append(out, Suggestion{Tag: candidate, Distance: d})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Distance < out[j].Distance
	})
	if maxResults > 0 && len(out) > maxResults {
		out = out[:maxResults]
	}
	return out
}
