package similarity

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestSuggest_OrderedByDistanceThenCandidateOrder(t *testing.T) {
	candidates := []string{"rust", "ruby", "rest", "go", "rusty"}

	got := Suggest("rust", candidates, 0, 2)
	want := []Suggestion{
		{Tag: "rust", Distance: 0},
		{Tag: "rest", Distance: 1},
		{Tag: "rusty", Distance: 1},
		{Tag: "ruby", Distance: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions (-want +got):\n%s", diff)
	}
}

func TestSuggest_Threshold(t *testing.T) {
	got := Suggest("dvelop", []string{"develop", "development"}, 0, 2)
	want := []Suggestion{{Tag: "develop", Distance: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("suggestions (-want +got):\n%s", diff)
	}
}

func TestSuggest_MaxResults(t *testing.T) {
	got := Suggest("ab", []string{"aa", "ac", "ad", "ae"}, 2, 1)
	assert.Equal(t, []Suggestion{{Tag: "aa", Distance: 1}, {Tag: "ac", Distance: 1}}, got)
}

func TestSuggest_NoCloseMatch(t *testing.T) {
	assert.Empty(t, Suggest("rs", []string{"kubernetes", "python"}, 3, 2))
	assert.Empty(t, Suggest("", []string{"a"}, 3, 2))
	assert.Empty(t, Suggest("a", nil, 3, 2))
}

func TestSuggest_NormalizesInput(t *testing.T) {
	got := Suggest("  PYTHN ", []string{"Python"}, 3, 2)
	assert.Equal(t, []Suggestion{{Tag: "python", Distance: 1}}, got)
}

func TestSuggest_CountsRunes(t *testing.T) {
	got := Suggest("café", []string{"cafe"}, 3, 1)
	assert.Equal(t, []Suggestion{{Tag: "cafe", Distance: 1}}, got)
}

func TestSuggest_Deterministic(t *testing.T) {
	candidates := []string{"golang", "go", "gopher", "good", "gold", "goal"}
	first := Suggest("gol", candidates, 3, 3)
	for i := 0; i < 20; i++ {
		if diff := cmp.Diff(first, Suggest("gol", candidates, 3, 3)); diff != "" {
			t.Fatalf("run %d differs (-first +got):\n%s", i, diff)
		}
	}
}

func TestMatcher_Defaults(t *testing.T) {
	m := DefaultMatcher()
	assert.Equal(t, DefaultMaxResults, m.MaxResults)
	assert.Equal(t, DefaultMaxDistance, m.MaxDistance)
	assert.Equal(t, []Suggestion{{Tag: "development", Distance: 1}}, m.Suggest("developmnt", []string{"development"}))
}
