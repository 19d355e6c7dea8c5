package resolver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/similarity"
	"github.com/starford/smarttags/internal/tagstore"
)

// scripted answers each Choose call with the next queued decision.
type scripted struct {
	answers []Decision
	calls   int
	inputs  []string
}

func (s *scripted) Choose(_ context.Context, input string, _ []similarity.Suggestion) (Decision, error) {
	s.inputs = append(s.inputs, input)
	if s.calls >= len(s.answers) {
		return Decision{}, errors.New("unexpected prompt")
	}
	d := s.answers[s.calls]
	s.calls++
	return d, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func storeWith(t *testing.T, tags ...string) *tagstore.Store {
	t.Helper()
	s := tagstore.New()
	for _, tag := range tags {
		_, err := s.AddCanonical(tag)
		require.NoError(t, err)
	}
	// Round-trip through disk so the fixture starts clean.
	path := filepath.Join(t.TempDir(), "tags_db.json")
	require.NoError(t, s.Save(path))
	loaded, err := tagstore.Load(path)
	require.NoError(t, err)
	require.False(t, loaded.Dirty())
	return loaded
}

func TestResolve_NewTagInEmptyStore(t *testing.T) {
	store := tagstore.New()
	chooser := &scripted{}
	r := New(store, chooser, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "Rust")
	require.NoError(t, err)
	assert.Equal(t, NewTagCreated, out.Kind)
	assert.Equal(t, "rust", out.Tag)
	assert.Zero(t, chooser.calls, "no suggestions means no prompt")
	assert.True(t, store.IsCanonical("rust"))
	assert.True(t, store.Dirty())
}

func TestResolve_AlreadyCanonical(t *testing.T) {
	store := storeWith(t, "python")
	r := New(store, &scripted{}, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "  PYTHON ")
	require.NoError(t, err)
	assert.Equal(t, Outcome{Input: "  PYTHON ", Kind: AlreadyCanonical, Tag: "python"}, out)
	assert.False(t, store.Dirty())
}

func TestResolve_RegisterAliasThenResolveViaAlias(t *testing.T) {
	store := storeWith(t, "rust")
	chooser := &scripted{answers: []Decision{{Intent: RegisterAlias, Candidate: "rust"}}}
	r := New(store, chooser, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "rs")
	require.NoError(t, err)
	assert.Equal(t, AliasRegistered, out.Kind)
	assert.Equal(t, "rust", out.Tag)
	assert.Equal(t, []similarity.Suggestion{{Tag: "rust", Distance: 2}}, out.Suggestions)

	tag, ok := store.ResolveExact("rs")
	require.True(t, ok)
	assert.Equal(t, "rust", tag)

	// Second run: alias hit, no prompt.
	out, err = r.Resolve(context.Background(), "rs")
	require.NoError(t, err)
	assert.Equal(t, ResolvedViaAlias, out.Kind)
	assert.Equal(t, "rust", out.Tag)
	assert.Equal(t, 1, chooser.calls)
}

func TestResolve_TypoCorrectedOnceLeavesStoreUntouched(t *testing.T) {
	store := storeWith(t, "development")
	before := store.Entries()
	chooser := &scripted{answers: []Decision{{Intent: UseExisting, Candidate: "development"}}}
	r := New(store, chooser, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "developmnt")
	require.NoError(t, err)
	assert.Equal(t, TypoCorrectedOnce, out.Kind)
	assert.Equal(t, "development", out.Tag)
	assert.False(t, store.Dirty())
	assert.Equal(t, before, store.Entries())
	_, ok := store.ResolveExact("developmnt")
	assert.False(t, ok)
}

func TestResolve_CreateNewDespiteSuggestions(t *testing.T) {
	store := storeWith(t, "rust")
	chooser := &scripted{answers: []Decision{{Intent: CreateNew}}}
	r := New(store, chooser, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "rs")
	require.NoError(t, err)
	assert.Equal(t, NewTagCreated, out.Kind)
	assert.Equal(t, "rs", out.Tag)
	assert.Equal(t, []string{"rust", "rs"}, store.AllCanonical())
}

func TestResolve_NoCloseCandidateCreatesWithoutPrompt(t *testing.T) {
	store := storeWith(t, "kubernetes")
	chooser := &scripted{}
	r := New(store, chooser, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "rs")
	require.NoError(t, err)
	assert.Equal(t, NewTagCreated, out.Kind)
	assert.Zero(t, chooser.calls)
}

func TestResolve_EmptyCandidateUsesClosestSuggestion(t *testing.T) {
	store := storeWith(t, "rest", "rust")
	chooser := &scripted{answers: []Decision{{Intent: UseExisting}}}
	r := New(store, chooser, WithLogger(quietLogger()))

	out, err := r.Resolve(context.Background(), "rost")
	require.NoError(t, err)
	assert.Equal(t, "rest", out.Tag, "ties keep store order")
}

func TestResolve_CandidateMustBeCanonical(t *testing.T) {
	store := storeWith(t, "rust")
	chooser := &scripted{answers: []Decision{{Intent: UseExisting, Candidate: "ruby"}}}
	r := New(store, chooser, WithLogger(quietLogger()))

	_, err := r.Resolve(context.Background(), "rs")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestResolve_InvalidTag(t *testing.T) {
	r := New(tagstore.New(), &scripted{}, WithLogger(quietLogger()))

	_, err := r.Resolve(context.Background(), "   ")
	require.ErrorIs(t, err, apperr.ErrInvalidTag)
}

func TestResolve_ChooserFailureAborts(t *testing.T) {
	store := storeWith(t, "rust")
	boom := errors.New("stdin closed")
	chooser := ChooserFunc(func(context.Context, string, []similarity.Suggestion) (Decision, error) {
		return Decision{}, boom
	})
	r := New(store, chooser, WithLogger(quietLogger()))

	_, err := r.Resolve(context.Background(), "rs")
	require.ErrorIs(t, err, ErrAborted)
	require.ErrorIs(t, err, boom)
	assert.False(t, store.Dirty())
}

func TestResolveAll_BatchSelfConsistency(t *testing.T) {
	store := storeWith(t, "rust")
	chooser := &scripted{answers: []Decision{{Intent: CreateNew}}}
	r := New(store, chooser, WithLogger(quietLogger()))

	b, err := r.ResolveAll(context.Background(), []string{"rs", "rs"})
	require.NoError(t, err)
	require.Len(t, b.Outcomes, 2)
	assert.Equal(t, NewTagCreated, b.Outcomes[0].Kind)
	assert.Equal(t, AlreadyCanonical, b.Outcomes[1].Kind)
	assert.Equal(t, []string{"rs"}, b.Tags)
	assert.Equal(t, 1, chooser.calls)
	assert.True(t, b.Changed())
}

func TestResolveAll_RejectedAliasBecomesWarning(t *testing.T) {
	store := storeWith(t, "rust", "ruby")
	chooser := ChooserFunc(func(context.Context, string, []similarity.Suggestion) (Decision, error) {
		return Decision{Intent: RegisterAlias, Candidate: "rusty"}, nil
	})
	r := New(store, chooser, WithLogger(quietLogger()))

	b, err := r.ResolveAll(context.Background(), []string{"ruby", "rst", "python"})
	require.NoError(t, err)
	require.Len(t, b.Warnings, 1)
	assert.Equal(t, "rst", b.Warnings[0].Input)
	require.ErrorIs(t, b.Warnings[0].Err, apperr.ErrNotFound)
	assert.Equal(t, []string{"ruby", "python"}, b.Tags, "rejected tag contributes nothing")
	_, ok := store.ResolveExact("rst")
	assert.False(t, ok)
}

func TestResolveAll_InvalidTagWarnsAndContinues(t *testing.T) {
	r := New(tagstore.New(), &scripted{}, WithLogger(quietLogger()))

	b, err := r.ResolveAll(context.Background(), []string{"go", "bad\ttag", "go"})
	require.NoError(t, err)
	require.Len(t, b.Warnings, 1)
	assert.Equal(t, "bad\ttag", b.Warnings[0].Input)
	require.ErrorIs(t, b.Warnings[0].Err, apperr.ErrInvalidTag)
	assert.Equal(t, []string{"go"}, b.Tags)
}

func TestResolveAll_AbortKeepsEarlierOutcomes(t *testing.T) {
	store := storeWith(t, "rust")
	chooser := &scripted{}
	r := New(store, chooser, WithLogger(quietLogger()))

	b, err := r.ResolveAll(context.Background(), []string{"rust", "rs", "go"})
	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, []string{"rust"}, b.Tags)
}

func TestResolveAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(tagstore.New(), &scripted{}, WithLogger(quietLogger()))
	_, err := r.ResolveAll(ctx, []string{"go"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestKind_Strings(t *testing.T) {
	assert.Equal(t, "already-canonical", AlreadyCanonical.String())
	assert.Equal(t, "typo-corrected-once", TypoCorrectedOnce.String())
	assert.True(t, AliasRegistered.Mutates())
	assert.True(t, NewTagCreated.Mutates())
	assert.False(t, ResolvedViaAlias.Mutates())
	assert.Equal(t, "alias", RegisterAlias.String())

	var k Kind
	require.NoError(t, k.UnmarshalText([]byte("resolved-via-alias")))
	assert.Equal(t, ResolvedViaAlias, k)
	require.Error(t, k.UnmarshalText([]byte("sideways")))
}
