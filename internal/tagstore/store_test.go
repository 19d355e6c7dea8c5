package tagstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/smarttags/internal/apperr"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tags_db.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "absent", "tags_db.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Dirty())
}

func TestLoad_EmptyFileIsEmpty(t *testing.T) {
	s, err := Load(writeFile(t, "  \n"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestLoad_MalformedJSON(t *testing.T) {
	_, err := Load(writeFile(t, `{"tags": [`))
	require.ErrorIs(t, err, apperr.ErrCorruptStore)
}

func TestLoad_UnknownKeysIgnored(t *testing.T) {
	path := writeFile(t, `{
  "version": 2,
  "tags": [
    {"name": "Rust", "aliases": ["RS"], "color": "orange"},
    {"name": "python"}
  ]
}`)
	s, err := Load(path)
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"rust", "python"}, s.AllCanonical()); diff != "" {
		t.Fatalf("canonical tags (-want +got):\n%s", diff)
	}
	got, ok := s.ResolveExact("rs")
	require.True(t, ok)
	assert.Equal(t, "rust", got)
}

func TestLoad_InvariantViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"duplicate canonical", `{"tags":[{"name":"go"},{"name":"GO"}]}`},
		{"alias is canonical", `{"tags":[{"name":"go","aliases":["golang"]},{"name":"golang"}]}`},
		{"alias with two targets", `{"tags":[{"name":"go","aliases":["g"]},{"name":"git","aliases":["g"]}]}`},
		{"self alias", `{"tags":[{"name":"go","aliases":["Go"]}]}`},
		{"empty name", `{"tags":[{"name":"  "}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.ErrorIs(t, err, apperr.ErrCorruptStore)
		})
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tags_db.json")

	s := New()
	_, err := s.AddCanonical("rust")
	require.NoError(t, err)
	_, err = s.AddCanonical("development")
	require.NoError(t, err)
	_, err = s.AddAlias("rs", "rust")
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	require.NoError(t, s.Save(path))
	assert.False(t, s.Dirty())

	loaded, err := Load(path)
	require.NoError(t, err)
	if diff := cmp.Diff(s.Entries(), loaded.Entries()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_Format(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tags_db.json")
	s := New()
	_, _ = s.AddCanonical("rust")
	require.NoError(t, s.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	want := "{\n  \"tags\": [\n    {\n      \"name\": \"rust\",\n      \"aliases\": []\n    }\n  ]\n}\n"
	assert.Equal(t, want, string(data))
}

func TestResolveExact(t *testing.T) {
	s := New()
	_, _ = s.AddCanonical("rust")
	_, _ = s.AddAlias("rs", "rust")

	tag, ok := s.ResolveExact("Rust")
	assert.True(t, ok)
	assert.Equal(t, "rust", tag)

	tag, ok = s.ResolveExact(" RS ")
	assert.True(t, ok)
	assert.Equal(t, "rust", tag)

	_, ok = s.ResolveExact("go")
	assert.False(t, ok)
}

func TestAddCanonical(t *testing.T) {
	s := New()
	added, err := s.AddCanonical("Rust")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddCanonical("rust")
	require.NoError(t, err)
	assert.False(t, added, "re-adding is a no-op")

	_, _ = s.AddAlias("rs", "rust")
	_, err = s.AddCanonical("rs")
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.AddCanonical("   ")
	require.ErrorIs(t, err, apperr.ErrInvalidTag)
}

func TestAddAlias(t *testing.T) {
	s := New()
	_, _ = s.AddCanonical("rust")
	_, _ = s.AddCanonical("ruby")

	added, err := s.AddAlias("rs", "rust")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddAlias("RS", "Rust")
	require.NoError(t, err)
	assert.False(t, added, "same pair is a no-op")

	_, err = s.AddAlias("rs", "ruby")
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.AddAlias("ruby", "rust")
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = s.AddAlias("py", "python")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Equal(t, []string{"rs"}, s.Aliases("rust"))
	assert.Empty(t, s.Aliases("ruby"))
}

func TestAliasResolutionIsSingleHop(t *testing.T) {
	s := New()
	_, _ = s.AddCanonical("rust")
	_, _ = s.AddAlias("rs", "rust")

	// An alias can never become the target of another alias.
	_, err := s.AddAlias("r", "rs")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	for i := 0; i < 3; i++ {
		tag, ok := s.ResolveExact("rs")
		require.True(t, ok)
		assert.Equal(t, "rust", tag)
	}
}

func TestEntriesAreCopies(t *testing.T) {
	s := New()
	_, _ = s.AddCanonical("rust")
	_, _ = s.AddAlias("rs", "rust")

	entries := s.Entries()
	entries[0].Aliases[0] = "mutated"
	assert.Equal(t, []string{"rs"}, s.Aliases("rust"))
}

func TestClone_Independent(t *testing.T) {
	s := New()
	_, _ = s.AddCanonical("rust")

	c := s.Clone()
	_, _ = c.AddCanonical("go")
	_, _ = c.AddAlias("rs", "rust")

	assert.Equal(t, []string{"rust"}, s.AllCanonical())
	assert.Empty(t, s.Aliases("rust"))
	assert.Equal(t, []string{"rust", "go"}, c.AllCanonical())
	assert.True(t, c.Dirty())
}
