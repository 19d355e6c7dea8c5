// Package testutil provides shared test helpers for setting up vaults, tag
// stores and databases.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/smarttags/internal/index"
	"github.com/starford/smarttags/internal/storage"
	"github.com/starford/smarttags/internal/tagstore"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "smarttags-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory with a storage.FS.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewFS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}

// WriteDoc writes a document into the vault, creating parent directories.
func WriteDoc(t *testing.T, vaultDir, rel, content string) {
	t.Helper()
	p := filepath.Join(vaultDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadDoc returns the content of a vault document.
func ReadDoc(t *testing.T, vaultDir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(vaultDir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

// TestStore writes a tag store holding the given canonical tags and aliases
// (alias -> target) to a temp file and returns its path.
func TestStore(t *testing.T, tags []string, aliases map[string]string) string {
	t.Helper()
	s := tagstore.New()
	for _, tag := range tags {
		if _, err := s.AddCanonical(tag); err != nil {
			t.Fatal(err)
		}
	}
	for alias, target := range aliases {
		if _, err := s.AddAlias(alias, target); err != nil {
			t.Fatal(err)
		}
	}
	path := filepath.Join(t.TempDir(), "tags_db.json")
	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
