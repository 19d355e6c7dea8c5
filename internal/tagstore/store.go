// Package tagstore implements the persistent dictionary of canonical tags and
// their aliases. The store is loaded once per run, mutated in memory and
// saved back only when something changed.
package tagstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/storage"
	"github.com/starford/smarttags/internal/tagname"
)

// Entry is one canonical tag with the aliases that resolve to it.
type Entry struct {
	Name    string   `json:"name"`
	Aliases []string `json:"aliases"`
}

// document is the on-disk JSON layout. Unknown keys are ignored on load.
type document struct {
	Tags []Entry `json:"tags"`
}

// Store holds canonical tags in insertion order and a single-hop alias map.
type Store struct {
	entries []Entry
	byName  map[string]int    // canonical -> index into entries
	aliases map[string]string // alias -> canonical
	dirty   bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		byName:  make(map[string]int),
		aliases: make(map[string]string),
	}
}

// Load reads the store at path. A missing (or empty) file yields an empty
// store; malformed JSON or content that breaks the alias invariants is
// reported as apperr.ErrCorruptStore.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("tagstore: read %s: %w: %w", path, apperr.ErrIO, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return New(), nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("tagstore: parse %s: %w: %w", path, apperr.ErrCorruptStore, err)
	}

	s, err := fromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("tagstore: %s: %w", path, err)
	}
	return s, nil
}

func fromDocument(doc document) (*Store, error) {
	s := New()
	for _, e := range doc.Tags {
		name := tagname.Normalize(e.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: entry with empty name", apperr.ErrCorruptStore)
		}
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("%w: duplicate tag %q", apperr.ErrCorruptStore, name)
		}
		s.byName[name] = len(s.entries)
		s.entries = append(s.entries, Entry{Name: name, Aliases: []string{}})
	}

	for i, e := range doc.Tags {
		name := s.entries[i].Name
		for _, raw := range e.Aliases {
			alias := tagname.Normalize(raw)
			switch {
			case alias == "":
				return nil, fmt.Errorf("%w: empty alias for %q", apperr.ErrCorruptStore, name)
			case alias == name:
				return nil, fmt.Errorf("%w: tag %q lists itself as alias", apperr.ErrCorruptStore, name)
			}
			if _, canonical := s.byName[alias]; canonical {
				return nil, fmt.Errorf("%w: alias %q is also a canonical tag", apperr.ErrCorruptStore, alias)
			}
			if prev, ok := s.aliases[alias]; ok {
				if prev != name {
					return nil, fmt.Errorf("%w: alias %q maps to both %q and %q", apperr.ErrCorruptStore, alias, prev, name)
				}
				continue
			}
			s.aliases[alias] = name
			s.entries[i].Aliases = append(s.entries[i].Aliases, alias)
		}
	}
	return s, nil
}

// Save writes the store to path atomically and clears the dirty flag.
func (s *Store) Save(path string) error {
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("tagstore: save %s: %w", path, err)
	}
	s.dirty = false
	return nil
}

// Marshal renders the store in its on-disk JSON layout.
func (s *Store) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(document{Tags: s.Entries()}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("tagstore: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// ResolveExact returns the canonical form of tag when it is either a
// canonical tag itself or a known alias.
func (s *Store) ResolveExact(tag string) (string, bool) {
	tag = tagname.Normalize(tag)
	if _, ok := s.byName[tag]; ok {
		return tag, true
	}
	if target, ok := s.aliases[tag]; ok {
		return target, true
	}
	return "", false
}

// IsCanonical reports whether tag is a canonical tag.
func (s *Store) IsCanonical(tag string) bool {
	_, ok := s.byName[tagname.Normalize(tag)]
	return ok
}

// AddCanonical registers tag as a canonical tag. It reports false when the
// tag already exists and fails with apperr.ErrConflict when tag is an alias.
func (s *Store) AddCanonical(tag string) (bool, error) {
	tag = tagname.Normalize(tag)
	if err := tagname.Validate(tag); err != nil {
		return false, err
	}
	if _, ok := s.byName[tag]; ok {
		return false, nil
	}
	if target, ok := s.aliases[tag]; ok {
		return false, fmt.Errorf("tagstore: %q is an alias of %q: %w", tag, target, apperr.ErrConflict)
	}
	s.byName[tag] = len(s.entries)
	s.entries = append(s.entries, Entry{Name: tag, Aliases: []string{}})
	s.dirty = true
	return true, nil
}

// AddAlias records alias -> target. Re-registering the same pair is a no-op.
func (s *Store) AddAlias(alias, target string) (bool, error) {
	alias = tagname.Normalize(alias)
	target = tagname.Normalize(target)
	if err := tagname.Validate(alias); err != nil {
		return false, err
	}

	idx, ok := s.byName[target]
	if !ok {
		return false, fmt.Errorf("tagstore: alias target %q is not a canonical tag: %w", target, apperr.ErrNotFound)
	}
	if _, canonical := s.byName[alias]; canonical {
		return false, fmt.Errorf("tagstore: %q is already a canonical tag: %w", alias, apperr.ErrConflict)
	}
	if prev, exists := s.aliases[alias]; exists {
		if prev == target {
			return false, nil
		}
		return false, fmt.Errorf("tagstore: alias %q already maps to %q: %w", alias, prev, apperr.ErrConflict)
	}

	s.aliases[alias] = target
	s.entries[idx].Aliases = append(s.entries[idx].Aliases, alias)
	s.dirty = true
	return true, nil
}

// AllCanonical returns canonical tags in insertion order.
func (s *Store) AllCanonical() []string {
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Name
	}
	return out
}

// Aliases returns the aliases registered for a canonical tag.
func (s *Store) Aliases(tag string) []string {
	idx, ok := s.byName[tagname.Normalize(tag)]
	if !ok {
		return nil
	}
	return append([]string(nil), s.entries[idx].Aliases...)
}

// Entries returns a copy of all entries in insertion order.
func (s *Store) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = Entry{Name: e.Name, Aliases: append([]string{}, e.Aliases...)}
	}
	return out
}

// Clone returns an independent copy, dirty flag included.
func (s *Store) Clone() *Store {
	c := New()
	c.entries = s.Entries()
	for k, v := range s.byName {
		c.byName[k] = v
	}
	for k, v := range s.aliases {
		c.aliases[k] = v
	}
	c.dirty = s.dirty
	return c
}

// Len returns the number of canonical tags.
func (s *Store) Len() int {
	return len(s.entries)
}

// Dirty reports whether the store changed since it was loaded or saved.
func (s *Store) Dirty() bool {
	return s.dirty
}
