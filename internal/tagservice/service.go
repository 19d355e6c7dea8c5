// Package tagservice owns a loaded tag store for long-running surfaces and
// exposes the tagging operations shared by the CLI, HTTP API and MCP server.
package tagservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/index"
	"github.com/starford/smarttags/internal/similarity"
	"github.com/starford/smarttags/internal/storage"
	"github.com/starford/smarttags/internal/tagname"
	"github.com/starford/smarttags/internal/tagstore"
)

// Event kinds emitted after successful mutations.
const (
	EventTagCreated      = "tag.created"
	EventAliasRegistered = "alias.registered"
	EventDocumentTagged  = "document.tagged"
	EventStoreReloaded   = "store.reloaded"
)

// Event describes a completed mutation.
type Event struct {
	Kind  string   `json:"kind"`
	Tag   string   `json:"tag,omitempty"`
	Alias string   `json:"alias,omitempty"`
	Path  string   `json:"path,omitempty"`
	Tags  []string `json:"tags,omitempty"`
}

// EventFunc receives events. It is called with the service lock held and
// must not call back into the service.
type EventFunc func(Event)

// TagInfo is a canonical tag with its aliases and usage count.
type TagInfo struct {
	Name      string   `json:"name"`
	Aliases   []string `json:"aliases"`
	Documents int      `json:"documents"`
}

// Inspection is a read-only preview of how a tag would resolve.
type Inspection struct {
	Input       string                  `json:"input"`
	Normalized  string                  `json:"normalized"`
	Status      Status                  `json:"status"`
	Tag         string                  `json:"tag,omitempty"`
	Suggestions []similarity.Suggestion `json:"suggestions,omitempty"`
}

// Status classifies a tag against the store.
type Status string

const (
	StatusCanonical Status = "canonical"
	StatusAlias     Status = "alias"
	StatusUnknown   Status = "unknown"
)

// Option configures a Service.
type Option func(*Service)

// WithDocuments sets the vault the service tags and audits.
func WithDocuments(p storage.Provider) Option {
	return func(s *Service) { s.docs = p }
}

// WithIndex enables usage counts and index updates after tagging.
func WithIndex(db index.TagIndex) Option {
	return func(s *Service) { s.db = db }
}

// WithMatcher overrides the suggestion thresholds.
func WithMatcher(m similarity.Matcher) Option {
	return func(s *Service) { s.matcher = m }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithEvents registers a callback for completed mutations.
func WithEvents(fn EventFunc) Option {
	return func(s *Service) { s.onEvent = fn }
}

// Service serializes all access to one tag store file.
type Service struct {
	mu        sync.Mutex
	storePath string
	store     *tagstore.Store

	docs    storage.Provider
	db      index.TagIndex
	matcher similarity.Matcher
	logger  *slog.Logger
	onEvent EventFunc
}

// New loads the store at storePath and returns a service around it.
func New(storePath string, opts ...Option) (*Service, error) {
	s := &Service{
		storePath: storePath,
		matcher:   similarity.DefaultMatcher(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	store, err := tagstore.Load(storePath)
	if err != nil {
		return nil, err
	}
	s.store = store
	return s, nil
}

// StorePath returns the path of the backing store file.
func (s *Service) StorePath() string {
	return s.storePath
}

func (s *Service) emit(e Event) {
	if s.onEvent != nil {
		s.onEvent(e)
	}
}

// ListTags returns every canonical tag in store order.
func (s *Service) ListTags(_ context.Context) ([]TagInfo, error) {
	s.mu.Lock()
	entries := s.store.Entries()
	s.mu.Unlock()

	counts := map[string]int{}
	if s.db != nil {
		usage, err := s.db.TagCounts()
		if err != nil {
			return nil, err
		}
		for _, u := range usage {
			counts[u.Tag] = u.Documents
		}
	}

	out := make([]TagInfo, len(entries))
	for i, e := range entries {
		out[i] = TagInfo{Name: e.Name, Aliases: e.Aliases, Documents: counts[e.Name]}
	}
	return out, nil
}

// Inspect reports how raw would resolve without changing anything.
func (s *Service) Inspect(_ context.Context, raw string) (Inspection, error) {
	tag := tagname.Normalize(raw)
	if err := tagname.Validate(tag); err != nil {
		return Inspection{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inspect(raw, tag), nil
}

func (s *Service) inspect(raw, tag string) Inspection {
	in := Inspection{Input: raw, Normalized: tag}
	if canonical, ok := s.store.ResolveExact(tag); ok {
		in.Tag = canonical
		in.Status = StatusCanonical
		if canonical != tag {
			in.Status = StatusAlias
		}
		return in
	}
	in.Status = StatusUnknown
	in.Suggestions = s.matcher.Suggest(tag, s.store.AllCanonical())
	return in
}

// Documents lists the vault documents carrying tag. Aliases resolve to their
// canonical tag first.
func (s *Service) Documents(_ context.Context, raw string) ([]string, error) {
	if s.db == nil {
		return nil, errors.New("tagservice: no index configured")
	}
	tag := tagname.Normalize(raw)
	if err := tagname.Validate(tag); err != nil {
		return nil, err
	}

	s.mu.Lock()
	canonical, ok := s.store.ResolveExact(tag)
	s.mu.Unlock()
	if ok {
		tag = canonical
	}
	paths, err := s.db.DocumentsWithTag(tag)
	if err != nil {
		return nil, err
	}
	return nonNil(paths), nil
}

// CreateTag registers a canonical tag. It reports false when the tag
// already existed.
func (s *Service) CreateTag(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.store.Clone()
	created, err := work.AddCanonical(name)
	if err != nil || !created {
		return false, err
	}
	if err := s.commit(work); err != nil {
		return false, err
	}
	tag := tagname.Normalize(name)
	s.logger.Info("tag created", slog.String("tag", tag))
	s.emit(Event{Kind: EventTagCreated, Tag: tag})
	return true, nil
}

// RegisterAlias maps alias to the canonical tag target. It reports false
// when the same mapping already existed.
func (s *Service) RegisterAlias(_ context.Context, alias, target string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.store.Clone()
	added, err := work.AddAlias(alias, target)
	if err != nil || !added {
		return false, err
	}
	if err := s.commit(work); err != nil {
		return false, err
	}
	a, t := tagname.Normalize(alias), tagname.Normalize(target)
	s.logger.Info("alias registered", slog.String("alias", a), slog.String("tag", t))
	s.emit(Event{Kind: EventAliasRegistered, Alias: a, Tag: t})
	return true, nil
}

// commit saves work and makes it the current store.
func (s *Service) commit(work *tagstore.Store) error {
	if !work.Dirty() {
		s.store = work
		return nil
	}
	if err := work.Save(s.storePath); err != nil {
		return err
	}
	s.store = work
	return nil
}

// Reload re-reads the store file, picking up edits made by other processes.
// The current store is kept when the file is corrupt.
func (s *Service) Reload(_ context.Context) error {
	store, err := tagstore.Load(s.storePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store.Dirty() {
		return fmt.Errorf("tagservice: unsaved changes: %w", apperr.ErrConflict)
	}
	s.store = store
	s.emit(Event{Kind: EventStoreReloaded})
	return nil
}

// Snapshot returns a copy of the current store.
func (s *Service) Snapshot() *tagstore.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Clone()
}

func (s *Service) requireDocuments() error {
	if s.docs == nil {
		return errors.New("tagservice: no vault configured")
	}
	return nil
}
