package tagservice

import (
	"context"
	"errors"
	"log/slog"

	"github.com/starford/smarttags/internal/frontmatter"
	"github.com/starford/smarttags/internal/index"
	"github.com/starford/smarttags/internal/resolver"
	"github.com/starford/smarttags/internal/tagname"
	"github.com/starford/smarttags/internal/tagstore"
)

// Result is the outcome of tagging one document.
type Result struct {
	Path     string             `json:"path,omitempty"`
	Outcomes []resolver.Outcome `json:"outcomes"`
	Warnings []string           `json:"warnings,omitempty"`
	// Tags are the canonical tags the inputs resolved to.
	Tags []string `json:"tags"`
	// Added are the tags that were missing from the document.
	Added        []string `json:"added"`
	StoreChanged bool     `json:"store_changed"`
	Content      []byte   `json:"-"`
}

// DocumentChanged reports whether the merged content differs from the input.
func (r *Result) DocumentChanged() bool {
	return len(r.Added) > 0
}

// Apply resolves tags against store and merges the canonical tags into doc.
// The store is mutated in memory only and nothing is written. The header is
// checked before any tag is resolved so a broken document never prompts.
func Apply(ctx context.Context, store *tagstore.Store, chooser resolver.Chooser, doc []byte, tags []string, opts ...resolver.Option) (*Result, error) {
	if _, err := frontmatter.Parse(doc); err != nil {
		return nil, err
	}

	batch, err := resolver.New(store, chooser, opts...).ResolveAll(ctx, tags)
	if err != nil {
		return nil, err
	}
	merged, err := frontmatter.Merge(doc, batch.Tags)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Outcomes:     batch.Outcomes,
		Tags:         nonNil(batch.Tags),
		Added:        nonNil(merged.Added),
		StoreChanged: batch.Changed(),
		Content:      merged.Content,
	}
	for _, w := range batch.Warnings {
		res.Warnings = append(res.Warnings, w.Error())
	}
	return res, nil
}

// TagDocument resolves tags and merges them into the vault document at path.
// The document write and the store save are independent; when both fail
// both errors are returned. With dryRun nothing is persisted.
func (s *Service) TagDocument(ctx context.Context, path string, tags []string, chooser resolver.Chooser, dryRun bool) (*Result, error) {
	if err := s.requireDocuments(); err != nil {
		return nil, err
	}

	// Read under the lock so concurrent calls on one path see each other's writes.
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.docs.Read(path)
	if err != nil {
		return nil, err
	}

	work := s.store.Clone()
	res, err := Apply(ctx, work, chooser, data, tags,
		resolver.WithMatcher(s.matcher),
		resolver.WithLogger(s.logger),
	)
	if err != nil {
		return nil, err
	}
	res.Path = path
	if dryRun {
		return res, nil
	}

	var writeErr, saveErr error
	if res.DocumentChanged() {
		writeErr = s.docs.Write(path, res.Content)
	}
	if res.StoreChanged {
		saveErr = s.commit(work)
	}
	if err := errors.Join(writeErr, saveErr); err != nil {
		return res, err
	}

	if res.DocumentChanged() {
		if s.db != nil {
			if err := index.IndexDocument(s.db, path, res.Content); err != nil {
				s.logger.Warn("index update failed", slog.String("path", path), slog.String("error", err.Error()))
			}
		}
		s.logger.Info("document tagged", slog.String("path", path), slog.Any("added", res.Added))
		s.emit(Event{Kind: EventDocumentTagged, Path: path, Tags: res.Added})
	}
	for _, o := range res.Outcomes {
		switch o.Kind {
		case resolver.NewTagCreated:
			s.emit(Event{Kind: EventTagCreated, Tag: o.Tag})
		case resolver.AliasRegistered:
			s.emit(Event{Kind: EventAliasRegistered, Alias: tagname.Normalize(o.Input), Tag: o.Tag})
		}
	}
	return res, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
