// Package resolver decides which canonical tag a raw user-supplied tag
// resolves to: exact match, alias, suggested correction, new alias or a
// brand-new tag.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/similarity"
	"github.com/starford/smarttags/internal/tagname"
	"github.com/starford/smarttags/internal/tagstore"
)

// ErrAborted wraps chooser failures. It stops a whole batch, unlike the
// per-tag errors which are reported as warnings.
var ErrAborted = errors.New("resolver: choice aborted")

// Chooser is asked what to do with an unknown tag that has close matches.
// It blocks until an answer is available.
type Chooser interface {
	Choose(ctx context.Context, input string, suggestions []similarity.Suggestion) (Decision, error)
}

// ChooserFunc adapts a function to the Chooser interface.
type ChooserFunc func(ctx context.Context, input string, suggestions []similarity.Suggestion) (Decision, error)

// Choose calls f.
func (f ChooserFunc) Choose(ctx context.Context, input string, suggestions []similarity.Suggestion) (Decision, error) {
	return f(ctx, input, suggestions)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMatcher overrides the suggestion thresholds.
func WithMatcher(m similarity.Matcher) Option {
	return func(r *Resolver) {
		r.matcher = m
	}
}

// WithLogger sets the logger used for per-tag diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// Resolver runs the per-tag state machine against a store.
type Resolver struct {
	store   *tagstore.Store
	chooser Chooser
	matcher similarity.Matcher
	logger  *slog.Logger
}

// New creates a Resolver that reads and mutates store and consults chooser
// for unknown tags with close matches.
func New(store *tagstore.Store, chooser Chooser, opts ...Option) *Resolver {
	r := &Resolver{
		store:   store,
		chooser: chooser,
		matcher: similarity.DefaultMatcher(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves a single raw tag. Store mutations happen in memory only;
// persisting them is the caller's job.
func (r *Resolver) Resolve(ctx context.Context, raw string) (Outcome, error) {
	tag := tagname.Normalize(raw)
	if err := tagname.Validate(tag); err != nil {
		return Outcome{Input: raw}, err
	}

	if canonical, ok := r.store.ResolveExact(tag); ok {
		kind := AlreadyCanonical
		if canonical != tag {
			kind = ResolvedViaAlias
			r.logger.Debug("tag mapped via alias", slog.String("input", tag), slog.String("tag", canonical))
		}
		return Outcome{Input: raw, Kind: kind, Tag: canonical}, nil
	}

	suggestions := r.matcher.Suggest(tag, r.store.AllCanonical())
	if len(suggestions) == 0 {
		return r.createNew(raw, tag, nil)
	}

	if r.chooser == nil {
		return Outcome{Input: raw}, fmt.Errorf("%w: no chooser configured for %q", ErrAborted, tag)
	}
	decision, err := r.chooser.Choose(ctx, tag, suggestions)
	if err != nil {
		return Outcome{Input: raw}, fmt.Errorf("%w: %q: %w", ErrAborted, tag, err)
	}

	switch decision.Intent {
	case UseExisting:
		candidate, err := r.candidate(decision, suggestions)
		if err != nil {
			return Outcome{Input: raw, Suggestions: suggestions}, err
		}
		r.logger.Debug("tag corrected once", slog.String("input", tag), slog.String("tag", candidate))
		return Outcome{Input: raw, Kind: TypoCorrectedOnce, Tag: candidate, Suggestions: suggestions}, nil

	case RegisterAlias:
		candidate, err := r.candidate(decision, suggestions)
		if err != nil {
			return Outcome{Input: raw, Suggestions: suggestions}, err
		}
		if _, err := r.store.AddAlias(tag, candidate); err != nil {
			return Outcome{Input: raw, Suggestions: suggestions}, err
		}
		r.logger.Info("alias registered", slog.String("alias", tag), slog.String("tag", candidate))
		return Outcome{Input: raw, Kind: AliasRegistered, Tag: candidate, Suggestions: suggestions}, nil

	case CreateNew:
		return r.createNew(raw, tag, suggestions)

	default:
		return Outcome{Input: raw, Suggestions: suggestions}, fmt.Errorf("%w: unknown intent %d for %q", ErrAborted, decision.Intent, tag)
	}
}

func (r *Resolver) createNew(raw, tag string, suggestions []similarity.Suggestion) (Outcome, error) {
	if _, err := r.store.AddCanonical(tag); err != nil {
		return Outcome{Input: raw, Suggestions: suggestions}, err
	}
	r.logger.Info("tag created", slog.String("tag", tag))
	return Outcome{Input: raw, Kind: NewTagCreated, Tag: tag, Suggestions: suggestions}, nil
}

// candidate returns the tag a decision points at, defaulting to the closest
// suggestion. The target has to be canonical at the time of the call.
func (r *Resolver) candidate(d Decision, suggestions []similarity.Suggestion) (string, error) {
	c := tagname.Normalize(d.Candidate)
	if c == "" {
		c = suggestions[0].Tag
	}
	if !r.store.IsCanonical(c) {
		return "", fmt.Errorf("resolver: chosen tag %q is not canonical: %w", c, apperr.ErrNotFound)
	}
	return c, nil
}

// Warning is a per-tag failure that did not stop the batch.
type Warning struct {
	Input string `json:"input"`
	Err   error  `json:"-"`
}

func (w Warning) Error() string {
	return fmt.Sprintf("tag %q: %v", w.Input, w.Err)
}

// Batch is the result of resolving a list of input tags.
type Batch struct {
	// Tags holds the canonical tags to merge, de-duplicated, in resolution order.
	Tags     []string
	Outcomes []Outcome
	Warnings []Warning
}

// Changed reports whether any outcome mutated the store.
func (b Batch) Changed() bool {
	for _, o := range b.Outcomes {
		if o.Kind.Mutates() {
			return true
		}
	}
	return false
}

// ResolveAll resolves raws in order. Each tag sees the store mutations made
// by the tags before it. Per-tag errors become warnings; a chooser failure
// or context cancellation aborts the batch.
func (r *Resolver) ResolveAll(ctx context.Context, raws []string) (Batch, error) {
	var b Batch
	seen := make(map[string]struct{}, len(raws))

	for _, raw := range raws {
		if err := ctx.Err(); err != nil {
			return b, err
		}

		out, err := r.Resolve(ctx, raw)
		if err != nil {
			if errors.Is(err, ErrAborted) {
				return b, err
			}
			r.logger.Warn("tag skipped", slog.String("input", raw), slog.String("error", err.Error()))
			b.Warnings = append(b.Warnings, Warning{Input: raw, Err: err})
			continue
		}

		b.Outcomes = append(b.Outcomes, out)
		if _, dup := seen[out.Tag]; dup {
			continue
		}
		seen[out.Tag] = struct{}{}
		b.Tags = append(b.Tags, out.Tag)
	}
	return b, nil
}
