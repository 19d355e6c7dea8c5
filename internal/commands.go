package internal

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/index"
	"github.com/starford/smarttags/internal/storage"
	"github.com/starford/smarttags/internal/tagservice"
)

// openService loads the store for a one-shot command. The vault is attached
// when vaultDir is set and the index when one is configured. The returned
// func releases the index.
func openService(app *application, vaultDir string) (*tagservice.Service, func(), error) {
	cfg := app.config
	opts := []tagservice.Option{
		tagservice.WithMatcher(cfg.Matcher.Matcher()),
		tagservice.WithLogger(app.log()),
	}
	if vaultDir != "" {
		vault, err := storage.NewFS(vaultDir)
		if err != nil {
			return nil, nil, fmt.Errorf("init storage: %w", err)
		}
		opts = append(opts, tagservice.WithDocuments(vault))
	}

	release := func() {}
	if cfg.Index.Enabled() {
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init index: %w", err)
		}
		opts = append(opts, tagservice.WithIndex(db))
		release = func() { _ = db.Close() }
	}

	svc, err := tagservice.New(cfg.Store.Path, opts...)
	if err != nil {
		release()
		return nil, nil, err
	}
	return svc, release, nil
}

// ListTags prints every canonical tag with its aliases and usage count.
func ListTags(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, release, err := openService(app, "")
	if err != nil {
		return err
	}
	defer release()

	tags, err := svc.ListTags(ctx)
	if err != nil {
		return err
	}
	if len(tags) == 0 {
		fmt.Fprintln(app.out, "no tags yet")
		return nil
	}

	tw := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tALIASES\tDOCUMENTS")
	for _, t := range tags {
		aliases := strings.Join(t.Aliases, ", ")
		if aliases == "" {
			aliases = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\n", t.Name, aliases, t.Documents)
	}
	return tw.Flush()
}

// Suggest prints how raw would resolve without changing the store.
func Suggest(ctx context.Context, raw string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, release, err := openService(app, "")
	if err != nil {
		return err
	}
	defer release()

	in, err := svc.Inspect(ctx, raw)
	if err != nil {
		return err
	}
	switch in.Status {
	case tagservice.StatusCanonical:
		fmt.Fprintf(app.out, "%s is a canonical tag\n", in.Tag)
	case tagservice.StatusAlias:
		fmt.Fprintf(app.out, "%s is an alias of %s\n", in.Normalized, in.Tag)
	default:
		if len(in.Suggestions) == 0 {
			fmt.Fprintf(app.out, "%s is unknown and has no close match\n", in.Normalized)
			return nil
		}
		fmt.Fprintf(app.out, "%s is unknown, closest tags:\n", in.Normalized)
		for _, s := range in.Suggestions {
			fmt.Fprintf(app.out, "  %s (distance %d)\n", s.Tag, s.Distance)
		}
	}
	return nil
}

// RegisterAlias maps alias to the canonical tag target and saves the store.
func RegisterAlias(ctx context.Context, alias, target string, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	svc, release, err := openService(app, "")
	if err != nil {
		return err
	}
	defer release()

	added, err := svc.RegisterAlias(ctx, alias, target)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(app.out, "%s already maps to %s\n", alias, target)
		return nil
	}
	fmt.Fprintf(app.out, "registered %s -> %s\n", alias, target)
	return nil
}

// Audit prints every non-canonical tag found in vaultDir. With check, any
// finding is reported as a conflict so scripts can fail on drift.
func Audit(ctx context.Context, vaultDir string, check bool, opts ...Option) (*tagservice.AuditReport, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	if vaultDir == "" {
		vaultDir = app.config.Vault.Path
	}
	svc, release, err := openService(app, vaultDir)
	if err != nil {
		return nil, err
	}
	defer release()

	report, err := svc.Audit(ctx)
	if err != nil {
		return nil, err
	}

	for _, f := range report.Findings {
		switch f.Status {
		case tagservice.StatusAlias:
			fmt.Fprintf(app.out, "%s: %s is an alias of %s\n", f.Path, f.Tag, f.Canonical)
		default:
			hint := "no close match"
			if len(f.Suggestions) > 0 {
				hint = "did you mean " + f.Suggestions[0].Tag + "?"
			}
			fmt.Fprintf(app.out, "%s: %s is unknown (%s)\n", f.Path, f.Tag, hint)
		}
	}
	for _, e := range report.Errors {
		fmt.Fprintf(app.out, "%s: %s\n", e.Path, e.Error)
	}
	fmt.Fprintf(app.out, "%d documents, %d tags, %d findings\n", report.Documents, report.Tags, len(report.Findings))

	if check && !report.Clean() {
		return report, fmt.Errorf("audit: %d findings, %d unreadable documents: %w", len(report.Findings), len(report.Errors), apperr.ErrConflict)
	}
	return report, nil
}
