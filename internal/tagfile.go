package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/smarttags/internal/apperr"
	"github.com/starford/smarttags/internal/index"
	"github.com/starford/smarttags/internal/resolver"
	"github.com/starford/smarttags/internal/storage"
	"github.com/starford/smarttags/internal/tagservice"
	"github.com/starford/smarttags/internal/tagstore"
)

// TagFile resolves tags against the configured store and merges them into
// the document at path. The document and the store are written
// independently; when both fail the errors are joined. With dryRun the
// merged document is printed and nothing is persisted.
func TagFile(ctx context.Context, path string, tags []string, dryRun bool, opts ...Option) (*tagservice.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	cfg, logger := app.config, app.log()

	if len(tags) == 0 {
		return nil, fmt.Errorf("at least one tag is required: %w", apperr.ErrInvalidInput)
	}

	store, err := tagstore.Load(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", path, apperr.ErrIO, err)
	}

	res, err := tagservice.Apply(ctx, store, app.chooser, data, tags,
		resolver.WithMatcher(cfg.Matcher.Matcher()),
		resolver.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	res.Path = path
	for _, w := range res.Warnings {
		logger.Warn("tag skipped", slog.String("detail", w))
	}

	if dryRun {
		_, err := app.out.Write(res.Content)
		return res, err
	}

	var writeErr, saveErr error
	if res.DocumentChanged() {
		writeErr = storage.WriteFileAtomic(path, res.Content)
	}
	if res.StoreChanged {
		saveErr = store.Save(cfg.Store.Path)
	}
	if err := errors.Join(writeErr, saveErr); err != nil {
		return res, err
	}

	if res.DocumentChanged() && cfg.Index.Enabled() {
		if err := recordUsage(cfg, path, res.Content); err != nil {
			logger.Warn("index update failed", slog.String("path", path), slog.String("error", err.Error()))
		}
	}
	logger.Debug("document tagged", slog.String("path", path), slog.Any("added", res.Added))
	printResult(app.out, res)
	return res, nil
}

// recordUsage indexes a document that lives inside the configured vault.
// Documents outside the vault are skipped.
func recordUsage(cfg *Config, path string, content []byte) error {
	vault, err := filepath.Abs(cfg.Vault.Path)
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(vault, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil
	}

	db, err := index.Open(cfg.Index.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	return index.IndexDocument(db, filepath.ToSlash(rel), content)
}

func printResult(w io.Writer, res *tagservice.Result) {
	for _, o := range res.Outcomes {
		fmt.Fprintf(w, "%s -> %s (%s)\n", o.Input, o.Tag, describe(o.Kind))
	}
	for _, warning := range res.Warnings {
		fmt.Fprintf(w, "skipped: %s\n", warning)
	}
	switch {
	case res.DocumentChanged():
		fmt.Fprintf(w, "added to %s: %s\n", res.Path, strings.Join(res.Added, ", "))
	default:
		fmt.Fprintf(w, "%s already carries every tag\n", res.Path)
	}
}

func describe(k resolver.Kind) string {
	switch k {
	case resolver.AlreadyCanonical:
		return "canonical"
	case resolver.ResolvedViaAlias:
		return "alias"
	case resolver.TypoCorrectedOnce:
		return "corrected"
	case resolver.AliasRegistered:
		return "alias registered"
	case resolver.NewTagCreated:
		return "new tag"
	default:
		return k.String()
	}
}
