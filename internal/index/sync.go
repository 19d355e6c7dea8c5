package index

import (
	"log/slog"

	"github.com/starford/smarttags/internal/checksum"
	"github.com/starford/smarttags/internal/frontmatter"
	"github.com/starford/smarttags/internal/storage"
)

// Sync walks the vault and brings the index up to date:
//   - new/changed documents are parsed and their header tags upserted
//   - documents removed from disk are deleted from the index
func Sync(db TagIndex, store storage.Provider, logger *slog.Logger) error {
	metas, err := store.List("")
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		if checksums[m.Path] == m.Checksum {
			continue
		}

		data, err := store.Read(m.Path)
		if err != nil {
			logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := IndexDocument(db, m.Path, data); err != nil {
			logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
	}

	// Remove stale entries.
	for p := range checksums {
		if _, ok := disk[p]; !ok {
			if err := db.DeleteDocument(p); err != nil {
				logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("path", p))
			}
		}
	}

	return nil
}

// IndexDocument parses data and records its header tags under path. A
// document whose header cannot be parsed is not indexed.
func IndexDocument(db TagIndex, path string, data []byte) error {
	res, err := frontmatter.Parse(data)
	if err != nil {
		return err
	}
	return db.UpsertDocument(DocumentRow{
		Path:     path,
		Title:    res.Title,
		Checksum: checksum.Sum(data),
		Tags:     res.Tags,
	})
}
