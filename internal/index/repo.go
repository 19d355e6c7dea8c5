package index

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/starford/smarttags/internal/models"
	"github.com/starford/smarttags/internal/tagname"
)

// DocumentRow represents a row in the documents table.
type DocumentRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	UpdatedAt time.Time
}

// UpsertDocument inserts or replaces a document and its tag rows within a
// transaction. Tags are stored normalized.
func (db *DB) UpsertDocument(d DocumentRow) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := normalizeTags(d.Tags)
	tagsJSON, _ := json.Marshal(tags)
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = time.Now().UTC()
	}

	_, err = tx.Exec(`
		INSERT INTO documents (path, title, checksum, tags, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title      = excluded.title,
			checksum   = excluded.checksum,
			tags       = excluded.tags,
			updated_at = excluded.updated_at
	`, d.Path, d.Title, d.Checksum, string(tagsJSON), d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert document: %w", err)
	}

	// Replace tag rows: delete old then bulk insert.
	if _, err := tx.Exec(`DELETE FROM document_tags WHERE path = ?`, d.Path); err != nil {
		return fmt.Errorf("index: clear tags: %w", err)
	}
	if len(tags) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO document_tags (path, tag) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare tag insert: %w", err)
		}
		defer stmt.Close()
		for _, tag := range tags {
			if _, err := stmt.Exec(d.Path, tag); err != nil {
				return fmt.Errorf("index: insert tag: %w", err)
			}
		}
	}

	return tx.Commit()
}

func normalizeTags(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		tag := tagname.Normalize(raw)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// DeleteDocument removes a document and its tag rows.
func (db *DB) DeleteDocument(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, _ = tx.Exec(`DELETE FROM document_tags WHERE path = ?`, path)
	_, _ = tx.Exec(`DELETE FROM documents WHERE path = ?`, path)

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a document, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM documents WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

// AllChecksums returns path -> checksum for every indexed document.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// TagCounts returns every indexed tag with the number of documents that
// carry it, most used first.
func (db *DB) TagCounts() ([]models.TagUsage, error) {
	rows, err := db.conn.Query(`
		SELECT tag, COUNT(*) AS n
		FROM document_tags
		GROUP BY tag
		ORDER BY n DESC, tag ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("index: tag counts: %w", err)
	}
	defer rows.Close()

	var out []models.TagUsage
	for rows.Next() {
		var u models.TagUsage
		if err := rows.Scan(&u.Tag, &u.Documents); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DocumentsWithTag returns the paths of all documents carrying tag.
func (db *DB) DocumentsWithTag(tag string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM document_tags WHERE tag = ? ORDER BY path`, tagname.Normalize(tag))
	if err != nil {
		return nil, fmt.Errorf("index: documents with tag: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
