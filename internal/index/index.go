package index

import "github.com/starford/smarttags/internal/models"

// TagIndex defines the interface for tag usage indexing.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type TagIndex interface {
	UpsertDocument(d DocumentRow) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	AllChecksums() (map[string]string, error)
	TagCounts() ([]models.TagUsage, error)
	DocumentsWithTag(tag string) ([]string, error)
	Close() error
}

// Verify *DB satisfies TagIndex at compile time.
var _ TagIndex = (*DB)(nil)
