// Package storage provides atomic file writes and the vault file-system
// abstraction used to read and rewrite tagged documents.
package storage

import "github.com/starford/smarttags/internal/models"

// Provider is the interface for vault file operations.
type Provider interface {
	// List returns metadata for every document under dir (relative to vault root).
	List(dir string) ([]models.DocumentMetadata, error)
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to vault root).
	Write(path string, content []byte) error
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
