// Package models defines the domain types shared by storage and the index.
package models

import "time"

// DocumentMetadata is a lightweight representation returned by list operations.
type DocumentMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TagUsage counts how many indexed documents carry a tag.
type TagUsage struct {
	Tag       string `json:"tag"`
	Documents int    `json:"documents"`
}
