package models

import "time"

// File is the metadata record for one encrypted payload. The ciphertext
// itself lives in the blob store under StorageKey.
type File struct {
	ID      string
	Name    string
	OwnerID string
	// FolderID is nil for root-level files.
	FolderID   *string
	StorageKey string
	// Size is the ciphertext length in bytes; quota accounting sums it.
	Size       int64
	Visibility Visibility
	ShareToken string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
