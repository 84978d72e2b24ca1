package models

import "time"

// Folder is a node in a user's folder forest. ParentID is nil for root-level
// folders; a folder may never be its own ancestor.
type Folder struct {
	ID         string
	Name       string
	OwnerID    string
	ParentID   *string
	Visibility Visibility
	// ShareToken is assigned once at creation and never regenerated.
	ShareToken string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
