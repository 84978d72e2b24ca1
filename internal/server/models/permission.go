package models

import "time"

// Permission is an explicit grant of read or write on exactly one of a file
// or a folder, independent of ownership and visibility. Unique per
// (user, target).
type Permission struct {
	ID          string
	UserID      string
	FileID      *string
	FolderID    *string
	AccessLevel AccessLevel
}

// RequestStatus is the access-request lifecycle state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// AccessRequest tracks a user asking for read access to one file or folder.
// Unique per (user, target); a rejected request is reopened in place rather
// than duplicated.
type AccessRequest struct {
	ID        string
	UserID    string
	FileID    *string
	FolderID  *string
	Status    RequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}
