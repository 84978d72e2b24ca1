// Package models defines the server-side records persisted in the database.
package models

import "time"

// User is the acting identity. Authentication lives outside this service;
// the user row only carries what access resolution needs.
type User struct {
	ID          string
	Username    string
	IsSuperuser bool
	CreatedAt   time.Time
}
