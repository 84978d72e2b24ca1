// Package common defines shared sentinel errors used across the drive core.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal       = errors.New("internal error")
	ErrPermissionDenied = errors.New("permission denied")

	// Ingestion errors. Both are user-correctable and carry their limits
	// at the surface layer.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
	ErrTooLarge      = errors.New("file too large")

	// Content errors. Decryption failure is recoverable: callers treat it
	// as content unavailable, never as a crash.
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrNotTextFile      = errors.New("not an editable text file")

	// Tree errors.
	ErrCycleDetected  = errors.New("folder cannot become its own descendant")
	ErrPartialFailure = errors.New("partially failed")

	// Validation errors.
	ErrInvalidName  = errors.New("invalid name")
	ErrUserNotFound = errors.New("user not found")

	// Workflow errors.
	ErrRequestClosed = errors.New("access request already decided")

	// Blob store errors.
	ErrKeyExists = errors.New("storage key already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
