package accessrequests

import (
	"context"

	"github.com/akarpovs/cryptodrive/internal/server/models"
)

// PendingRequest is a pending access request joined with its requester and
// target, for owner-facing listings.
type PendingRequest struct {
	Request           models.AccessRequest
	RequesterUsername string
	TargetKind        models.TargetKind
	TargetName        string
}

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.AccessRequest, error)
	GetForTarget(ctx context.Context, userID string, target models.Target) (*models.AccessRequest, error)

	// CreatePending inserts a pending request unless one already exists
	// for (user, target). The insert is conditional on the unique
	// constraint, so concurrent double-submission cannot duplicate rows.
	// Reports whether a new row was created.
	CreatePending(ctx context.Context, userID string, target models.Target) (bool, error)

	// SetStatus moves a pending request to a terminal status. A request
	// that is no longer pending yields common.ErrRequestClosed.
	SetStatus(ctx context.Context, id string, status models.RequestStatus) error

	// Reopen resets a decided request back to pending.
	Reopen(ctx context.Context, id string) error

	// ListPendingForOwner returns every pending request whose target is
	// owned by ownerID.
	ListPendingForOwner(ctx context.Context, ownerID string) ([]*PendingRequest, error)
}
