package permissions

import (
	"context"

	"github.com/akarpovs/cryptodrive/internal/server/models"
)

type Repository interface {
	// Get returns the grant for (userID, target) or common.ErrorNotFound.
	Get(ctx context.Context, userID string, target models.Target) (*models.Permission, error)

	// Set creates the grant or overwrites an existing one with the given
	// level, in both directions. The owner's latest share decision wins.
	Set(ctx context.Context, perm *models.Permission) error

	// Upsert creates the grant or raises an existing read grant to the
	// given level. An existing write grant is never downgraded, which
	// makes re-approving an access request a safe no-op.
	Upsert(ctx context.Context, perm *models.Permission) error
}
