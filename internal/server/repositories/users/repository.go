package users

import (
	"context"

	"github.com/akarpovs/cryptodrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)

	// Lock takes a row lock on the user until the enclosing transaction
	// ends, serializing quota-checked writes per owner.
	Lock(ctx context.Context, id string) error
}
