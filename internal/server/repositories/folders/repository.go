package folders

import (
	"context"

	"github.com/akarpovs/cryptodrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, folder *models.Folder) (*models.Folder, error)
	GetByID(ctx context.Context, id string) (*models.Folder, error)
	GetByShareToken(ctx context.Context, token string) (*models.Folder, error)

	// ListChildren returns the direct subfolders of parentID.
	ListChildren(ctx context.Context, parentID string) ([]*models.Folder, error)
	// ListRoot returns the owner's folders with no parent.
	ListRoot(ctx context.Context, ownerID string) ([]*models.Folder, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.Folder, error)

	Rename(ctx context.Context, id, name string) error
	SetParent(ctx context.Context, id string, parentID *string) error
	Delete(ctx context.Context, id string) error
}
