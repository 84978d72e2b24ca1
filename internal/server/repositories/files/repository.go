package files

import (
	"context"

	"github.com/akarpovs/cryptodrive/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, file *models.File) (*models.File, error)
	GetByID(ctx context.Context, id string) (*models.File, error)
	GetByShareToken(ctx context.Context, token string) (*models.File, error)

	ListByFolder(ctx context.Context, folderID string) ([]*models.File, error)
	// ListRoot returns the owner's files outside any folder.
	ListRoot(ctx context.Context, ownerID string) ([]*models.File, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)

	Rename(ctx context.Context, id, name string) error
	SetFolder(ctx context.Context, id string, folderID *string) error
	// UpdateContent records a new ciphertext size after an in-place edit.
	UpdateContent(ctx context.Context, id string, size int64) error
	Delete(ctx context.Context, id string) error

	// SumSizeByOwner is the user's storage usage: the sum of ciphertext
	// sizes over every file row they own.
	SumSizeByOwner(ctx context.Context, ownerID string) (int64, error)
}
