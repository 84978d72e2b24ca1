// Package permissions persists explicit access grants.
package permissions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string, target models.Target) (*models.Permission, error) {
	var query string
	if target.Kind() == models.KindFile {
		query = `
			SELECT id, user_id, file_id, folder_id, access_level FROM permissions
			WHERE user_id = $1 AND file_id = $2
		`
	} else {
		query = `
			SELECT id, user_id, file_id, folder_id, access_level FROM permissions
			WHERE user_id = $1 AND folder_id = $2
		`
	}

	var p models.Permission
	err := r.db.QueryRowContext(ctx, query, userID, target.ID()).
		Scan(&p.ID, &p.UserID, &p.FileID, &p.FolderID, &p.AccessLevel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &p, nil
}

func (r *PostgresRepository) Set(ctx context.Context, perm *models.Permission) error {
	var query string
	var targetID any
	switch {
	case perm.FileID != nil:
		targetID = *perm.FileID
		query = `
			INSERT INTO permissions (user_id, file_id, access_level)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, file_id) WHERE file_id IS NOT NULL
			DO UPDATE SET access_level = EXCLUDED.access_level
		`
	case perm.FolderID != nil:
		targetID = *perm.FolderID
		query = `
			INSERT INTO permissions (user_id, folder_id, access_level)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, folder_id) WHERE folder_id IS NOT NULL
			DO UPDATE SET access_level = EXCLUDED.access_level
		`
	default:
		return fmt.Errorf("permission has no target")
	}

	if _, err := r.db.ExecContext(ctx, query, perm.UserID, targetID, perm.AccessLevel); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, perm *models.Permission) error {
	var query string
	var targetID any
	switch {
	case perm.FileID != nil:
		targetID = *perm.FileID
		query = `
			INSERT INTO permissions (user_id, file_id, access_level)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, file_id) WHERE file_id IS NOT NULL
			DO UPDATE SET access_level = CASE
				WHEN permissions.access_level = 'write' THEN permissions.access_level
				ELSE EXCLUDED.access_level
			END
		`
	case perm.FolderID != nil:
		targetID = *perm.FolderID
		query = `
			INSERT INTO permissions (user_id, folder_id, access_level)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, folder_id) WHERE folder_id IS NOT NULL
			DO UPDATE SET access_level = CASE
				WHEN permissions.access_level = 'write' THEN permissions.access_level
				ELSE EXCLUDED.access_level
			END
		`
	default:
		return fmt.Errorf("permission has no target")
	}

	if _, err := r.db.ExecContext(ctx, query, perm.UserID, targetID, perm.AccessLevel); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
