// Package accessrequests persists the request→approve/reject workflow rows.
package accessrequests

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/server/models"
)

const requestColumns = `id, user_id, file_id, folder_id, status, created_at, updated_at`

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or
// *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanRequest(row interface{ Scan(...any) error }) (*models.AccessRequest, error) {
	var a models.AccessRequest
	err := row.Scan(&a.ID, &a.UserID, &a.FileID, &a.FolderID, &a.Status,
		&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM access_requests WHERE id = $1`
	a, err := scanRequest(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetForTarget(ctx context.Context, userID string, target models.Target) (*models.AccessRequest, error) {
	var query string
	if target.Kind() == models.KindFile {
		query = `SELECT ` + requestColumns + ` FROM access_requests WHERE user_id = $1 AND file_id = $2`
	} else {
		query = `SELECT ` + requestColumns + ` FROM access_requests WHERE user_id = $1 AND folder_id = $2`
	}
	a, err := scanRequest(r.db.QueryRowContext(ctx, query, userID, target.ID()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) CreatePending(ctx context.Context, userID string, target models.Target) (bool, error) {
	var query string
	if target.Kind() == models.KindFile {
		query = `
			INSERT INTO access_requests (user_id, file_id, status)
			VALUES ($1, $2, 'pending')
			ON CONFLICT (user_id, file_id) WHERE file_id IS NOT NULL DO NOTHING
		`
	} else {
		query = `
			INSERT INTO access_requests (user_id, folder_id, status)
			VALUES ($1, $2, 'pending')
			ON CONFLICT (user_id, folder_id) WHERE folder_id IS NOT NULL DO NOTHING
		`
	}
	res, err := r.db.ExecContext(ctx, query, userID, target.ID())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) SetStatus(ctx context.Context, id string, status models.RequestStatus) error {
	query := `
		UPDATE access_requests SET status = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrRequestClosed
	}
	return nil
}

func (r *PostgresRepository) Reopen(ctx context.Context, id string) error {
	query := `
		UPDATE access_requests SET status = 'pending', updated_at = now()
		WHERE id = $1 AND status <> 'pending'
	`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListPendingForOwner(ctx context.Context, ownerID string) ([]*PendingRequest, error) {
	query := `
		SELECT r.id, r.user_id, r.file_id, r.folder_id, r.status, r.created_at, r.updated_at,
		       u.username,
		       CASE WHEN r.file_id IS NOT NULL THEN 'file' ELSE 'folder' END,
		       COALESCE(f.name, d.name)
		FROM access_requests r
		JOIN users u ON u.id = r.user_id
		LEFT JOIN files f ON f.id = r.file_id
		LEFT JOIN folders d ON d.id = r.folder_id
		WHERE r.status = 'pending' AND COALESCE(f.owner_id, d.owner_id) = $1
		ORDER BY r.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*PendingRequest
	for rows.Next() {
		var p PendingRequest
		err := rows.Scan(&p.Request.ID, &p.Request.UserID, &p.Request.FileID,
			&p.Request.FolderID, &p.Request.Status, &p.Request.CreatedAt,
			&p.Request.UpdatedAt, &p.RequesterUsername, &p.TargetKind, &p.TargetName)
		if err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
