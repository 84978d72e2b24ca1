package repomanager

import (
	"context"
	"database/sql"

	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/accessrequests"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/files"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/folders"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/permissions"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same
// repository code runs standalone or inside a transaction.
type RepositoryManager interface {
	Users(db dbx.DBTX) users.Repository
	Folders(db dbx.DBTX) folders.Repository
	Files(db dbx.DBTX) files.Repository
	Permissions(db dbx.DBTX) permissions.Repository
	AccessRequests(db dbx.DBTX) accessrequests.Repository

	// RunMigrations applies the embedded schema migrations.
	RunMigrations(ctx context.Context, db *sql.DB) error
}
