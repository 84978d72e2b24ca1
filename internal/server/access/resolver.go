// Package access implements effective-permission resolution: the rules that
// decide, for any (actor, target) pair, what the actor may do.
package access

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// Level is the resolved effective access of an actor on a target.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
	LevelOwner
)

func (l Level) String() string {
	switch l {
	case LevelRead:
		return "read"
	case LevelWrite:
		return "write"
	case LevelOwner:
		return "owner"
	default:
		return "none"
	}
}

// AtLeast reports whether l grants everything min does.
func (l Level) AtLeast(min Level) bool { return l >= min }

// Resolver computes effective access levels. Resolution is a pure function
// of the actor's identity, ownership, explicit grants, visibility, and
// approved access requests; there is no hidden state.
type Resolver struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

func NewResolver(db *sql.DB, rm repomanager.RepositoryManager) *Resolver {
	return &Resolver{db: db, rm: rm}
}

// Resolve evaluates, in precedence order: superuser, ownership, explicit
// grant, public visibility, ask visibility with an approved request. The
// first match wins; anything else is LevelNone. A nil actor is anonymous.
func (r *Resolver) Resolve(ctx context.Context, actor *models.User, target models.Target) (Level, error) {
	if actor != nil {
		if actor.IsSuperuser {
			return LevelOwner, nil
		}
		if target.OwnerID() == actor.ID {
			return LevelOwner, nil
		}

		perm, err := r.rm.Permissions(r.db).Get(ctx, actor.ID, target)
		switch {
		case err == nil:
			if perm.AccessLevel == models.AccessWrite {
				return LevelWrite, nil
			}
			return LevelRead, nil
		case !errors.Is(err, common.ErrorNotFound):
			return LevelNone, fmt.Errorf("looking up grant: %w", err)
		}
	}

	switch target.Visibility() {
	case models.VisibilityPublic:
		return LevelRead, nil
	case models.VisibilityAsk:
		if actor == nil {
			return LevelNone, nil
		}
		req, err := r.rm.AccessRequests(r.db).GetForTarget(ctx, actor.ID, target)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return LevelNone, nil
			}
			return LevelNone, fmt.Errorf("looking up access request: %w", err)
		}
		if req.Status == models.RequestApproved {
			return LevelRead, nil
		}
	}

	return LevelNone, nil
}

// CanTraverse reports whether actor can reach folder through its ancestor
// chain. Each ancestor is resolved independently and traversal
// short-circuits at the first LevelNone: a private ancestor blocks every
// descendant regardless of the descendant's own visibility.
func (r *Resolver) CanTraverse(ctx context.Context, actor *models.User, folder *models.Folder) (bool, error) {
	seen := make(map[string]bool)
	for f := folder; ; {
		if seen[f.ID] {
			return false, fmt.Errorf("folder %s: ancestor cycle", f.ID)
		}
		seen[f.ID] = true

		lvl, err := r.Resolve(ctx, actor, models.FolderTarget(f))
		if err != nil {
			return false, err
		}
		if lvl == LevelNone {
			return false, nil
		}

		if f.ParentID == nil {
			return true, nil
		}
		parent, err := r.rm.Folders(r.db).GetByID(ctx, *f.ParentID)
		if err != nil {
			return false, fmt.Errorf("loading parent folder: %w", err)
		}
		f = parent
	}
}
