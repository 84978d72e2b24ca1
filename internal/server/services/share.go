package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/access"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// Share-link banners shown when the link resolves but the viewer cannot
// read the target.
const (
	BannerPrivateBlocked  = "private_blocked"
	BannerAskPromptLogin  = "ask_prompt_login"
	BannerAskPromptAccess = "ask_prompt_request"
)

// ShareView is what a share link resolves to. Banner is empty when the
// viewer can read the target; otherwise it names the reason content is
// withheld and only the target's name and kind are exposed.
type ShareView struct {
	Banner string
	Kind   models.TargetKind
	Name   string

	// File payload, set for readable file links.
	File    *models.File
	Content []byte
	IsText  bool

	// Folder payload, set for readable folder links.
	Folder     *models.Folder
	Subfolders []*models.Folder
	Files      []*models.File
}

// ShareService covers direct grants to named users and the public
// share-link surface.
type ShareService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	drive       *DriveService
	logger      logging.Logger
}

func NewShareService(db *sql.DB, rm repomanager.RepositoryManager, drive *DriveService, logger logging.Logger) *ShareService {
	return &ShareService{
		db:          db,
		repomanager: rm,
		drive:       drive,
		logger:      logger.With("module", "share"),
	}
}

// Share grants username read or write on the target. Owner-only: grants
// delegate the owner's authority and cannot be forwarded by grantees.
// Re-sharing replaces an earlier level in either direction, so an owner can
// downgrade a write grant back to read.
func (s *ShareService) Share(ctx context.Context, actor *models.User, kind models.TargetKind, targetID, username string, level models.AccessLevel) error {
	if !level.Valid() {
		return common.ErrInvalidName
	}
	target, err := s.drive.requireOwner(ctx, actor, kind, targetID)
	if err != nil {
		return err
	}

	grantee, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrUserNotFound
		}
		return fmt.Errorf("looking up grantee: %w", err)
	}
	if grantee.ID == target.OwnerID() {
		// Owners already hold everything a grant could give.
		return nil
	}

	perm := &models.Permission{UserID: grantee.ID, AccessLevel: level}
	id := target.ID()
	if target.Kind() == models.KindFile {
		perm.FileID = &id
	} else {
		perm.FolderID = &id
	}
	if err := s.repomanager.Permissions(s.db).Set(ctx, perm); err != nil {
		return err
	}

	s.logger.Info(ctx, "grant shared",
		"target_kind", target.Kind(),
		"target_id", target.ID(),
		"grantee_id", grantee.ID,
		"level", level,
	)
	return nil
}

// ResolveShareLink resolves a share token for actor (nil for anonymous).
// Unknown tokens are ErrorNotFound. A token for an unreadable target still
// resolves, but carries only the name and a banner telling the viewer what
// to do next.
func (s *ShareService) ResolveShareLink(ctx context.Context, actor *models.User, token string) (*ShareView, error) {
	target, err := s.lookupToken(ctx, token)
	if err != nil {
		return nil, err
	}

	lvl, err := s.drive.Resolver().Resolve(ctx, actor, target)
	if err != nil {
		return nil, err
	}
	if !lvl.AtLeast(access.LevelRead) {
		return s.blockedView(target, actor), nil
	}

	view := &ShareView{Kind: target.Kind(), Name: target.Name()}
	if target.Kind() == models.KindFile {
		file, content, err := s.drive.openFile(ctx, actor, target.ID())
		if err != nil {
			return nil, err
		}
		view.File = file
		view.Content = content
		view.IsText = IsTextName(file.Name)
		return view, nil
	}

	subfolders, files, err := s.drive.visibleChildren(ctx, actor, target.ID())
	if err != nil {
		return nil, err
	}
	view.Folder = target.Folder()
	view.Subfolders = subfolders
	view.Files = files
	return view, nil
}

// lookupToken probes folders first, then files. Tokens are minted from the
// same generator, so a token identifies at most one record of each kind.
func (s *ShareService) lookupToken(ctx context.Context, token string) (models.Target, error) {
	if token == "" {
		return models.Target{}, common.ErrorNotFound
	}
	folder, err := s.repomanager.Folders(s.db).GetByShareToken(ctx, token)
	switch {
	case err == nil:
		return models.FolderTarget(folder), nil
	case !errors.Is(err, common.ErrorNotFound):
		return models.Target{}, err
	}
	file, err := s.repomanager.Files(s.db).GetByShareToken(ctx, token)
	if err != nil {
		return models.Target{}, err
	}
	return models.FileTarget(file), nil
}

func (s *ShareService) blockedView(target models.Target, actor *models.User) *ShareView {
	view := &ShareView{Kind: target.Kind(), Name: target.Name()}
	switch {
	case target.Visibility() == models.VisibilityAsk && actor == nil:
		view.Banner = BannerAskPromptLogin
	case target.Visibility() == models.VisibilityAsk:
		view.Banner = BannerAskPromptAccess
	default:
		view.Banner = BannerPrivateBlocked
	}
	return view
}
