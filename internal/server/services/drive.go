package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/cryptox"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/access"
	"github.com/akarpovs/cryptodrive/internal/server/blob"
	sc "github.com/akarpovs/cryptodrive/internal/server/config"
	"github.com/akarpovs/cryptodrive/internal/server/hierarchy"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/paths"
	"github.com/akarpovs/cryptodrive/internal/server/quota"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// textExtensions are the file types that can be viewed and edited as text.
var textExtensions = map[string]bool{
	".txt":  true,
	".csv":  true,
	".md":   true,
	".py":   true,
	".json": true,
	".log":  true,
}

// IsTextName reports whether a file name carries an editable text extension.
func IsTextName(name string) bool {
	return textExtensions[strings.ToLower(path.Ext(name))]
}

// DriveService implements the core drive operations: listing, ingestion,
// organization, retrieval and in-place editing of encrypted content.
type DriveService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       blob.Store
	codec       *cryptox.Codec
	config      *sc.Config
	logger      logging.Logger

	resolver *access.Resolver
	quota    *quota.Tracker
	alloc    *paths.Allocator
	tree     *hierarchy.Tree
}

func NewDriveService(db *sql.DB, rm repomanager.RepositoryManager, store blob.Store, codec *cryptox.Codec, config *sc.Config, logger logging.Logger) *DriveService {
	return &DriveService{
		db:          db,
		repomanager: rm,
		store:       store,
		codec:       codec,
		config:      config,
		logger:      logger.With("module", "drive"),
		resolver:    access.NewResolver(db, rm),
		quota:       quota.NewTracker(rm, config.TotalServerStorage, config.UserQuotaFraction),
		alloc:       paths.NewAllocator(store),
		tree:        hierarchy.NewTree(rm, store, logger),
	}
}

// Resolver exposes the access resolver so sibling services share one set of
// visibility rules.
func (s *DriveService) Resolver() *access.Resolver { return s.resolver }

// Quota exposes the quota tracker for usage reporting.
func (s *DriveService) Quota() *quota.Tracker { return s.quota }

// Listing is the content of one folder (or the actor's root) as the actor
// is allowed to see it.
type Listing struct {
	// Folder is nil for a root listing.
	Folder      *models.Folder
	Breadcrumbs []*models.Folder
	Subfolders  []*models.Folder
	Files       []*models.File
}

// FileView is decrypted content plus the text/binary classification the
// in-browser viewer needs.
type FileView struct {
	File    *models.File
	Content []byte
	IsText  bool
}

// gate converts a resolved level that fails min into the error surfaced to
// the actor. An actor with no access at all gets ErrorNotFound, so probing
// cannot distinguish "absent" from "hidden".
func gate(lvl access.Level, min access.Level) error {
	if lvl.AtLeast(min) {
		return nil
	}
	if lvl == access.LevelNone {
		return common.ErrorNotFound
	}
	return common.ErrPermissionDenied
}

func validName(name string) bool {
	return strings.TrimSpace(name) != ""
}

// ListContents returns the actor's root when folderID is nil, otherwise the
// given folder. Folder access requires a traversable ancestor chain;
// children the actor cannot read are silently omitted.
func (s *DriveService) ListContents(ctx context.Context, actor *models.User, folderID *string) (*Listing, error) {
	if folderID == nil {
		subfolders, err := s.repomanager.Folders(s.db).ListRoot(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("listing root folders: %w", err)
		}
		files, err := s.repomanager.Files(s.db).ListRoot(ctx, actor.ID)
		if err != nil {
			return nil, fmt.Errorf("listing root files: %w", err)
		}
		return &Listing{Subfolders: subfolders, Files: files}, nil
	}

	folder, err := s.repomanager.Folders(s.db).GetByID(ctx, *folderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.resolver.CanTraverse(ctx, actor, folder)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, common.ErrorNotFound
	}

	crumbs, err := s.tree.Breadcrumbs(ctx, s.db, folder)
	if err != nil {
		return nil, err
	}

	subfolders, files, err := s.visibleChildren(ctx, actor, folder.ID)
	if err != nil {
		return nil, err
	}

	return &Listing{Folder: folder, Breadcrumbs: crumbs, Subfolders: subfolders, Files: files}, nil
}

// visibleChildren lists the direct children of folderID, keeping only the
// ones the actor can read on their own merits.
func (s *DriveService) visibleChildren(ctx context.Context, actor *models.User, folderID string) ([]*models.Folder, []*models.File, error) {
	children, err := s.repomanager.Folders(s.db).ListChildren(ctx, folderID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing subfolders: %w", err)
	}
	subfolders := make([]*models.Folder, 0, len(children))
	for _, c := range children {
		lvl, err := s.resolver.Resolve(ctx, actor, models.FolderTarget(c))
		if err != nil {
			return nil, nil, err
		}
		if lvl.AtLeast(access.LevelRead) {
			subfolders = append(subfolders, c)
		}
	}

	all, err := s.repomanager.Files(s.db).ListByFolder(ctx, folderID)
	if err != nil {
		return nil, nil, fmt.Errorf("listing files: %w", err)
	}
	files := make([]*models.File, 0, len(all))
	for _, f := range all {
		lvl, err := s.resolver.Resolve(ctx, actor, models.FileTarget(f))
		if err != nil {
			return nil, nil, err
		}
		if lvl.AtLeast(access.LevelRead) {
			files = append(files, f)
		}
	}
	return subfolders, files, nil
}

// Upload encrypts plaintext and stores it as a new file owned by actor.
// The quota check, key allocation and record insert run in one transaction
// holding the owner's row lock, so concurrent uploads by the same user
// serialize and cannot overshoot the quota together.
func (s *DriveService) Upload(ctx context.Context, actor *models.User, folderID *string, filename string, visibility models.Visibility, plaintext []byte) (*models.File, error) {
	if !validName(filename) {
		return nil, common.ErrInvalidName
	}
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !visibility.Valid() {
		return nil, common.ErrInvalidName
	}
	if int64(len(plaintext)) > s.config.MaxFileSize {
		return nil, common.ErrTooLarge
	}

	if folderID != nil {
		folder, err := s.repomanager.Folders(s.db).GetByID(ctx, *folderID)
		if err != nil {
			return nil, err
		}
		lvl, err := s.resolver.Resolve(ctx, actor, models.FolderTarget(folder))
		if err != nil {
			return nil, err
		}
		if err := gate(lvl, access.LevelWrite); err != nil {
			return nil, err
		}
	}

	ciphertext, err := s.codec.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypting upload: %w", err)
	}
	token, err := models.NewShareToken()
	if err != nil {
		return nil, err
	}

	var created *models.File
	var key string
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Lock(ctx, actor.ID); err != nil {
			return fmt.Errorf("locking owner row: %w", err)
		}
		if err := s.quota.Check(ctx, tx, actor.ID, int64(len(ciphertext))); err != nil {
			return err
		}
		key, err = s.alloc.Allocate(ctx, actor.ID, folderID, filename, ciphertext)
		if err != nil {
			return err
		}
		created, err = s.repomanager.Files(tx).Create(ctx, &models.File{
			Name:       paths.Sanitize(filename),
			OwnerID:    actor.ID,
			FolderID:   folderID,
			StorageKey: key,
			Size:       int64(len(ciphertext)),
			Visibility: visibility,
			ShareToken: token,
		})
		return err
	})
	if err != nil {
		// The bytes were claimed before the transaction failed; take them
		// back so the key does not stay occupied by an orphan.
		if key != "" {
			if derr := s.store.Delete(ctx, key); derr != nil {
				s.logger.Error(ctx, "removing orphaned blob", "key", key, "error", derr)
			}
		}
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "file_id", created.ID, "owner_id", actor.ID, "size", created.Size)
	return created, nil
}

// CreateFolder creates a folder owned by actor. Creating inside another
// user's folder requires a write grant on it.
func (s *DriveService) CreateFolder(ctx context.Context, actor *models.User, parentID *string, name string, visibility models.Visibility) (*models.Folder, error) {
	if !validName(name) {
		return nil, common.ErrInvalidName
	}
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !visibility.Valid() {
		return nil, common.ErrInvalidName
	}

	if parentID != nil {
		parent, err := s.repomanager.Folders(s.db).GetByID(ctx, *parentID)
		if err != nil {
			return nil, err
		}
		lvl, err := s.resolver.Resolve(ctx, actor, models.FolderTarget(parent))
		if err != nil {
			return nil, err
		}
		if err := gate(lvl, access.LevelWrite); err != nil {
			return nil, err
		}
	}

	token, err := models.NewShareToken()
	if err != nil {
		return nil, err
	}
	created, err := s.repomanager.Folders(s.db).Create(ctx, &models.Folder{
		Name:       name,
		OwnerID:    actor.ID,
		ParentID:   parentID,
		Visibility: visibility,
		ShareToken: token,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "folder created", "folder_id", created.ID, "owner_id", actor.ID)
	return created, nil
}

// loadTarget fetches a file or folder as a Target, or ErrorNotFound.
func (s *DriveService) loadTarget(ctx context.Context, kind models.TargetKind, id string) (models.Target, error) {
	switch kind {
	case models.KindFile:
		f, err := s.repomanager.Files(s.db).GetByID(ctx, id)
		if err != nil {
			return models.Target{}, err
		}
		return models.FileTarget(f), nil
	case models.KindFolder:
		f, err := s.repomanager.Folders(s.db).GetByID(ctx, id)
		if err != nil {
			return models.Target{}, err
		}
		return models.FolderTarget(f), nil
	default:
		return models.Target{}, common.ErrorNotFound
	}
}

// requireOwner loads a target and checks the actor owns it (or is a
// superuser). Actors with no access at all get ErrorNotFound.
func (s *DriveService) requireOwner(ctx context.Context, actor *models.User, kind models.TargetKind, id string) (models.Target, error) {
	target, err := s.loadTarget(ctx, kind, id)
	if err != nil {
		return models.Target{}, err
	}
	lvl, err := s.resolver.Resolve(ctx, actor, target)
	if err != nil {
		return models.Target{}, err
	}
	if err := gate(lvl, access.LevelOwner); err != nil {
		return models.Target{}, err
	}
	return target, nil
}

// Rename changes a display name. Only the owner (or a superuser) may
// rename; a write grant covers content, not identity.
func (s *DriveService) Rename(ctx context.Context, actor *models.User, kind models.TargetKind, id, newName string) error {
	if !validName(newName) {
		return common.ErrInvalidName
	}
	target, err := s.requireOwner(ctx, actor, kind, id)
	if err != nil {
		return err
	}
	switch target.Kind() {
	case models.KindFile:
		return s.repomanager.Files(s.db).Rename(ctx, target.ID(), newName)
	default:
		return s.repomanager.Folders(s.db).Rename(ctx, target.ID(), newName)
	}
}

// Move reparents a file or folder. Owner-only; the destination must be a
// folder the actor owns, and a folder may never move under its own
// descendant.
func (s *DriveService) Move(ctx context.Context, actor *models.User, kind models.TargetKind, id string, newParentID *string) error {
	target, err := s.requireOwner(ctx, actor, kind, id)
	if err != nil {
		return err
	}

	if newParentID != nil {
		dest, err := s.repomanager.Folders(s.db).GetByID(ctx, *newParentID)
		if err != nil {
			return err
		}
		lvl, err := s.resolver.Resolve(ctx, actor, models.FolderTarget(dest))
		if err != nil {
			return err
		}
		if err := gate(lvl, access.LevelOwner); err != nil {
			return err
		}
	}

	switch target.Kind() {
	case models.KindFile:
		return s.repomanager.Files(s.db).SetFolder(ctx, target.ID(), newParentID)
	default:
		cycle, err := s.tree.WouldCycle(ctx, s.db, target.ID(), newParentID)
		if err != nil {
			return err
		}
		if cycle {
			return common.ErrCycleDetected
		}
		return s.repomanager.Folders(s.db).SetParent(ctx, target.ID(), newParentID)
	}
}

// Delete removes a file, or a folder with everything beneath it. Bytes go
// before records, so interrupted deletions never orphan blobs. A folder
// deletion that loses some items mid-way returns the partial report along
// with common.ErrPartialFailure; running it again resumes.
func (s *DriveService) Delete(ctx context.Context, actor *models.User, kind models.TargetKind, id string) (*hierarchy.DeleteReport, error) {
	target, err := s.requireOwner(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}

	if target.Kind() == models.KindFile {
		file := target.File()
		if err := s.store.Delete(ctx, file.StorageKey); err != nil {
			return nil, fmt.Errorf("deleting blob: %w", err)
		}
		if err := s.repomanager.Files(s.db).Delete(ctx, file.ID); err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "file deleted", "file_id", file.ID)
		return &hierarchy.DeleteReport{DeletedFiles: 1}, nil
	}

	report, err := s.tree.DeleteTree(ctx, s.db, target.ID())
	if err != nil && !errors.Is(err, common.ErrPartialFailure) {
		return nil, err
	}
	s.logger.Info(ctx, "folder deleted",
		"folder_id", target.ID(),
		"deleted_files", report.DeletedFiles,
		"deleted_folders", report.DeletedFolders,
		"remaining", len(report.RemainingFolders),
	)
	return report, err
}

// openFile loads a file the actor can read and decrypts its content.
func (s *DriveService) openFile(ctx context.Context, actor *models.User, fileID string) (*models.File, []byte, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}
	lvl, err := s.resolver.Resolve(ctx, actor, models.FileTarget(file))
	if err != nil {
		return nil, nil, err
	}
	if !lvl.AtLeast(access.LevelRead) {
		return nil, nil, common.ErrorNotFound
	}

	ciphertext, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, nil, fmt.Errorf("reading blob %s: %w", file.StorageKey, err)
	}
	plaintext, err := s.codec.Decrypt(ciphertext)
	if err != nil {
		return nil, nil, err
	}
	return file, plaintext, nil
}

// Download returns the decrypted content for anyone with read access.
func (s *DriveService) Download(ctx context.Context, actor *models.User, fileID string) (*models.File, []byte, error) {
	return s.openFile(ctx, actor, fileID)
}

// View is Download plus the text/binary classification used by the
// in-browser viewer.
func (s *DriveService) View(ctx context.Context, actor *models.User, fileID string) (*FileView, error) {
	file, content, err := s.openFile(ctx, actor, fileID)
	if err != nil {
		return nil, err
	}
	return &FileView{File: file, Content: content, IsText: IsTextName(file.Name)}, nil
}

// EditContent replaces a text file's content in place. Requires write
// access; the quota is re-checked with the size delta under the owner's row
// lock, so an edit that grows the file cannot slip past the owner's quota.
func (s *DriveService) EditContent(ctx context.Context, actor *models.User, fileID string, plaintext []byte) (*models.File, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	lvl, err := s.resolver.Resolve(ctx, actor, models.FileTarget(file))
	if err != nil {
		return nil, err
	}
	if err := gate(lvl, access.LevelWrite); err != nil {
		return nil, err
	}
	if !IsTextName(file.Name) {
		return nil, common.ErrNotTextFile
	}
	if int64(len(plaintext)) > s.config.MaxFileSize {
		return nil, common.ErrTooLarge
	}

	ciphertext, err := s.codec.Encrypt(plaintext)
	if err != nil {
		return nil, fmt.Errorf("encrypting edit: %w", err)
	}
	delta := int64(len(ciphertext)) - file.Size

	// Held so the blob can be put back if the record update rolls back;
	// otherwise the stored bytes would no longer match the record's size.
	previous, err := s.store.Get(ctx, file.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("reading blob %s: %w", file.StorageKey, err)
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.Users(tx).Lock(ctx, file.OwnerID); err != nil {
			return fmt.Errorf("locking owner row: %w", err)
		}
		if err := s.quota.Check(ctx, tx, file.OwnerID, delta); err != nil {
			return err
		}
		if err := s.store.Put(ctx, file.StorageKey, ciphertext); err != nil {
			return fmt.Errorf("writing blob: %w", err)
		}
		return s.repomanager.Files(tx).UpdateContent(ctx, file.ID, int64(len(ciphertext)))
	})
	if err != nil {
		if restoreErr := s.store.Put(ctx, file.StorageKey, previous); restoreErr != nil {
			s.logger.Error(ctx, "restoring blob after failed edit",
				"file_id", file.ID, "key", file.StorageKey, "error", restoreErr)
		}
		return nil, err
	}

	file.Size = int64(len(ciphertext))
	s.logger.Info(ctx, "file content edited", "file_id", file.ID, "size", file.Size)
	return file, nil
}
