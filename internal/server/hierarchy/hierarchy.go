package hierarchy

import (
	"context"
	"errors"
	"fmt"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/blob"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// maxDepth bounds every ancestor walk. A chain longer than this can only
// mean corrupted parent pointers, so the walk stops instead of looping.
const maxDepth = 1000

// Tree implements the operations that have to see a folder subtree as a
// whole: breadcrumb trails, move-cycle detection and recursive deletion.
type Tree struct {
	rm     repomanager.RepositoryManager
	store  blob.Store
	logger logging.Logger
}

func NewTree(rm repomanager.RepositoryManager, store blob.Store, logger logging.Logger) *Tree {
	return &Tree{rm: rm, store: store, logger: logger}
}

// Breadcrumbs returns the chain of folders from the root down to and
// including folder. A broken or cyclic parent chain truncates the trail
// rather than failing the whole request.
func (t *Tree) Breadcrumbs(ctx context.Context, db dbx.DBTX, folder *models.Folder) ([]*models.Folder, error) {
	repo := t.rm.Folders(db)

	trail := []*models.Folder{folder}
	seen := map[string]bool{folder.ID: true}

	cur := folder
	for cur.ParentID != nil {
		if len(trail) > maxDepth || seen[*cur.ParentID] {
			t.logger.Warn(ctx, "folder parent chain is cyclic", "folder_id", folder.ID)
			break
		}
		parent, err := repo.GetByID(ctx, *cur.ParentID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				break
			}
			return nil, fmt.Errorf("loading breadcrumb parent: %w", err)
		}
		trail = append(trail, parent)
		seen[parent.ID] = true
		cur = parent
	}

	// Reverse in place so the root comes first.
	for i, j := 0, len(trail)-1; i < j; i, j = i+1, j-1 {
		trail[i], trail[j] = trail[j], trail[i]
	}
	return trail, nil
}

// WouldCycle reports whether reparenting folderID under newParentID would
// make the folder its own ancestor. Moving a folder into itself counts.
func (t *Tree) WouldCycle(ctx context.Context, db dbx.DBTX, folderID string, newParentID *string) (bool, error) {
	if newParentID == nil {
		return false, nil
	}
	repo := t.rm.Folders(db)

	cur := *newParentID
	for depth := 0; depth <= maxDepth; depth++ {
		if cur == folderID {
			return true, nil
		}
		parent, err := repo.GetByID(ctx, cur)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return false, nil
			}
			return false, fmt.Errorf("walking ancestors of %s: %w", *newParentID, err)
		}
		if parent.ParentID == nil {
			return false, nil
		}
		cur = *parent.ParentID
	}
	return true, nil
}

// DeleteReport describes the outcome of a recursive folder deletion. The
// operation keeps going past individual failures, so a report can carry
// both progress and leftovers.
type DeleteReport struct {
	DeletedFiles   int
	DeletedFolders int

	// FailedFiles are ids of files whose blob could not be removed; their
	// records were kept so a retry can find them.
	FailedFiles []string
	// RemainingFolders are ids of folders kept because something inside
	// them survived.
	RemainingFolders []string
}

// DeleteTree removes folderID and everything beneath it. For each file the
// blob is deleted before the record, so an interrupted run leaves records
// pointing at missing blobs rather than orphaned blobs. Folders are deleted
// children first, and a folder with any surviving content is kept. When
// anything survives the returned error is common.ErrPartialFailure; rerunning
// the deletion resumes where the failed run stopped.
func (t *Tree) DeleteTree(ctx context.Context, db dbx.DBTX, folderID string) (*DeleteReport, error) {
	repo := t.rm.Folders(db)

	// Collect the subtree breadth-first; index 0 is the target itself.
	order := []string{folderID}
	seen := map[string]bool{folderID: true}
	for i := 0; i < len(order); i++ {
		children, err := repo.ListChildren(ctx, order[i])
		if err != nil {
			return nil, fmt.Errorf("listing children of %s: %w", order[i], err)
		}
		for _, c := range children {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			order = append(order, c.ID)
		}
	}

	report := &DeleteReport{}
	// dirty marks folders that must be kept because a descendant survived.
	dirty := map[string]bool{}
	parentOf := map[string]string{}
	for i := 1; i < len(order); i++ {
		f, err := repo.GetByID(ctx, order[i])
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				continue
			}
			return nil, err
		}
		if f.ParentID != nil {
			parentOf[f.ID] = *f.ParentID
		}
	}

	fileRepo := t.rm.Files(db)
	// Deepest folders first, so parents see their children's outcome.
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]

		files, err := fileRepo.ListByFolder(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("listing files of %s: %w", id, err)
		}
		for _, f := range files {
			if err := t.store.Delete(ctx, f.StorageKey); err != nil {
				t.logger.Error(ctx, "deleting file blob", "file_id", f.ID, "key", f.StorageKey, "error", err)
				report.FailedFiles = append(report.FailedFiles, f.ID)
				dirty[id] = true
				continue
			}
			if err := fileRepo.Delete(ctx, f.ID); err != nil {
				t.logger.Error(ctx, "deleting file record", "file_id", f.ID, "error", err)
				report.FailedFiles = append(report.FailedFiles, f.ID)
				dirty[id] = true
				continue
			}
			report.DeletedFiles++
		}

		if dirty[id] {
			report.RemainingFolders = append(report.RemainingFolders, id)
			if p, ok := parentOf[id]; ok {
				dirty[p] = true
			}
			continue
		}
		if err := repo.Delete(ctx, id); err != nil {
			t.logger.Error(ctx, "deleting folder record", "folder_id", id, "error", err)
			report.RemainingFolders = append(report.RemainingFolders, id)
			if p, ok := parentOf[id]; ok {
				dirty[p] = true
			}
			continue
		}
		report.DeletedFolders++
	}

	if len(report.FailedFiles) > 0 || len(report.RemainingFolders) > 0 {
		return report, common.ErrPartialFailure
	}
	return report, nil
}
