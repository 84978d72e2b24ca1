package models

import "github.com/akarpovs/cryptodrive/internal/common"

// TargetKind discriminates the two shareable record types.
type TargetKind string

const (
	KindFile   TargetKind = "file"
	KindFolder TargetKind = "folder"
)

func (k TargetKind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Target is a tagged union over File and Folder giving access resolution a
// uniform view of ownership and visibility. Exactly one of the two variants
// is set.
type Target struct {
	kind   TargetKind
	file   *File
	folder *Folder
}

func FileTarget(f *File) Target {
	return Target{kind: KindFile, file: f}
}

func FolderTarget(f *Folder) Target {
	return Target{kind: KindFolder, folder: f}
}

func (t Target) Kind() TargetKind { return t.kind }

// File returns the file variant, nil unless Kind is KindFile.
func (t Target) File() *File { return t.file }

// Folder returns the folder variant, nil unless Kind is KindFolder.
func (t Target) Folder() *Folder { return t.folder }

func (t Target) ID() string {
	if t.kind == KindFile {
		return t.file.ID
	}
	return t.folder.ID
}

func (t Target) Name() string {
	if t.kind == KindFile {
		return t.file.Name
	}
	return t.folder.Name
}

func (t Target) OwnerID() string {
	if t.kind == KindFile {
		return t.file.OwnerID
	}
	return t.folder.OwnerID
}

func (t Target) Visibility() Visibility {
	if t.kind == KindFile {
		return t.file.Visibility
	}
	return t.folder.Visibility
}

func (t Target) ShareToken() string {
	if t.kind == KindFile {
		return t.file.ShareToken
	}
	return t.folder.ShareToken
}

// ParentFolderID is the id of the folder containing the target, nil at root.
func (t Target) ParentFolderID() *string {
	if t.kind == KindFile {
		return t.file.FolderID
	}
	return t.folder.ParentID
}

// NewShareToken mints a 64-character random token suitable for a URL path
// segment.
func NewShareToken() (string, error) {
	return common.MakeRandHexString(32)
}
