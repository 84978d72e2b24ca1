package services

import (
	"context"
	"errors"
	"testing"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/models"
)

func newShareFixture(t *testing.T) (*ShareService, *driveFixture) {
	t.Helper()
	drive := newDriveFixture(t)
	svc := NewShareService(drive.svc.db, drive.rm, drive.svc, logging.NewDiscardLogger())
	return svc, drive
}

func TestShare_GrantsByUsername(t *testing.T) {
	ctx := context.Background()
	svc, fx := newShareFixture(t)
	alice := fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	file := fx.addFile(t, "file-1", "u1", nil, "doc.txt", models.VisibilityPrivate, []byte("body"))

	if err := svc.Share(ctx, alice, models.KindFile, file.ID, "bob", models.AccessRead); err != nil {
		t.Fatalf("Share error: %v", err)
	}

	_, content, err := fx.svc.Download(ctx, bob, file.ID)
	if err != nil {
		t.Fatalf("Download after share: %v", err)
	}
	if string(content) != "body" {
		t.Fatalf("content = %q", content)
	}

	// Unknown grantee.
	err = svc.Share(ctx, alice, models.KindFile, file.ID, "nobody", models.AccessRead)
	if !errors.Is(err, common.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	// Grantees cannot forward their access.
	err = svc.Share(ctx, bob, models.KindFile, file.ID, "alice", models.AccessRead)
	if !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestShare_ReshareReplacesLevel(t *testing.T) {
	ctx := context.Background()
	svc, fx := newShareFixture(t)
	alice := fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	file := fx.addFile(t, "file-1", "u1", nil, "doc.txt", models.VisibilityPrivate, []byte("x"))

	if err := svc.Share(ctx, alice, models.KindFile, file.ID, "bob", models.AccessWrite); err != nil {
		t.Fatalf("Share error: %v", err)
	}
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	if _, err := fx.svc.EditContent(ctx, bob, file.ID, []byte("edited")); err != nil {
		t.Fatalf("EditContent with write grant: %v", err)
	}

	// The owner's latest decision wins: sharing read after write downgrades.
	if err := svc.Share(ctx, alice, models.KindFile, file.ID, "bob", models.AccessRead); err != nil {
		t.Fatalf("Share error: %v", err)
	}
	if got := fx.rm.p.grants[0].AccessLevel; got != models.AccessRead {
		t.Fatalf("grant level = %s, want read", got)
	}
	if _, err := fx.svc.EditContent(ctx, bob, file.ID, []byte("again")); !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied after downgrade, got %v", err)
	}

	// And back up again.
	if err := svc.Share(ctx, alice, models.KindFile, file.ID, "bob", models.AccessWrite); err != nil {
		t.Fatalf("Share error: %v", err)
	}
	if got := fx.rm.p.grants[0].AccessLevel; got != models.AccessWrite {
		t.Fatalf("grant level = %s, want write", got)
	}
}

func TestResolveShareLink_File(t *testing.T) {
	ctx := context.Background()
	svc, fx := newShareFixture(t)
	fx.addUser("u1", "alice", false)
	file := fx.addFile(t, "file-1", "u1", nil, "notes.txt", models.VisibilityPublic, []byte("shared text"))

	view, err := svc.ResolveShareLink(ctx, nil, file.ShareToken)
	if err != nil {
		t.Fatalf("ResolveShareLink error: %v", err)
	}
	if view.Banner != "" {
		t.Fatalf("unexpected banner %q", view.Banner)
	}
	if view.Kind != models.KindFile || string(view.Content) != "shared text" || !view.IsText {
		t.Fatalf("view = %+v", view)
	}
}

func TestResolveShareLink_Banners(t *testing.T) {
	ctx := context.Background()
	svc, fx := newShareFixture(t)
	fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	private := fx.addFile(t, "file-1", "u1", nil, "p.txt", models.VisibilityPrivate, []byte("x"))
	ask := fx.addFile(t, "file-2", "u1", nil, "a.txt", models.VisibilityAsk, []byte("y"))

	tests := []struct {
		name   string
		actor  *models.User
		token  string
		banner string
	}{
		{"private link for stranger", bob, private.ShareToken, BannerPrivateBlocked},
		{"private link anonymous", nil, private.ShareToken, BannerPrivateBlocked},
		{"ask link anonymous", nil, ask.ShareToken, BannerAskPromptLogin},
		{"ask link authenticated", bob, ask.ShareToken, BannerAskPromptAccess},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			view, err := svc.ResolveShareLink(ctx, tc.actor, tc.token)
			if err != nil {
				t.Fatalf("ResolveShareLink error: %v", err)
			}
			if view.Banner != tc.banner {
				t.Errorf("banner = %q, want %q", view.Banner, tc.banner)
			}
			if view.Content != nil || view.File != nil {
				t.Error("blocked view leaked content")
			}
		})
	}
}

func TestResolveShareLink_Folder(t *testing.T) {
	ctx := context.Background()
	svc, fx := newShareFixture(t)
	fx.addUser("u1", "alice", false)
	folder := fx.addFolder("f1", "u1", nil, models.VisibilityPublic)
	fx.addFile(t, "file-1", "u1", strptr("f1"), "open.txt", models.VisibilityPublic, []byte("x"))
	fx.addFile(t, "file-2", "u1", strptr("f1"), "secret.txt", models.VisibilityPrivate, []byte("y"))

	view, err := svc.ResolveShareLink(ctx, nil, folder.ShareToken)
	if err != nil {
		t.Fatalf("ResolveShareLink error: %v", err)
	}
	if view.Kind != models.KindFolder || view.Folder == nil {
		t.Fatalf("view = %+v", view)
	}
	if len(view.Files) != 1 || view.Files[0].Name != "open.txt" {
		t.Fatalf("files = %+v", view.Files)
	}
}

func TestResolveShareLink_UnknownToken(t *testing.T) {
	ctx := context.Background()
	svc, fx := newShareFixture(t)
	fx.addUser("u1", "alice", false)

	_, err := svc.ResolveShareLink(ctx, nil, "deadbeef")
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}
}
