package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/cryptox"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/blob"
	"github.com/akarpovs/cryptodrive/internal/server/config"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/accessrequests"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/files"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/folders"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/permissions"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/users"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// -------- test fakes --------

type fakeUsersRepo struct {
	users.Repository
	byID map[string]*models.User

	nextID int
}

func (f *fakeUsersRepo) Create(ctx context.Context, user *models.User) (*models.User, error) {
	f.nextID++
	u := *user
	u.ID = fmt.Sprintf("user-%d", f.nextID)
	f.byID[u.ID] = &u
	return &u, nil
}

func (f *fakeUsersRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsersRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, u := range f.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) List(ctx context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range f.byID {
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeUsersRepo) Lock(ctx context.Context, id string) error { return nil }

type fakeFoldersRepo struct {
	folders.Repository
	byID map[string]*models.Folder

	nextID int
}

func (f *fakeFoldersRepo) Create(ctx context.Context, folder *models.Folder) (*models.Folder, error) {
	f.nextID++
	c := *folder
	c.ID = fmt.Sprintf("folder-%d", f.nextID)
	f.byID[c.ID] = &c
	return &c, nil
}

func (f *fakeFoldersRepo) GetByID(ctx context.Context, id string) (*models.Folder, error) {
	folder, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return folder, nil
}

func (f *fakeFoldersRepo) GetByShareToken(ctx context.Context, token string) (*models.Folder, error) {
	for _, folder := range f.byID {
		if folder.ShareToken == token {
			return folder, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFoldersRepo) ListChildren(ctx context.Context, parentID string) ([]*models.Folder, error) {
	var out []*models.Folder
	for _, folder := range f.byID {
		if folder.ParentID != nil && *folder.ParentID == parentID {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *fakeFoldersRepo) ListRoot(ctx context.Context, ownerID string) ([]*models.Folder, error) {
	var out []*models.Folder
	for _, folder := range f.byID {
		if folder.OwnerID == ownerID && folder.ParentID == nil {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *fakeFoldersRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.Folder, error) {
	var out []*models.Folder
	for _, folder := range f.byID {
		if folder.OwnerID == ownerID {
			out = append(out, folder)
		}
	}
	return out, nil
}

func (f *fakeFoldersRepo) Rename(ctx context.Context, id, name string) error {
	folder, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	folder.Name = name
	return nil
}

func (f *fakeFoldersRepo) SetParent(ctx context.Context, id string, parentID *string) error {
	folder, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	folder.ParentID = parentID
	return nil
}

func (f *fakeFoldersRepo) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeFilesRepo struct {
	files.Repository
	byID map[string]*models.File

	nextID    int
	updateErr error
}

func (f *fakeFilesRepo) Create(ctx context.Context, file *models.File) (*models.File, error) {
	f.nextID++
	c := *file
	c.ID = fmt.Sprintf("file-%d", f.nextID)
	f.byID[c.ID] = &c
	return &c, nil
}

func (f *fakeFilesRepo) GetByID(ctx context.Context, id string) (*models.File, error) {
	file, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return file, nil
}

func (f *fakeFilesRepo) GetByShareToken(ctx context.Context, token string) (*models.File, error) {
	for _, file := range f.byID {
		if file.ShareToken == token {
			return file, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeFilesRepo) ListByFolder(ctx context.Context, folderID string) ([]*models.File, error) {
	var out []*models.File
	for _, file := range f.byID {
		if file.FolderID != nil && *file.FolderID == folderID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) ListRoot(ctx context.Context, ownerID string) ([]*models.File, error) {
	var out []*models.File
	for _, file := range f.byID {
		if file.OwnerID == ownerID && file.FolderID == nil {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error) {
	var out []*models.File
	for _, file := range f.byID {
		if file.OwnerID == ownerID {
			out = append(out, file)
		}
	}
	return out, nil
}

func (f *fakeFilesRepo) Rename(ctx context.Context, id, name string) error {
	file, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	file.Name = name
	return nil
}

func (f *fakeFilesRepo) SetFolder(ctx context.Context, id string, folderID *string) error {
	file, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	file.FolderID = folderID
	return nil
}

func (f *fakeFilesRepo) UpdateContent(ctx context.Context, id string, size int64) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	file, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	file.Size = size
	return nil
}

func (f *fakeFilesRepo) Delete(ctx context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeFilesRepo) SumSizeByOwner(ctx context.Context, ownerID string) (int64, error) {
	var sum int64
	for _, file := range f.byID {
		if file.OwnerID == ownerID {
			sum += file.Size
		}
	}
	return sum, nil
}

type fakePermissionsRepo struct {
	permissions.Repository
	grants []*models.Permission
}

func (f *fakePermissionsRepo) Get(ctx context.Context, userID string, target models.Target) (*models.Permission, error) {
	for _, p := range f.grants {
		if p.UserID != userID {
			continue
		}
		if target.Kind() == models.KindFile && p.FileID != nil && *p.FileID == target.ID() {
			return p, nil
		}
		if target.Kind() == models.KindFolder && p.FolderID != nil && *p.FolderID == target.ID() {
			return p, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakePermissionsRepo) Set(ctx context.Context, perm *models.Permission) error {
	var target models.Target
	if perm.FileID != nil {
		target = models.FileTarget(&models.File{ID: *perm.FileID})
	} else {
		target = models.FolderTarget(&models.Folder{ID: *perm.FolderID})
	}
	existing, err := f.Get(ctx, perm.UserID, target)
	if err == nil {
		existing.AccessLevel = perm.AccessLevel
		return nil
	}
	f.grants = append(f.grants, perm)
	return nil
}

func (f *fakePermissionsRepo) Upsert(ctx context.Context, perm *models.Permission) error {
	var target models.Target
	if perm.FileID != nil {
		target = models.FileTarget(&models.File{ID: *perm.FileID})
	} else {
		target = models.FolderTarget(&models.Folder{ID: *perm.FolderID})
	}
	existing, err := f.Get(ctx, perm.UserID, target)
	if err == nil {
		if existing.AccessLevel != models.AccessWrite {
			existing.AccessLevel = perm.AccessLevel
		}
		return nil
	}
	f.grants = append(f.grants, perm)
	return nil
}

type fakeAccessRequestsRepo struct {
	accessrequests.Repository
	byID map[string]*models.AccessRequest

	nextID int
}

func (f *fakeAccessRequestsRepo) GetByID(ctx context.Context, id string) (*models.AccessRequest, error) {
	req, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return req, nil
}

func (f *fakeAccessRequestsRepo) GetForTarget(ctx context.Context, userID string, target models.Target) (*models.AccessRequest, error) {
	for _, req := range f.byID {
		if req.UserID != userID {
			continue
		}
		if target.Kind() == models.KindFile && req.FileID != nil && *req.FileID == target.ID() {
			return req, nil
		}
		if target.Kind() == models.KindFolder && req.FolderID != nil && *req.FolderID == target.ID() {
			return req, nil
		}
	}
	// Wrapped like the Postgres repositories wrap their errors.
	return nil, fmt.Errorf("request for %s: %w", target.ID(), common.ErrorNotFound)
}

func (f *fakeAccessRequestsRepo) CreatePending(ctx context.Context, userID string, target models.Target) (bool, error) {
	if _, err := f.GetForTarget(ctx, userID, target); err == nil {
		return false, nil
	}
	f.nextID++
	req := &models.AccessRequest{
		ID:     fmt.Sprintf("req-%d", f.nextID),
		UserID: userID,
		Status: models.RequestPending,
	}
	id := target.ID()
	if target.Kind() == models.KindFile {
		req.FileID = &id
	} else {
		req.FolderID = &id
	}
	f.byID[req.ID] = req
	return true, nil
}

func (f *fakeAccessRequestsRepo) SetStatus(ctx context.Context, id string, status models.RequestStatus) error {
	req, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	if req.Status != models.RequestPending {
		return common.ErrRequestClosed
	}
	req.Status = status
	return nil
}

func (f *fakeAccessRequestsRepo) Reopen(ctx context.Context, id string) error {
	req, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	req.Status = models.RequestPending
	return nil
}

func (f *fakeAccessRequestsRepo) ListPendingForOwner(ctx context.Context, ownerID string) ([]*accessrequests.PendingRequest, error) {
	var out []*accessrequests.PendingRequest
	for _, req := range f.byID {
		if req.Status == models.RequestPending {
			out = append(out, &accessrequests.PendingRequest{Request: *req})
		}
	}
	return out, nil
}

type fakeRepoManager struct {
	repomanager.RepositoryManager
	u *fakeUsersRepo
	d *fakeFoldersRepo
	f *fakeFilesRepo
	p *fakePermissionsRepo
	r *fakeAccessRequestsRepo
}

func (m *fakeRepoManager) Users(db dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Folders(db dbx.DBTX) folders.Repository         { return m.d }
func (m *fakeRepoManager) Files(db dbx.DBTX) files.Repository             { return m.f }
func (m *fakeRepoManager) Permissions(db dbx.DBTX) permissions.Repository { return m.p }
func (m *fakeRepoManager) AccessRequests(db dbx.DBTX) accessrequests.Repository {
	return m.r
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		u: &fakeUsersRepo{byID: map[string]*models.User{}},
		d: &fakeFoldersRepo{byID: map[string]*models.Folder{}},
		f: &fakeFilesRepo{byID: map[string]*models.File{}},
		p: &fakePermissionsRepo{},
		r: &fakeAccessRequestsRepo{byID: map[string]*models.AccessRequest{}},
	}
}

// -------- helpers --------

func strptr(s string) *string { return &s }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxFileSize = 1 << 20
	cfg.TotalServerStorage = 50_000
	cfg.UserQuotaFraction = 0.02 // 1000-byte quota
	return cfg
}

func newCodec(t *testing.T) *cryptox.Codec {
	t.Helper()
	codec, err := cryptox.New(cryptox.DeriveKey([]byte("passphrase"), []byte("salt")))
	if err != nil {
		t.Fatalf("cryptox.New error: %v", err)
	}
	return codec
}

type driveFixture struct {
	svc   *DriveService
	rm    *fakeRepoManager
	store *blob.MemoryStore
	mock  sqlmock.Sqlmock
	cfg   *config.Config
}

func newDriveFixture(t *testing.T) *driveFixture {
	t.Helper()
	db, mock := newSQLMockDB(t)
	rm := newFakeRepoManager()
	store := blob.NewMemoryStore()
	cfg := testConfig()
	svc := NewDriveService(db, rm, store, newCodec(t), cfg, logging.NewDiscardLogger())
	return &driveFixture{svc: svc, rm: rm, store: store, mock: mock, cfg: cfg}
}

func (fx *driveFixture) addUser(id, username string, super bool) *models.User {
	u := &models.User{ID: id, Username: username, IsSuperuser: super}
	fx.rm.u.byID[id] = u
	return u
}

func (fx *driveFixture) addFolder(id, owner string, parent *string, vis models.Visibility) *models.Folder {
	f := &models.Folder{ID: id, Name: id, OwnerID: owner, ParentID: parent, Visibility: vis, ShareToken: "tok-" + id}
	fx.rm.d.byID[id] = f
	return f
}

func (fx *driveFixture) addFile(t *testing.T, id, owner string, folderID *string, name string, vis models.Visibility, plaintext []byte) *models.File {
	t.Helper()
	ct, err := fx.svc.codec.Encrypt(plaintext)
	if err != nil {
		t.Fatalf("encrypt error: %v", err)
	}
	key := "files/test/" + id
	if err := fx.store.Put(context.Background(), key, ct); err != nil {
		t.Fatalf("seeding blob: %v", err)
	}
	f := &models.File{
		ID: id, Name: name, OwnerID: owner, FolderID: folderID,
		StorageKey: key, Size: int64(len(ct)), Visibility: vis, ShareToken: "tok-" + id,
	}
	fx.rm.f.byID[id] = f
	return f
}

// -------- tests --------

func TestUpload_StoresEncryptedContent(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()

	created, err := fx.svc.Upload(ctx, alice, nil, "notes.txt", models.VisibilityPrivate, []byte("hello"))
	if err != nil {
		t.Fatalf("Upload error: %v", err)
	}
	if created.Name != "notes.txt" || created.OwnerID != "u1" {
		t.Fatalf("created = %+v", created)
	}
	if created.ShareToken == "" {
		t.Fatal("share token not assigned")
	}

	stored, err := fx.store.Get(ctx, created.StorageKey)
	if err != nil {
		t.Fatalf("stored blob missing: %v", err)
	}
	if string(stored) == "hello" {
		t.Fatal("blob stored in plaintext")
	}
	plaintext, err := fx.svc.codec.Decrypt(stored)
	if err != nil || string(plaintext) != "hello" {
		t.Fatalf("round trip failed: %q, %v", plaintext, err)
	}
	if created.Size != int64(len(stored)) {
		t.Fatalf("Size = %d, want ciphertext length %d", created.Size, len(stored))
	}
}

func TestUpload_QuotaExceeded(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)

	// 1000-byte quota; an existing 600-byte file leaves no room for another
	// payload whose ciphertext tops 400 bytes.
	fx.rm.f.byID["big"] = &models.File{ID: "big", Name: "big.bin", OwnerID: "u1", StorageKey: "k-big", Size: 600}

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()

	_, err := fx.svc.Upload(ctx, alice, nil, "more.bin", models.VisibilityPrivate, make([]byte, 500))
	if !errors.Is(err, common.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	// The claimed key must have been released.
	if fx.store.Len() != 0 {
		t.Fatalf("orphan blobs left: %d", fx.store.Len())
	}
}

func TestUpload_TooLarge(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	fx.cfg.MaxFileSize = 10

	_, err := fx.svc.Upload(ctx, alice, nil, "big.bin", models.VisibilityPrivate, make([]byte, 11))
	if !errors.Is(err, common.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

func TestUpload_InvalidName(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)

	_, err := fx.svc.Upload(ctx, alice, nil, "   ", models.VisibilityPrivate, []byte("x"))
	if !errors.Is(err, common.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestUpload_IntoForeignFolder(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	fx.addFolder("f1", "u1", nil, models.VisibilityPrivate)

	// No access at all: the folder must look nonexistent.
	_, err := fx.svc.Upload(ctx, bob, strptr("f1"), "x.txt", models.VisibilityPrivate, []byte("x"))
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound, got %v", err)
	}

	// Read grant is not enough to add content.
	fid := "f1"
	fx.rm.p.grants = append(fx.rm.p.grants, &models.Permission{UserID: "u2", FolderID: &fid, AccessLevel: models.AccessRead})
	_, err = fx.svc.Upload(ctx, bob, strptr("f1"), "x.txt", models.VisibilityPrivate, []byte("x"))
	if !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestRename_OwnerOnly(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	admin := fx.addUser("u3", "root", true)
	fx.addFile(t, "file-1", "u1", nil, "old.txt", models.VisibilityPublic, []byte("x"))

	if err := fx.svc.Rename(ctx, alice, models.KindFile, "file-1", "new.txt"); err != nil {
		t.Fatalf("owner rename error: %v", err)
	}
	if fx.rm.f.byID["file-1"].Name != "new.txt" {
		t.Fatal("rename not applied")
	}

	// Public visibility gives bob read, but identity changes stay
	// owner-only.
	err := fx.svc.Rename(ctx, bob, models.KindFile, "file-1", "mine.txt")
	if !errors.Is(err, common.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	if err := fx.svc.Rename(ctx, admin, models.KindFile, "file-1", "admin.txt"); err != nil {
		t.Fatalf("superuser rename error: %v", err)
	}

	err = fx.svc.Rename(ctx, alice, models.KindFile, "file-1", "  ")
	if !errors.Is(err, common.ErrInvalidName) {
		t.Fatalf("expected ErrInvalidName, got %v", err)
	}
}

func TestMove_RejectsCycle(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	fx.addFolder("a", "u1", nil, models.VisibilityPrivate)
	fx.addFolder("b", "u1", strptr("a"), models.VisibilityPrivate)

	err := fx.svc.Move(ctx, alice, models.KindFolder, "a", strptr("b"))
	if !errors.Is(err, common.ErrCycleDetected) {
		t.Fatalf("expected ErrCycleDetected, got %v", err)
	}

	// The legal direction works and the parent pointer changes.
	if err := fx.svc.Move(ctx, alice, models.KindFolder, "b", nil); err != nil {
		t.Fatalf("Move error: %v", err)
	}
	if fx.rm.d.byID["b"].ParentID != nil {
		t.Fatal("move not applied")
	}
}

func TestDelete_File(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	f := fx.addFile(t, "file-1", "u1", nil, "doc.txt", models.VisibilityPrivate, []byte("x"))

	report, err := fx.svc.Delete(ctx, alice, models.KindFile, f.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if report.DeletedFiles != 1 {
		t.Fatalf("report = %+v", report)
	}
	if _, ok := fx.rm.f.byID[f.ID]; ok {
		t.Fatal("record survived")
	}
	if fx.store.Len() != 0 {
		t.Fatal("blob survived")
	}
}

func TestDownload_VisibilityGating(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	private := fx.addFile(t, "file-1", "u1", nil, "secret.txt", models.VisibilityPrivate, []byte("secret"))
	public := fx.addFile(t, "file-2", "u1", nil, "open.txt", models.VisibilityPublic, []byte("open"))

	_, _, err := fx.svc.Download(ctx, bob, private.ID)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("private file must look nonexistent, got %v", err)
	}

	_, content, err := fx.svc.Download(ctx, bob, public.ID)
	if err != nil {
		t.Fatalf("Download error: %v", err)
	}
	if string(content) != "open" {
		t.Fatalf("content = %q", content)
	}

	// Anonymous read of a public file via nil actor.
	_, content, err = fx.svc.Download(ctx, nil, public.ID)
	if err != nil || string(content) != "open" {
		t.Fatalf("anonymous download: %q, %v", content, err)
	}
}

func TestView_ClassifiesText(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	text := fx.addFile(t, "file-1", "u1", nil, "notes.md", models.VisibilityPrivate, []byte("# hi"))
	bin := fx.addFile(t, "file-2", "u1", nil, "photo.jpg", models.VisibilityPrivate, []byte{0xff, 0xd8})

	view, err := fx.svc.View(ctx, alice, text.ID)
	if err != nil {
		t.Fatalf("View error: %v", err)
	}
	if !view.IsText || string(view.Content) != "# hi" {
		t.Fatalf("view = %+v", view)
	}

	view, err = fx.svc.View(ctx, alice, bin.ID)
	if err != nil {
		t.Fatalf("View error: %v", err)
	}
	if view.IsText {
		t.Fatal("jpg classified as text")
	}
}

func TestEditContent_TextOnlyAndQuota(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	text := fx.addFile(t, "file-1", "u1", nil, "notes.txt", models.VisibilityPrivate, []byte("old"))
	bin := fx.addFile(t, "file-2", "u1", nil, "photo.jpg", models.VisibilityPrivate, []byte{0xff})

	_, err := fx.svc.EditContent(ctx, alice, bin.ID, []byte("nope"))
	if !errors.Is(err, common.ErrNotTextFile) {
		t.Fatalf("expected ErrNotTextFile, got %v", err)
	}

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	updated, err := fx.svc.EditContent(ctx, alice, text.ID, []byte("brand new content"))
	if err != nil {
		t.Fatalf("EditContent error: %v", err)
	}
	stored, err := fx.store.Get(ctx, text.StorageKey)
	if err != nil {
		t.Fatalf("blob missing: %v", err)
	}
	plaintext, err := fx.svc.codec.Decrypt(stored)
	if err != nil || string(plaintext) != "brand new content" {
		t.Fatalf("round trip failed: %q, %v", plaintext, err)
	}
	if updated.Size != int64(len(stored)) || fx.rm.f.byID[text.ID].Size != updated.Size {
		t.Fatalf("size not updated: %d vs %d", updated.Size, len(stored))
	}

	// Growing past the quota rolls the edit back.
	fx.rm.f.byID["pad"] = &models.File{ID: "pad", Name: "pad.bin", OwnerID: "u1", StorageKey: "k-pad", Size: 950}
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()
	_, err = fx.svc.EditContent(ctx, alice, text.ID, make([]byte, 500))
	if !errors.Is(err, common.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
}

func TestEditContent_FailedUpdateRestoresBlob(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	alice := fx.addUser("u1", "alice", false)
	text := fx.addFile(t, "file-1", "u1", nil, "notes.txt", models.VisibilityPrivate, []byte("keep me"))

	fx.rm.f.updateErr = errors.New("db down")
	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()
	if _, err := fx.svc.EditContent(ctx, alice, text.ID, []byte("lost edit")); err == nil {
		t.Fatal("expected error from failed record update")
	}

	// The rolled-back record still points at the original bytes.
	stored, err := fx.store.Get(ctx, text.StorageKey)
	if err != nil {
		t.Fatalf("blob missing after rollback: %v", err)
	}
	plaintext, err := fx.svc.codec.Decrypt(stored)
	if err != nil || string(plaintext) != "keep me" {
		t.Fatalf("blob after rollback = %q, %v; want original content", plaintext, err)
	}
	if fx.rm.f.byID[text.ID].Size != int64(len(stored)) {
		t.Fatalf("record size %d does not match stored bytes %d",
			fx.rm.f.byID[text.ID].Size, len(stored))
	}
}

func TestEditContent_WriteGrantSuffices(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)
	text := fx.addFile(t, "file-1", "u1", nil, "shared.txt", models.VisibilityPrivate, []byte("v1"))

	fid := text.ID
	fx.rm.p.grants = append(fx.rm.p.grants, &models.Permission{UserID: "u2", FileID: &fid, AccessLevel: models.AccessWrite})

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	if _, err := fx.svc.EditContent(ctx, bob, text.ID, []byte("v2")); err != nil {
		t.Fatalf("EditContent with write grant: %v", err)
	}

	// The quota debited is the owner's, not the editor's.
	usage, err := fx.svc.Quota().Usage(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("Usage error: %v", err)
	}
	if usage != fx.rm.f.byID[text.ID].Size {
		t.Fatalf("owner usage = %d, want %d", usage, fx.rm.f.byID[text.ID].Size)
	}
}

func TestListContents_FolderGating(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)

	public := fx.addFolder("pub", "u1", nil, models.VisibilityPublic)
	fx.addFolder("hidden", "u1", strptr("pub"), models.VisibilityPrivate)
	fx.addFolder("open", "u1", strptr("pub"), models.VisibilityPublic)
	fx.addFile(t, "file-1", "u1", strptr("pub"), "visible.txt", models.VisibilityPublic, []byte("x"))
	fx.addFile(t, "file-2", "u1", strptr("pub"), "private.txt", models.VisibilityPrivate, []byte("y"))

	listing, err := fx.svc.ListContents(ctx, bob, &public.ID)
	if err != nil {
		t.Fatalf("ListContents error: %v", err)
	}
	if len(listing.Subfolders) != 1 || listing.Subfolders[0].ID != "open" {
		t.Fatalf("subfolders = %+v", listing.Subfolders)
	}
	if len(listing.Files) != 1 || listing.Files[0].ID != "file-1" {
		t.Fatalf("files = %+v", listing.Files)
	}
	if len(listing.Breadcrumbs) != 1 || listing.Breadcrumbs[0].ID != "pub" {
		t.Fatalf("breadcrumbs = %+v", listing.Breadcrumbs)
	}
}

func TestListContents_PrivateAncestorBlocks(t *testing.T) {
	ctx := context.Background()
	fx := newDriveFixture(t)
	fx.addUser("u1", "alice", false)
	bob := fx.addUser("u2", "bob", false)

	fx.addFolder("secret", "u1", nil, models.VisibilityPrivate)
	leaf := fx.addFolder("leaf", "u1", strptr("secret"), models.VisibilityPublic)

	_, err := fx.svc.ListContents(ctx, bob, &leaf.ID)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("expected ErrorNotFound through private ancestor, got %v", err)
	}
}
