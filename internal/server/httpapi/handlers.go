package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/services"
)

// -------- DTOs --------

type fileDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FolderID   *string   `json:"folder_id"`
	Size       int64     `json:"size"`
	Visibility string    `json:"visibility"`
	ShareToken string    `json:"share_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type folderDTO struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ParentID   *string   `json:"parent_id"`
	Visibility string    `json:"visibility"`
	ShareToken string    `json:"share_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// toFileDTO converts a file record. The share token is only revealed to the
// owner (or a superuser); everyone else could mint public links otherwise.
func toFileDTO(f *models.File, actor *models.User) fileDTO {
	dto := fileDTO{
		ID:         f.ID,
		Name:       f.Name,
		FolderID:   f.FolderID,
		Size:       f.Size,
		Visibility: string(f.Visibility),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
	if actor != nil && (actor.ID == f.OwnerID || actor.IsSuperuser) {
		dto.ShareToken = f.ShareToken
	}
	return dto
}

func toFolderDTO(f *models.Folder, actor *models.User) folderDTO {
	dto := folderDTO{
		ID:         f.ID,
		Name:       f.Name,
		ParentID:   f.ParentID,
		Visibility: string(f.Visibility),
		CreatedAt:  f.CreatedAt,
		UpdatedAt:  f.UpdatedAt,
	}
	if actor != nil && (actor.ID == f.OwnerID || actor.IsSuperuser) {
		dto.ShareToken = f.ShareToken
	}
	return dto
}

func toFileDTOs(files []*models.File, actor *models.User) []fileDTO {
	out := make([]fileDTO, 0, len(files))
	for _, f := range files {
		out = append(out, toFileDTO(f, actor))
	}
	return out
}

func toFolderDTOs(folders []*models.Folder, actor *models.User) []folderDTO {
	out := make([]folderDTO, 0, len(folders))
	for _, f := range folders {
		out = append(out, toFolderDTO(f, actor))
	}
	return out
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s", common.ErrInvalidName, "malformed request body")
	}
	return nil
}

// -------- drive --------

type listingResponse struct {
	Folder      *folderDTO  `json:"folder,omitempty"`
	Breadcrumbs []folderDTO `json:"breadcrumbs,omitempty"`
	Subfolders  []folderDTO `json:"subfolders"`
	Files       []fileDTO   `json:"files"`
}

func (s *HTTPServer) handleListContents(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var folderID *string
	if q := r.URL.Query().Get("folder"); q != "" {
		folderID = &q
	}

	listing, err := s.drive.ListContents(r.Context(), actor, folderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := listingResponse{
		Subfolders: toFolderDTOs(listing.Subfolders, actor),
		Files:      toFileDTOs(listing.Files, actor),
	}
	if listing.Folder != nil {
		dto := toFolderDTO(listing.Folder, actor)
		resp.Folder = &dto
		resp.Breadcrumbs = toFolderDTOs(listing.Breadcrumbs, actor)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req struct {
		Name       string  `json:"name"`
		ParentID   *string `json:"parent_id"`
		Visibility string  `json:"visibility"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	folder, err := s.drive.CreateFolder(r.Context(), actor, req.ParentID, req.Name, models.Visibility(req.Visibility))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFolderDTO(folder, actor))
}

// handleUpload accepts a multipart form with the payload in the "file"
// field plus optional "folder_id" and "visibility" fields.
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	if err := r.ParseMultipartForm(s.maxFileSize + 1); err != nil {
		s.writeError(w, r, common.ErrTooLarge)
		return
	}
	part, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing file field", common.ErrInvalidName))
		return
	}
	defer part.Close()

	// Read one byte past the cap so oversized payloads are detected without
	// buffering them whole.
	plaintext, err := io.ReadAll(io.LimitReader(part, s.maxFileSize+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if int64(len(plaintext)) > s.maxFileSize {
		s.writeError(w, r, common.ErrTooLarge)
		return
	}

	var folderID *string
	if v := r.FormValue("folder_id"); v != "" {
		folderID = &v
	}

	file, err := s.drive.Upload(r.Context(), actor, folderID, header.Filename, models.Visibility(r.FormValue("visibility")), plaintext)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFileDTO(file, actor))
}

func (s *HTTPServer) handleRename(kind models.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())

		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.drive.Rename(r.Context(), actor, kind, chi.URLParam(r, "id"), req.Name); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HTTPServer) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	s.handleRename(models.KindFile)(w, r)
}

func (s *HTTPServer) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	s.handleRename(models.KindFolder)(w, r)
}

func (s *HTTPServer) handleMove(kind models.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())

		var req struct {
			ParentID *string `json:"parent_id"`
		}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.drive.Move(r.Context(), actor, kind, chi.URLParam(r, "id"), req.ParentID); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HTTPServer) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	s.handleMove(models.KindFile)(w, r)
}

func (s *HTTPServer) handleMoveFolder(w http.ResponseWriter, r *http.Request) {
	s.handleMove(models.KindFolder)(w, r)
}

func (s *HTTPServer) handleDelete(kind models.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())

		report, err := s.drive.Delete(r.Context(), actor, kind, chi.URLParam(r, "id"))
		if err != nil && !errors.Is(err, common.ErrPartialFailure) {
			s.writeError(w, r, err)
			return
		}
		writeDeleteReport(w, report, err)
	}
}

func (s *HTTPServer) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(models.KindFile)(w, r)
}

func (s *HTTPServer) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	s.handleDelete(models.KindFolder)(w, r)
}

func (s *HTTPServer) handleDownload(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	file, content, err := s.drive.Download(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(file.Name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Name))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(content)
}

type fileViewResponse struct {
	File          fileDTO `json:"file"`
	IsText        bool    `json:"is_text"`
	Content       string  `json:"content,omitempty"`
	ContentBase64 string  `json:"content_base64,omitempty"`
}

func toFileViewResponse(view *services.FileView, actor *models.User) fileViewResponse {
	resp := fileViewResponse{File: toFileDTO(view.File, actor), IsText: view.IsText}
	if view.IsText {
		resp.Content = string(view.Content)
	} else {
		resp.ContentBase64 = base64.StdEncoding.EncodeToString(view.Content)
	}
	return resp
}

func (s *HTTPServer) handleView(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	view, err := s.drive.View(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileViewResponse(view, actor))
}

func (s *HTTPServer) handleEditContent(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	file, err := s.drive.EditContent(r.Context(), actor, chi.URLParam(r, "id"), []byte(req.Content))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFileDTO(file, actor))
}

// -------- sharing and access requests --------

func (s *HTTPServer) handleShare(kind models.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())

		var req struct {
			Username string `json:"username"`
			Level    string `json:"level"`
		}
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.Level == "" {
			req.Level = string(models.AccessRead)
		}

		err := s.share.Share(r.Context(), actor, kind, chi.URLParam(r, "id"), req.Username, models.AccessLevel(req.Level))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *HTTPServer) handleShareFile(w http.ResponseWriter, r *http.Request) {
	s.handleShare(models.KindFile)(w, r)
}

func (s *HTTPServer) handleShareFolder(w http.ResponseWriter, r *http.Request) {
	s.handleShare(models.KindFolder)(w, r)
}

func (s *HTTPServer) handleRequestAccess(kind models.TargetKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := actorFromContext(r.Context())

		outcome, err := s.access.Request(r.Context(), actor, kind, chi.URLParam(r, "id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"outcome": string(outcome)})
	}
}

func (s *HTTPServer) handleRequestFileAccess(w http.ResponseWriter, r *http.Request) {
	s.handleRequestAccess(models.KindFile)(w, r)
}

func (s *HTTPServer) handleRequestFolderAccess(w http.ResponseWriter, r *http.Request) {
	s.handleRequestAccess(models.KindFolder)(w, r)
}

type pendingRequestDTO struct {
	ID                string    `json:"id"`
	RequesterUsername string    `json:"requester_username"`
	TargetKind        string    `json:"target_kind"`
	TargetName        string    `json:"target_name"`
	CreatedAt         time.Time `json:"created_at"`
}

func (s *HTTPServer) handlePendingRequests(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	pending, err := s.access.Pending(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]pendingRequestDTO, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingRequestDTO{
			ID:                p.Request.ID,
			RequesterUsername: p.RequesterUsername,
			TargetKind:        string(p.TargetKind),
			TargetName:        p.TargetName,
			CreatedAt:         p.Request.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleApproveRequest(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	if err := s.access.Approve(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleRejectRequest(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	if err := s.access.Reject(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// -------- share links --------

type shareViewResponse struct {
	Banner string `json:"banner,omitempty"`
	Kind   string `json:"kind"`
	Name   string `json:"name"`

	File          *fileDTO `json:"file,omitempty"`
	IsText        bool     `json:"is_text,omitempty"`
	Content       string   `json:"content,omitempty"`
	ContentBase64 string   `json:"content_base64,omitempty"`

	Folder     *folderDTO  `json:"folder,omitempty"`
	Subfolders []folderDTO `json:"subfolders,omitempty"`
	Files      []fileDTO   `json:"files,omitempty"`
}

func (s *HTTPServer) handleShareLink(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	view, err := s.share.ResolveShareLink(r.Context(), actor, chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := shareViewResponse{Banner: view.Banner, Kind: string(view.Kind), Name: view.Name}
	if view.File != nil {
		dto := toFileDTO(view.File, actor)
		resp.File = &dto
		resp.IsText = view.IsText
		if view.IsText {
			resp.Content = string(view.Content)
		} else {
			resp.ContentBase64 = base64.StdEncoding.EncodeToString(view.Content)
		}
	}
	if view.Folder != nil {
		dto := toFolderDTO(view.Folder, actor)
		resp.Folder = &dto
		resp.Subfolders = toFolderDTOs(view.Subfolders, actor)
		resp.Files = toFileDTOs(view.Files, actor)
	}
	writeJSON(w, http.StatusOK, resp)
}

// -------- admin --------

type userSummaryDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Superuser bool   `json:"superuser"`
	Usage     int64  `json:"usage"`
	Limit     int64  `json:"limit"`
}

func (s *HTTPServer) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	summaries, err := s.admin.ListUsers(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]userSummaryDTO, 0, len(summaries))
	for _, sum := range summaries {
		out = append(out, userSummaryDTO{
			ID:        sum.User.ID,
			Username:  sum.User.Username,
			Superuser: sum.User.IsSuperuser,
			Usage:     sum.Usage,
			Limit:     sum.Limit,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *HTTPServer) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	var req struct {
		Username  string `json:"username"`
		Superuser bool   `json:"superuser"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, token, err := s.admin.CreateUser(r.Context(), actor, req.Username, req.Superuser)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        user.ID,
		"username":  user.Username,
		"superuser": user.IsSuperuser,
		"token":     token,
	})
}

func (s *HTTPServer) handleAdminUserContent(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r.Context())

	content, err := s.admin.ListUserContent(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": map[string]any{
			"id":       content.User.ID,
			"username": content.User.Username,
		},
		"folders": toFolderDTOs(content.Folders, actor),
		"files":   toFileDTOs(content.Files, actor),
	})
}
