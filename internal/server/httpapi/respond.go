package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/server/hierarchy"
)

type errorResponse struct {
	Error string `json:"error"`
	// Limit carries the byte limit for quota and size rejections.
	Limit int64 `json:"limit,omitempty"`
}

type deleteReportResponse struct {
	DeletedFiles     int      `json:"deleted_files"`
	DeletedFolders   int      `json:"deleted_folders"`
	FailedFiles      []string `json:"failed_files,omitempty"`
	RemainingFolders []string `json:"remaining_folders,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the service error taxonomy onto HTTP statuses. Not-found
// covers both genuinely absent records and records the actor may not know
// exist.
func (s *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound),
		errors.Is(err, common.ErrUserNotFound),
		errors.Is(err, common.ErrDecryptionFailed):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, common.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "permission denied"})
	case errors.Is(err, common.ErrQuotaExceeded):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "storage quota exceeded", Limit: s.drive.Quota().Limit()})
	case errors.Is(err, common.ErrTooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "file too large", Limit: s.maxFileSize})
	case errors.Is(err, common.ErrCycleDetected),
		errors.Is(err, common.ErrInvalidName),
		errors.Is(err, common.ErrNotTextFile):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, common.ErrRequestClosed):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// writeDeleteReport returns 200 for a clean deletion and 207 when parts of
// the tree survived.
func writeDeleteReport(w http.ResponseWriter, report *hierarchy.DeleteReport, err error) {
	status := http.StatusOK
	if errors.Is(err, common.ErrPartialFailure) {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, deleteReportResponse{
		DeletedFiles:     report.DeletedFiles,
		DeletedFolders:   report.DeletedFolders,
		FailedFiles:      report.FailedFiles,
		RemainingFolders: report.RemainingFolders,
	})
}
