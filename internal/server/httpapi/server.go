// Package httpapi exposes the drive services over HTTP. Routing is chi,
// payloads are JSON, and authentication is a bearer JWT decoded into the
// acting user.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akarpovs/cryptodrive/internal/logging"
	sc "github.com/akarpovs/cryptodrive/internal/server/config"
	"github.com/akarpovs/cryptodrive/internal/server/services"
)

type HTTPServer struct {
	address     string
	logger      logging.Logger
	jwtSecret   []byte
	maxFileSize int64

	drive  *services.DriveService
	access *services.AccessService
	share  *services.ShareService
	admin  *services.AdminService
}

func NewHTTPServer(config *sc.Config, logger logging.Logger, drive *services.DriveService, access *services.AccessService, share *services.ShareService, admin *services.AdminService) *HTTPServer {
	return &HTTPServer{
		address:     config.EndpointAddrHTTP,
		logger:      logger.With("module", "http_server"),
		jwtSecret:   []byte(config.SecretKey),
		maxFileSize: config.MaxFileSize,
		drive:       drive,
		access:      access,
		share:       share,
		admin:       admin,
	}
}

// Router builds the route tree. Exposed separately so tests can drive the
// handlers without a listening socket.
func (s *HTTPServer) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Get("/drive", s.handleListContents)

		r.Post("/folders", s.handleCreateFolder)
		r.Route("/folders/{id}", func(r chi.Router) {
			r.Post("/rename", s.handleRenameFolder)
			r.Post("/move", s.handleMoveFolder)
			r.Delete("/", s.handleDeleteFolder)
			r.Post("/share", s.handleShareFolder)
			r.Post("/access-requests", s.handleRequestFolderAccess)
		})

		r.Post("/files", s.handleUpload)
		r.Route("/files/{id}", func(r chi.Router) {
			r.Post("/rename", s.handleRenameFile)
			r.Post("/move", s.handleMoveFile)
			r.Delete("/", s.handleDeleteFile)
			r.Get("/download", s.handleDownload)
			r.Get("/view", s.handleView)
			r.Put("/content", s.handleEditContent)
			r.Post("/share", s.handleShareFile)
			r.Post("/access-requests", s.handleRequestFileAccess)
		})

		r.Get("/access-requests/pending", s.handlePendingRequests)
		r.Post("/access-requests/{id}/approve", s.handleApproveRequest)
		r.Post("/access-requests/{id}/reject", s.handleRejectRequest)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/users", s.handleAdminListUsers)
			r.Post("/users", s.handleAdminCreateUser)
			r.Get("/users/{id}/content", s.handleAdminUserContent)
		})
	})

	// Share links also work anonymously.
	r.With(s.optionalAuth).Get("/s/{token}", s.handleShareLink)

	return r
}

func (s *HTTPServer) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:              s.address,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
