// Package server initializes and runs the drive server: configuration,
// database and blob backends, the encryption codec, the service layer and
// the HTTP endpoint, with graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/akarpovs/cryptodrive/internal/cryptox"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/blob"
	"github.com/akarpovs/cryptodrive/internal/server/config"
	"github.com/akarpovs/cryptodrive/internal/server/httpapi"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
	"github.com/akarpovs/cryptodrive/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *httpapi.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	store, err := newBlobStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	codec, err := cryptox.New(cryptox.DeriveKey([]byte(c.EncryptionPassphrase), []byte(c.EncryptionSalt)))
	if err != nil {
		return nil, fmt.Errorf("codec init error: %w", err)
	}

	drive := services.NewDriveService(db, rm, store, codec, c, logger)
	access := services.NewAccessService(db, rm, drive.Resolver(), services.NewLogNotifier(logger), logger)
	share := services.NewShareService(db, rm, drive, logger)
	admin := services.NewAdminService(db, rm, drive.Quota(), c, logger)

	srv := httpapi.NewHTTPServer(c, logger, drive, access, share, admin)

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func newBlobStore(ctx context.Context, c *config.Config) (blob.Store, error) {
	switch c.BlobBackend {
	case "s3":
		return blob.NewS3Store(ctx, blob.S3Config{
			User:         c.S3RootUser,
			Password:     c.S3RootPassword,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
		})
	case "fs":
		return blob.NewFSStore(c.BlobFSRoot)
	case "memory":
		return blob.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", c.BlobBackend)
	}
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "closing db", "error", err)
	}
}
