package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/auth"
	sc "github.com/akarpovs/cryptodrive/internal/server/config"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/quota"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// UserSummary is one row of the admin user listing.
type UserSummary struct {
	User  *models.User
	Usage int64
	Limit int64
}

// UserContent is everything one user owns, for the admin drill-down.
type UserContent struct {
	User    *models.User
	Folders []*models.Folder
	Files   []*models.File
}

// AdminService is the superuser-only surface: provisioning users and
// inspecting any user's holdings.
type AdminService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	quota       *quota.Tracker
	config      *sc.Config
	logger      logging.Logger
}

func NewAdminService(db *sql.DB, rm repomanager.RepositoryManager, quota *quota.Tracker, config *sc.Config, logger logging.Logger) *AdminService {
	return &AdminService{
		db:          db,
		repomanager: rm,
		quota:       quota,
		config:      config,
		logger:      logger.With("module", "admin"),
	}
}

func (s *AdminService) requireSuperuser(actor *models.User) error {
	if actor == nil || !actor.IsSuperuser {
		return common.ErrPermissionDenied
	}
	return nil
}

// CreateUser provisions a user and mints their first access token.
func (s *AdminService) CreateUser(ctx context.Context, actor *models.User, username string, superuser bool) (*models.User, string, error) {
	if err := s.requireSuperuser(actor); err != nil {
		return nil, "", err
	}
	if username == "" {
		return nil, "", common.ErrInvalidName
	}

	user, err := s.repomanager.Users(s.db).Create(ctx, &models.User{
		Username:    username,
		IsSuperuser: superuser,
	})
	if err != nil {
		return nil, "", err
	}

	token, err := auth.GenerateToken(user, []byte(s.config.SecretKey), s.tokenValidity())
	if err != nil {
		return nil, "", err
	}

	s.logger.Info(ctx, "user created", "user_id", user.ID, "username", user.Username, "superuser", superuser)
	return user, token, nil
}

// ListUsers returns every user with their current usage and quota.
func (s *AdminService) ListUsers(ctx context.Context, actor *models.User) ([]*UserSummary, error) {
	if err := s.requireSuperuser(actor); err != nil {
		return nil, err
	}

	users, err := s.repomanager.Users(s.db).List(ctx)
	if err != nil {
		return nil, err
	}

	summaries := make([]*UserSummary, 0, len(users))
	for _, u := range users {
		usage, err := s.quota.Usage(ctx, s.db, u.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &UserSummary{User: u, Usage: usage, Limit: s.quota.Limit()})
	}
	return summaries, nil
}

// ListUserContent returns all folders and files owned by userID.
func (s *AdminService) ListUserContent(ctx context.Context, actor *models.User, userID string) (*UserContent, error) {
	if err := s.requireSuperuser(actor); err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	folders, err := s.repomanager.Folders(s.db).ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	files, err := s.repomanager.Files(s.db).ListByOwner(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &UserContent{User: user, Folders: folders, Files: files}, nil
}

func (s *AdminService) tokenValidity() time.Duration {
	if s.config.AccessTokenValidityDuration > 0 {
		return s.config.AccessTokenValidityDuration
	}
	return 30 * time.Minute
}
