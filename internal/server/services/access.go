package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/logging"
	"github.com/akarpovs/cryptodrive/internal/server/access"
	"github.com/akarpovs/cryptodrive/internal/server/models"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/accessrequests"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// RequestOutcome tells the requester what happened to their submission.
type RequestOutcome string

const (
	OutcomeCreated          RequestOutcome = "created"
	OutcomeAlreadyHasAccess RequestOutcome = "already_has_access"
	OutcomeAlreadyPending   RequestOutcome = "already_pending"
)

// AccessService runs the request/approve/reject workflow that turns "ask"
// visibility into read grants.
type AccessService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	resolver    *access.Resolver
	notifier    Notifier
	logger      logging.Logger
}

func NewAccessService(db *sql.DB, rm repomanager.RepositoryManager, resolver *access.Resolver, notifier Notifier, logger logging.Logger) *AccessService {
	return &AccessService{
		db:          db,
		repomanager: rm,
		resolver:    resolver,
		notifier:    notifier,
		logger:      logger.With("module", "access"),
	}
}

func (s *AccessService) loadTarget(ctx context.Context, kind models.TargetKind, id string) (models.Target, error) {
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

// loadRequestTarget resolves a request's file-or-folder reference.
func (s *AccessService) loadRequestTarget(ctx context.Context, req *models.AccessRequest) (models.Target, error) {
	if req.FileID != nil {
		return s.loadTarget(ctx, models.KindFile, *req.FileID)
	}
	if req.FolderID != nil {
		return s.loadTarget(ctx, models.KindFolder, *req.FolderID)
	}
	return models.Target{}, common.ErrorNotFound
}

// Request submits an access request for a target the actor can see exists
// but cannot read. A target the actor already reads short-circuits to
// OutcomeAlreadyHasAccess; an open request stays open; a rejected request
// reopens in place so the history keeps a single row per (user, target).
func (s *AccessService) Request(ctx context.Context, actor *models.User, kind models.TargetKind, targetID string) (RequestOutcome, error) {
	target, err := s.loadTarget(ctx, kind, targetID)
	if err != nil {
		return "", err
	}

	lvl, err := s.resolver.Resolve(ctx, actor, target)
	if err != nil {
		return "", err
	}
	if lvl.AtLeast(access.LevelRead) {
		return OutcomeAlreadyHasAccess, nil
	}
	// A private target with no grant stays invisible; only "ask" invites
	// requests.
	if target.Visibility() != models.VisibilityAsk {
		return "", common.ErrorNotFound
	}

	existing, err := s.repomanager.AccessRequests(s.db).GetForTarget(ctx, actor.ID, target)
	switch {
	case err == nil:
		switch existing.Status {
		case models.RequestPending:
			return OutcomeAlreadyPending, nil
		case models.RequestRejected:
			if err := s.repomanager.AccessRequests(s.db).Reopen(ctx, existing.ID); err != nil {
				return "", err
			}
			s.notifyOwner(ctx, EventAccessRequested, existing.ID, actor, target)
			return OutcomeCreated, nil
		default:
			// Approved but still unreadable means the grant was revoked;
			// reopening lets the owner decide again.
			if err := s.repomanager.AccessRequests(s.db).Reopen(ctx, existing.ID); err != nil {
				return "", err
			}
			s.notifyOwner(ctx, EventAccessRequested, existing.ID, actor, target)
			return OutcomeCreated, nil
		}
	case !errors.Is(err, common.ErrorNotFound):
		return "", err
	}

	created, err := s.repomanager.AccessRequests(s.db).CreatePending(ctx, actor.ID, target)
	if err != nil {
		return "", err
	}
	if !created {
		// Lost a race with a concurrent submission of the same request.
		return OutcomeAlreadyPending, nil
	}
	s.notifyOwner(ctx, EventAccessRequested, "", actor, target)
	return OutcomeCreated, nil
}

// requireRequestOwner loads a request whose target the actor owns. Anyone
// else gets ErrorNotFound, so request ids cannot be probed.
func (s *AccessService) requireRequestOwner(ctx context.Context, actor *models.User, requestID string) (*models.AccessRequest, models.Target, error) {
	req, err := s.repomanager.AccessRequests(s.db).GetByID(ctx, requestID)
	if err != nil {
		return nil, models.Target{}, err
	}
	target, err := s.loadRequestTarget(ctx, req)
	if err != nil {
		return nil, models.Target{}, err
	}
	lvl, err := s.resolver.Resolve(ctx, actor, target)
	if err != nil {
		return nil, models.Target{}, err
	}
	if !lvl.AtLeast(access.LevelOwner) {
		return nil, models.Target{}, common.ErrorNotFound
	}
	return req, target, nil
}

// Approve moves a pending request to approved and grants read in the same
// transaction. Approving an already-approved request is a no-op that still
// makes sure the grant exists; a rejected request must be resubmitted by
// the requester first.
func (s *AccessService) Approve(ctx context.Context, actor *models.User, requestID string) error {
	req, target, err := s.requireRequestOwner(ctx, actor, requestID)
	if err != nil {
		return err
	}

	switch req.Status {
	case models.RequestApproved:
		return s.upsertReadGrant(ctx, s.db, req.UserID, target)
	case models.RequestRejected:
		return common.ErrRequestClosed
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.AccessRequests(tx).SetStatus(ctx, req.ID, models.RequestApproved); err != nil {
			return err
		}
		return s.upsertReadGrant(ctx, tx, req.UserID, target)
	})
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "access request approved", "request_id", req.ID, "user_id", req.UserID)
	s.notifier.Notify(ctx, Event{
		Type:        EventRequestApproved,
		RequestID:   req.ID,
		RequesterID: req.UserID,
		OwnerID:     target.OwnerID(),
		TargetKind:  string(target.Kind()),
		TargetName:  target.Name(),
	})
	return nil
}

// Reject moves a pending request to rejected. Rejecting twice is a no-op;
// rejecting an approved request is refused, revoke the grant instead.
func (s *AccessService) Reject(ctx context.Context, actor *models.User, requestID string) error {
	req, target, err := s.requireRequestOwner(ctx, actor, requestID)
	if err != nil {
		return err
	}

	switch req.Status {
	case models.RequestRejected:
		return nil
	case models.RequestApproved:
		return common.ErrRequestClosed
	}

	if err := s.repomanager.AccessRequests(s.db).SetStatus(ctx, req.ID, models.RequestRejected); err != nil {
		return err
	}

	s.logger.Info(ctx, "access request rejected", "request_id", req.ID, "user_id", req.UserID)
	s.notifier.Notify(ctx, Event{
		Type:        EventRequestRejected,
		RequestID:   req.ID,
		RequesterID: req.UserID,
		OwnerID:     target.OwnerID(),
		TargetKind:  string(target.Kind()),
		TargetName:  target.Name(),
	})
	return nil
}

// Pending lists the open requests against the actor's items.
func (s *AccessService) Pending(ctx context.Context, actor *models.User) ([]*accessrequests.PendingRequest, error) {
	return s.repomanager.AccessRequests(s.db).ListPendingForOwner(ctx, actor.ID)
}

func (s *AccessService) upsertReadGrant(ctx context.Context, db dbx.DBTX, userID string, target models.Target) error {
	perm := &models.Permission{UserID: userID, AccessLevel: models.AccessRead}
	id := target.ID()
	if target.Kind() == models.KindFile {
		perm.FileID = &id
	} else {
		perm.FolderID = &id
	}
	return s.repomanager.Permissions(db).Upsert(ctx, perm)
}

func (s *AccessService) notifyOwner(ctx context.Context, eventType, requestID string, requester *models.User, target models.Target) {
	s.notifier.Notify(ctx, Event{
		Type:        eventType,
		RequestID:   requestID,
		RequesterID: requester.ID,
		OwnerID:     target.OwnerID(),
		TargetKind:  string(target.Kind()),
		TargetName:  target.Name(),
	})
}
