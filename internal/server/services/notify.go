package services

import (
	"context"

	"github.com/akarpovs/cryptodrive/internal/logging"
)

// Event describes an access-request transition worth telling a user about.
type Event struct {
	Type        string
	RequestID   string
	RequesterID string
	OwnerID     string
	TargetKind  string
	TargetName  string
}

const (
	EventAccessRequested = "access_requested"
	EventRequestApproved = "request_approved"
	EventRequestRejected = "request_rejected"
)

// Notifier delivers events to interested users. Implementations must not
// block the calling request; delivery is best effort and failures never
// affect the triggering operation.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// LogNotifier writes events to the structured log. It stands in until a
// real channel (email, webhooks) is wired up.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(logger logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("module", "notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, event Event) {
	n.logger.Info(ctx, "notification",
		"type", event.Type,
		"request_id", event.RequestID,
		"requester_id", event.RequesterID,
		"owner_id", event.OwnerID,
		"target_kind", event.TargetKind,
		"target_name", event.TargetName,
	)
}
