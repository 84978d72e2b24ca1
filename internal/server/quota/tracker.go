// Package quota computes per-user storage usage and enforces the configured
// quota. Usage counts ciphertext bytes: the check runs after encryption and
// before any byte write or record insert.
package quota

import (
	"context"
	"fmt"

	"github.com/akarpovs/cryptodrive/internal/common"
	"github.com/akarpovs/cryptodrive/internal/dbx"
	"github.com/akarpovs/cryptodrive/internal/server/repositories/repomanager"
)

// Tracker checks prospective usage against each user's quota: a fixed
// fraction of the total server storage budget.
type Tracker struct {
	rm       repomanager.RepositoryManager
	total    int64
	fraction float64
}

func NewTracker(rm repomanager.RepositoryManager, totalServerStorage int64, userFraction float64) *Tracker {
	return &Tracker{rm: rm, total: totalServerStorage, fraction: userFraction}
}

// Limit is the per-user quota in bytes.
func (t *Tracker) Limit() int64 {
	return int64(float64(t.total) * t.fraction)
}

// Usage is the sum of ciphertext sizes over every file row the user owns.
func (t *Tracker) Usage(ctx context.Context, db dbx.DBTX, userID string) (int64, error) {
	usage, err := t.rm.Files(db).SumSizeByOwner(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("computing usage: %w", err)
	}
	return usage, nil
}

// Check fails with common.ErrQuotaExceeded when usage plus incoming would
// exceed the user's quota. incoming may be negative for edits that shrink a
// file. Callers serializing a write must hold the owner's row lock so the
// usage snapshot cannot go stale before commit.
func (t *Tracker) Check(ctx context.Context, db dbx.DBTX, userID string, incoming int64) error {
	usage, err := t.Usage(ctx, db, userID)
	if err != nil {
		return err
	}
	if usage+incoming > t.Limit() {
		return common.ErrQuotaExceeded
	}
	return nil
}
