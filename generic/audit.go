package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// AUDIT TRAIL - Idempotent writer on top of an AuditLog
// =============================================================================

// AuditTrail is the only writer of audit entries.
//
// INVARIANTS:
//   - Append-only: No Update, No Delete.
//   - An idempotency key is recorded at most once.
type AuditTrail struct {
	Log AuditLog
	Now func() time.Time
}

func NewAuditTrail(log AuditLog) *AuditTrail {
	return &AuditTrail{Log: log, Now: time.Now}
}

// Record fills in ID and Timestamp when missing and appends the entry.
// Fails with ErrDuplicateIdempotencyKey if the key was already used.
func (a *AuditTrail) Record(ctx context.Context, entry AuditEntry) error {
	if entry.IdempotencyKey != "" {
		exists, err := a.Log.AuditKeyExists(ctx, entry.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		now := time.Now
		if a.Now != nil {
			now = a.Now
		}
		entry.Timestamp = now().UTC()
	}
	return a.Log.AppendAudit(ctx, entry)
}

// History returns the audit entries of one timesheet entry, oldest first.
func (a *AuditTrail) History(ctx context.Context, id EntryID) ([]AuditEntry, error) {
	return a.Log.QueryAudit(ctx, AuditFilter{EntryID: &id})
}
