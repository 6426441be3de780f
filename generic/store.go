/*
store.go - Audit trail types shared by all stores

PURPOSE:
  Every payment-status change (pay, revert) and every entry edit is
  recorded as an AuditEntry. The audit log is APPEND-ONLY: entries are
  never updated or deleted, so "why is this entry pending again?" can
  always be answered.

IDEMPOTENCY:
  An AuditEntry may carry an idempotency key. Writing the same key twice
  fails with ErrDuplicateIdempotencyKey, which is how a double-clicked
  "pay" is kept from being double-recorded.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: audit_log table
  - store/memory/memory.go: in-memory slice

SEE ALSO:
  - audit.go: AuditTrail wrapper enforcing idempotency
  - payroll/entry.go: Lifecycle transitions producing audit entries
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// AUDIT LOG - Append-only, tracks who did what when
// =============================================================================

// AuditEntry records who did what when.
type AuditEntry struct {
	ID             string
	Timestamp      time.Time
	ActorID        string // who performed the action
	Action         AuditAction
	EntryID        EntryID
	Employee       EmployeeID
	FromStatus     string
	ToStatus       string
	Reason         string
	IdempotencyKey string
	Payload        map[string]string // action-specific data
}

type AuditAction string

const (
	AuditEntrySubmitted AuditAction = "entry_submitted"
	AuditEntryEdited    AuditAction = "entry_edited"
	AuditEntryDeleted   AuditAction = "entry_deleted"
	AuditEntryPaid      AuditAction = "entry_paid"
	AuditEntryReverted  AuditAction = "entry_reverted"
	AuditConfigChanged  AuditAction = "config_changed"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
	AuditKeyExists(ctx context.Context, idempotencyKey string) (bool, error)
}

type AuditFilter struct {
	EntryID  *EntryID
	Employee *EmployeeID
	ActorID  *string
	Actions  []AuditAction
	From     *time.Time
	To       *time.Time
}

// Matches reports whether e satisfies every set field of the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.EntryID != nil && e.EntryID != *f.EntryID {
		return false
	}
	if f.Employee != nil && e.Employee != *f.Employee {
		return false
	}
	if f.ActorID != nil && e.ActorID != *f.ActorID {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	return true
}
