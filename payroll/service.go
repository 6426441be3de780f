package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/citypets/timesheet-engine/generic"
)

// =============================================================================
// ENTRY SERVICE - Entry lifecycle with transactional guarantees
// =============================================================================

type EntryService struct {
	Store  TxStore
	Engine *Engine
	Logger *slog.Logger
	Now    func() time.Time
}

func NewEntryService(store TxStore, logger *slog.Logger) *EntryService {
	return &EntryService{Store: store, Engine: NewEngine(), Logger: logger, Now: time.Now}
}

func (s *EntryService) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *EntryService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *EntryService) engine() *Engine {
	if s.Engine != nil {
		return s.Engine
	}
	return NewEngine()
}

// =============================================================================
// SUBMIT - gate, resolve, compute, persist as pending
// =============================================================================

// Submit prices a submission with the rates in effect now and stores it as
// pending. Config read, entry write and audit record share one transaction.
func (s *EntryService) Submit(ctx context.Context, who Identity, sub Submission) (*Entry, error) {
	if !who.CanActFor(sub.Employee) {
		return nil, fmt.Errorf("%s may not submit for %s: %w", who.Actor(), sub.Employee, generic.ErrForbidden)
	}

	var entry *Entry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		cfg, err := tx.LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		entry, err = s.insertPriced(ctx, tx, cfg, who, sub)
		return err
	})
	if err != nil {
		s.logRejection(err, sub)
		return nil, err
	}

	s.logger().Info("entry submitted",
		"entry", entry.ID, "employee", entry.Employee, "job_type", entry.Job,
		"work_date", entry.WorkDate.String(), "amount", entry.Amount.String())
	return entry, nil
}

// SubmitStay splits a multi-day pet-sitting stay with SplitStay and stores
// every segment as its own pending entry. All segments are priced against
// one config snapshot and persisted together or not at all.
func (s *EntryService) SubmitStay(ctx context.Context, who Identity, sub Submission) ([]*Entry, error) {
	if !who.CanActFor(sub.Employee) {
		return nil, fmt.Errorf("%s may not submit for %s: %w", who.Actor(), sub.Employee, generic.ErrForbidden)
	}
	if spec, ok := sub.Job.Spec(); !ok || spec.Kind != KindFixedDuration {
		return nil, &generic.InvalidQuantityError{JobType: string(sub.Job), Field: "hours", Reason: "only pet sitting can be submitted as a stay"}
	}

	segments := SplitStay(sub)
	entries := make([]*Entry, 0, len(segments))
	err := s.Store.WithTx(ctx, func(tx Store) error {
		cfg, err := tx.LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		for _, seg := range segments {
			entry, err := s.insertPriced(ctx, tx, cfg, who, seg)
			if err != nil {
				return fmt.Errorf("segment %s: %w", seg.Date, err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		s.logRejection(err, sub)
		return nil, err
	}

	s.logger().Info("stay submitted",
		"employee", sub.Employee, "job_type", sub.Job, "from", sub.Date.String(),
		"segments", len(entries), "hours", sub.Quantity.Hours.String())
	return entries, nil
}

// insertPriced evaluates sub against cfg and writes the pending entry with
// its audit record inside tx.
func (s *EntryService) insertPriced(ctx context.Context, tx Store, cfg RateConfig, who Identity, sub Submission) (*Entry, error) {
	comp, err := s.engine().Evaluate(cfg, sub)
	if err != nil {
		return nil, err
	}

	now := s.now()
	entry := &Entry{
		ID:          generic.EntryID(uuid.NewString()),
		Employee:    sub.Employee,
		Job:         sub.Job,
		WorkDate:    sub.Date,
		WeekStart:   sub.Date.WeekStart(),
		Pet:         sub.Pet,
		Hours:       sub.Quantity.Hours,
		Km:          sub.Quantity.Km,
		Value:       sub.Quantity.Value,
		Description: strings.TrimSpace(sub.Description),
		Status:      StatusPending,
		CreatedAt:   now,
		CreatedBy:   who.Actor(),
	}
	entry.Apply(comp)

	if err := tx.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert entry: %w", err)
	}
	err = generic.NewAuditTrail(tx).Record(ctx, generic.AuditEntry{
		Timestamp: now,
		ActorID:   who.Actor(),
		Action:    generic.AuditEntrySubmitted,
		EntryID:   entry.ID,
		Employee:  entry.Employee,
		ToStatus:  string(StatusPending),
		Payload: map[string]string{
			"job_type": string(entry.Job),
			"amount":   entry.Amount.String(),
		},
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Preview runs the same pipeline as Submit without persisting anything.
func (s *EntryService) Preview(ctx context.Context, who Identity, sub Submission) (Computation, error) {
	if !who.CanActFor(sub.Employee) {
		return Computation{}, generic.ErrForbidden
	}
	cfg, err := s.Store.LoadConfig(ctx)
	if err != nil {
		return Computation{}, fmt.Errorf("load config: %w", err)
	}
	comp, err := s.engine().Evaluate(cfg, sub)
	if err != nil {
		s.logRejection(err, sub)
		return Computation{}, err
	}
	return comp, nil
}

// =============================================================================
// EDIT / DELETE - only while pending
// =============================================================================

// Edit replaces a pending entry's inputs and recomputes its amount with the
// rates in effect now.
func (s *EntryService) Edit(ctx context.Context, who Identity, id generic.EntryID, sub Submission) (*Entry, error) {
	if err := requireAdmin(who); err != nil {
		return nil, err
	}

	var entry *Entry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if current.IsPaid() {
			return fmt.Errorf("edit %s: %w", id, generic.ErrEntryPaid)
		}
		cfg, err := tx.LoadConfig(ctx)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		comp, err := s.engine().Evaluate(cfg, sub)
		if err != nil {
			return err
		}

		entry = current.Clone()
		entry.Employee = sub.Employee
		entry.Job = sub.Job
		entry.WorkDate = sub.Date
		entry.WeekStart = sub.Date.WeekStart()
		entry.Pet = sub.Pet
		entry.Hours = sub.Quantity.Hours
		entry.Km = sub.Quantity.Km
		entry.Value = sub.Quantity.Value
		entry.Description = strings.TrimSpace(sub.Description)
		entry.Apply(comp)

		if err := tx.UpdateEntry(ctx, entry); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		return generic.NewAuditTrail(tx).Record(ctx, generic.AuditEntry{
			Timestamp:  s.now(),
			ActorID:    who.Actor(),
			Action:     generic.AuditEntryEdited,
			EntryID:    entry.ID,
			Employee:   entry.Employee,
			FromStatus: string(current.Status),
			ToStatus:   string(entry.Status),
			Payload: map[string]string{
				"old_amount": current.Amount.String(),
				"new_amount": entry.Amount.String(),
			},
		})
	})
	if err != nil {
		s.logRejection(err, sub)
		return nil, err
	}
	return entry, nil
}

// Delete removes a pending entry. The audit record outlives it.
func (s *EntryService) Delete(ctx context.Context, who Identity, id generic.EntryID) error {
	if err := requireAdmin(who); err != nil {
		return err
	}
	return s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		if current.IsPaid() {
			return fmt.Errorf("delete %s: %w", id, generic.ErrEntryPaid)
		}
		if err := tx.DeleteEntry(ctx, id); err != nil {
			return err
		}
		return generic.NewAuditTrail(tx).Record(ctx, generic.AuditEntry{
			Timestamp:  s.now(),
			ActorID:    who.Actor(),
			Action:     generic.AuditEntryDeleted,
			EntryID:    id,
			Employee:   current.Employee,
			FromStatus: string(current.Status),
			Payload:    map[string]string{"amount": current.Amount.String()},
		})
	})
}

// =============================================================================
// PAY / REVERT
// =============================================================================

// PayResult reports whether a pay request changed anything.
type PayResult struct {
	Entry   *Entry
	Changed bool // false: already paid, nothing recorded
}

// MarkPaid pays one entry. Paying a paid entry is a no-op that is reported
// through Changed=false; amount and original PaidAt stay untouched.
func (s *EntryService) MarkPaid(ctx context.Context, who Identity, id generic.EntryID) (PayResult, error) {
	if err := requireAdmin(who); err != nil {
		return PayResult{}, err
	}

	var result PayResult
	err := s.Store.WithTx(ctx, func(tx Store) error {
		entry, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		changed, err := s.pay(ctx, tx, who, entry)
		if err != nil {
			return err
		}
		result = PayResult{Entry: entry, Changed: changed}
		return nil
	})
	if err != nil {
		return PayResult{}, err
	}

	if result.Changed {
		s.logger().Info("entry paid", "entry", id, "employee", result.Entry.Employee,
			"amount", result.Entry.Amount.String(), "by", who.Actor())
	} else {
		s.logger().Info("entry already paid, nothing recorded", "entry", id,
			"paid_at", result.Entry.PaidAt, "by", who.Actor())
	}
	return result, nil
}

func (s *EntryService) pay(ctx context.Context, tx Store, who Identity, entry *Entry) (bool, error) {
	at := s.now()
	if !entry.Pay(at, who.Actor()) {
		return false, nil
	}
	if err := tx.UpdateEntry(ctx, entry); err != nil {
		return false, fmt.Errorf("update entry: %w", err)
	}
	err := generic.NewAuditTrail(tx).Record(ctx, generic.AuditEntry{
		Timestamp:      at,
		ActorID:        who.Actor(),
		Action:         generic.AuditEntryPaid,
		EntryID:        entry.ID,
		Employee:       entry.Employee,
		FromStatus:     string(StatusPending),
		ToStatus:       string(StatusPaid),
		IdempotencyKey: fmt.Sprintf("pay-%s-%s", entry.ID, at.Format(time.RFC3339Nano)),
		Payload:        map[string]string{"amount": entry.Amount.String()},
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// RangePayResult summarizes a bulk payment.
type RangePayResult struct {
	Paid        []*Entry
	AlreadyPaid int
	Total       generic.Amount
}

// MarkRangePaid pays every pending entry of employee with a work date in
// [from, to], in one transaction.
func (s *EntryService) MarkRangePaid(ctx context.Context, who Identity, employee generic.EmployeeID, from, to generic.TimePoint) (RangePayResult, error) {
	if err := requireAdmin(who); err != nil {
		return RangePayResult{}, err
	}
	if strings.TrimSpace(string(employee)) == "" {
		return RangePayResult{}, &generic.InvalidReferenceError{Kind: "employee", Value: string(employee)}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return RangePayResult{}, &generic.InvalidQuantityError{Field: "date range", Reason: "end before start"}
	}

	var result RangePayResult
	err := s.Store.WithTx(ctx, func(tx Store) error {
		entries, err := tx.ListEntries(ctx, EntryFilter{Employee: employee, From: from, To: to})
		if err != nil {
			return err
		}
		result = RangePayResult{Total: generic.Sum()}
		for _, e := range entries {
			changed, err := s.pay(ctx, tx, who, e)
			if err != nil {
				return err
			}
			if !changed {
				result.AlreadyPaid++
				continue
			}
			result.Paid = append(result.Paid, e)
			result.Total = result.Total.Add(generic.Money(e.Amount))
		}
		return nil
	})
	if err != nil {
		return RangePayResult{}, err
	}

	s.logger().Info("range paid", "employee", employee, "from", from.String(), "to", to.String(),
		"paid", len(result.Paid), "already_paid", result.AlreadyPaid, "total", result.Total.String())
	return result, nil
}

// RevertPayment moves a paid entry back to pending. This is the correction
// path; it needs a reason and is always audited.
func (s *EntryService) RevertPayment(ctx context.Context, who Identity, id generic.EntryID, reason string) (*Entry, error) {
	if err := requireAdmin(who); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("revert %s needs a reason: %w", id, generic.ErrInvalidTransition)
	}

	var entry *Entry
	err := s.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetEntry(ctx, id)
		if err != nil {
			return err
		}
		var paidAt string
		if current.PaidAt != nil {
			paidAt = current.PaidAt.Format(time.RFC3339Nano)
		}
		if err := current.Revert(); err != nil {
			return err
		}
		if err := tx.UpdateEntry(ctx, current); err != nil {
			return fmt.Errorf("update entry: %w", err)
		}
		entry = current
		return generic.NewAuditTrail(tx).Record(ctx, generic.AuditEntry{
			Timestamp:  s.now(),
			ActorID:    who.Actor(),
			Action:     generic.AuditEntryReverted,
			EntryID:    id,
			Employee:   current.Employee,
			FromStatus: string(StatusPaid),
			ToStatus:   string(StatusPending),
			Reason:     reason,
			Payload:    map[string]string{"previous_paid_at": paidAt},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger().Warn("payment reverted", "entry", id, "employee", entry.Employee, "by", who.Actor(), "reason", reason)
	return entry, nil
}

// =============================================================================
// READS
// =============================================================================

// Get returns one entry. Employees only see their own.
func (s *EntryService) Get(ctx context.Context, who Identity, id generic.EntryID) (*Entry, error) {
	e, err := s.Store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !who.CanActFor(e.Employee) {
		return nil, generic.ErrEntryNotFound
	}
	return e, nil
}

// List returns matching entries. Employees are pinned to their own.
func (s *EntryService) List(ctx context.Context, who Identity, filter EntryFilter) ([]*Entry, error) {
	if !who.IsAdmin() {
		filter.Employee = who.Employee
	}
	return s.Store.ListEntries(ctx, filter)
}

// History returns the audit trail of one entry.
func (s *EntryService) History(ctx context.Context, who Identity, id generic.EntryID) ([]generic.AuditEntry, error) {
	if err := requireAdmin(who); err != nil {
		return nil, err
	}
	return generic.NewAuditTrail(s.Store).History(ctx, id)
}

// =============================================================================
// LOGGING
// =============================================================================

func (s *EntryService) logRejection(err error, sub Submission) {
	log := s.logger().With("employee", sub.Employee, "job_type", sub.Job)
	var (
		refErr *generic.InvalidReferenceError
		cfgErr *generic.ConfigurationError
	)
	switch {
	case errors.As(err, &refErr):
		log.Error("unknown reference, config out of sync", "kind", refErr.Kind, "value", refErr.Value)
	case errors.As(err, &cfgErr):
		log.Error("rate cannot be resolved, administrator action required", "rate", cfgErr.RateKey)
	case errors.Is(err, generic.ErrAccessDenied):
		log.Warn("submission denied by access policy")
	case errors.Is(err, generic.ErrInvalidQuantity):
		log.Info("submission rejected", "error", err)
	case generic.IsClientError(err) || generic.IsNotFound(err):
		log.Info("request rejected", "error", err)
	default:
		log.Error("submission failed", "error", err)
	}
}
