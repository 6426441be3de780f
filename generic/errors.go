/*
errors.go - Centralized error types for the payroll engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Rejections are deterministic validation failures: they are returned
  synchronously, never retried, and leave prior state untouched.

ERROR CATEGORIES:
  1. Configuration errors - No rate can be resolved (admin must fix config)
  2. Access errors - Employee may not log this job type
  3. Quantity errors - Missing or non-positive hours/km/amount
  4. Reference errors - Unknown employee, job type or rate key
  5. Store errors - Missing entries, forbidden edits, idempotency

USAGE:
  Callers match on sentinels and extract details with errors.As:

    var cfgErr *generic.ConfigurationError
    if errors.As(err, &cfgErr) {
        slog.Error("rate missing", "employee", cfgErr.Employee, "rate", cfgErr.RateKey)
    }

SEE ALSO:
  - payroll/resolver.go: Raises ConfigurationError
  - payroll/calculator.go: Raises InvalidQuantityError
  - payroll/access.go: Raises AccessDeniedError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrConfiguration is returned when no rate can be resolved at any tier.
	// It is never defaulted to zero.
	ErrConfiguration = errors.New("rate configuration error")

	// ErrAccessDenied is returned when the employee is not on the job type's
	// allow-list.
	ErrAccessDenied = errors.New("access denied")

	// ErrInvalidQuantity is returned for a missing or non-positive quantity.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrInvalidReference is returned for unknown employees, job types or
	// rate keys.
	ErrInvalidReference = errors.New("invalid reference")

	// ErrEntryNotFound is returned when a referenced entry doesn't exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrEntryPaid is returned when editing or deleting a paid entry.
	ErrEntryPaid = errors.New("entry already paid")

	// ErrInvalidTransition is returned for a status change the lifecycle
	// does not allow (e.g. reverting a pending entry).
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrDuplicateIdempotencyKey is returned when an audit record with the
	// same idempotency key already exists.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrForbidden is returned when the caller's role may not perform the
	// operation.
	ErrForbidden = errors.New("forbidden")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ConfigurationError reports a rate that cannot be resolved.
type ConfigurationError struct {
	Employee EmployeeID
	RateKey  string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("no rate %q for employee %s: %s", e.RateKey, e.Employee, e.Reason)
	}
	return fmt.Sprintf("no rate %q for employee %s", e.RateKey, e.Employee)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// AccessDeniedError is raised before any rate lookup and names no rate.
type AccessDeniedError struct {
	Employee EmployeeID
	JobType  string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("employee %s may not log job type %s", e.Employee, e.JobType)
}

func (e *AccessDeniedError) Unwrap() error { return ErrAccessDenied }

// InvalidQuantityError reports which quantity field was rejected.
type InvalidQuantityError struct {
	JobType string
	Field   string // "hours", "km", "value"
	Reason  string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid %s for %s: %s", e.Field, e.JobType, e.Reason)
}

func (e *InvalidQuantityError) Unwrap() error { return ErrInvalidQuantity }

// InvalidReferenceError reports an identifier the engine does not know.
type InvalidReferenceError struct {
	Kind  string // "employee", "job_type", "rate_key", "entry"
	Value string
}

func (e *InvalidReferenceError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Value)
}

func (e *InvalidReferenceError) Unwrap() error { return ErrInvalidReference }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrAccessDenied) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInvalidReference) ||
		errors.Is(err, ErrEntryPaid) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrForbidden)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEntryNotFound)
}
