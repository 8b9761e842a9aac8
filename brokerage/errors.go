/*
errors.go - Error taxonomy for the brokerage write path

ERROR CATEGORIES:
  ValidationError  - input rejected before any transaction starts
  NotFoundError    - referenced policy/claim does not exist
  ResolutionError  - dimension lookup/insert failed; transaction rolled back
  StorageError     - begin/commit/query failure; transaction rolled back
  AuditWriteError  - business change committed, audit append failed

Each structured error unwraps to a sentinel so callers can use errors.Is.
Messages describe the failed operation and the dimension kind, never the
underlying table names; the driver error stays reachable through Unwrap
for logging.

AUDIT WRITE ERRORS:
  An AuditWriteError is never returned as the error of a business
  operation. It travels in WriteResult.Warning because the business state
  is already committed.
*/
package brokerage

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("not found")
	ErrResolution = errors.New("reference resolution failed")
	ErrStorage    = errors.New("storage failure")
	ErrAuditWrite = errors.New("audit write failed")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationError reports caller data that failed a required-field or
// format check.
type ValidationError struct {
	Message string
	Fields  map[string]string // field -> failed rule
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, rule string) *ValidationError {
	return &ValidationError{
		Message: "invalid input",
		Fields:  map[string]string{field: rule},
	}
}

// NotFoundError reports a missing primary entity.
type NotFoundError struct {
	Entity string // "policy", "claim"
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ResolutionError reports a failed resolve-or-create of a dimension.
type ResolutionError struct {
	Dimension Dimension
	Value     string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("could not resolve %s %q", e.Dimension, e.Value)
}

func (e *ResolutionError) Unwrap() []error { return []error{ErrResolution, e.Err} }

// StorageError reports a generic persistence failure for an operation.
type StorageError struct {
	Op  string // e.g. "create policy"
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + " failed"
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// AuditWriteError reports that a committed change has no audit entry.
type AuditWriteError struct {
	Action   AuditAction
	Entity   AuditEntity
	EntityID int64
	Err      error
}

func (e *AuditWriteError) Error() string {
	return fmt.Sprintf("%s %s %d committed but audit entry not written",
		e.Action, e.Entity, e.EntityID)
}

func (e *AuditWriteError) Unwrap() []error { return []error{ErrAuditWrite, e.Err} }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// storageErr wraps err as a StorageError unless it already belongs to the
// taxonomy, in which case it is returned unchanged.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrResolution) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
