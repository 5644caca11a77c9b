package transfer

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinels for errors.Is checks against the typed errors below.
var (
	ErrValidation     = errors.New("validation error")
	ErrConflict       = errors.New("conflict")
	ErrNotFound       = errors.New("not found")
	ErrAmbiguousMatch = errors.New("ambiguous match")
)

// ValidationError reports malformed input. Nothing was written.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a ValidationError for a field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ConflictError reports that a transaction was linked or locked by a
// concurrent operation between candidate generation and commit.
type ConflictError struct {
	TransactionIDs []string
	Reason         string
}

// NewConflictError creates a ConflictError for the given transactions.
func NewConflictError(reason string, ids ...string) *ConflictError {
	return &ConflictError{TransactionIDs: ids, Reason: reason}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on transactions [%s]: %s", strings.Join(e.TransactionIDs, ", "), e.Reason)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// NotFoundError reports a missing entity, or one whose terminal state is
// incompatible with the requested operation.
type NotFoundError struct {
	Resource string
	ID       string
	Reason   string
}

// NewNotFoundError creates a NotFoundError. Reason may be empty.
func NewNotFoundError(resource, id, reason string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id, Reason: reason}
}

func (e *NotFoundError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s %s not found: %s", e.Resource, e.ID, e.Reason)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousMatchError is a soft error: more than one equally good transaction
// was found for one side of a pending transfer. The entry is left alone.
type AmbiguousMatchError struct {
	PendingTransferID string
	Side              Side
	CandidateIDs      []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("pending transfer %s: %d equally good %s-side candidates [%s]",
		e.PendingTransferID, len(e.CandidateIDs), e.Side, strings.Join(e.CandidateIDs, ", "))
}

func (e *AmbiguousMatchError) Is(target error) bool { return target == ErrAmbiguousMatch }

// Side names one leg of a transfer.
type Side string

const (
	SideFrom Side = "from"
	SideTo   Side = "to"
)
