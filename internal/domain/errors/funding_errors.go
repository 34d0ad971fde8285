package errors

import (
	"errors"
	"fmt"
)

// Payment and funding errors
var (
	// Funding selection
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrStaleFundingReference = errors.New("stale funding reference")
	ErrUnauthorizedOperation = errors.New("unauthorized operation")
	ErrInvalidArgument       = errors.New("invalid argument")

	// Read paths
	ErrObjectNotFound = errors.New("object not found")
	ErrSchemaMismatch = errors.New("schema mismatch")
	ErrQueryFailed    = errors.New("query failed")

	// Submission
	ErrSubmission          = errors.New("submission failed")
	ErrUnitAlreadyConsumed = errors.New("funding unit already consumed")
	ErrNetworkFailure      = errors.New("network failure")
	ErrOnChainAbort        = errors.New("transaction aborted on-chain")
)

// SubmissionKind distinguishes why a submission failed.
type SubmissionKind int

const (
	NetworkFailure SubmissionKind = iota
	UnitAlreadyConsumed
	OnChainAbort
)

func (k SubmissionKind) String() string {
	switch k {
	case UnitAlreadyConsumed:
		return "unit_already_consumed"
	case OnChainAbort:
		return "on_chain_abort"
	default:
		return "network_failure"
	}
}

// Code returns the API error code for the kind.
func (k SubmissionKind) Code() string {
	switch k {
	case UnitAlreadyConsumed:
		return "UNIT_ALREADY_CONSUMED"
	case OnChainAbort:
		return "ON_CHAIN_ABORT"
	default:
		return "NETWORK_FAILURE"
	}
}

func (k SubmissionKind) sentinel() error {
	switch k {
	case UnitAlreadyConsumed:
		return ErrUnitAlreadyConsumed
	case OnChainAbort:
		return ErrOnChainAbort
	default:
		return ErrNetworkFailure
	}
}

// SubmissionError is returned by every failed submission. Cause is never swallowed.
type SubmissionError struct {
	Kind   SubmissionKind
	Digest string // set when the network assigned a digest before failing
	Cause  error
}

func (e *SubmissionError) Error() string {
	msg := fmt.Sprintf("submission failed (%s)", e.Kind)
	if e.Digest != "" {
		msg += " tx " + e.Digest
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SubmissionError) Unwrap() error {
	return e.Cause
}

// Is matches ErrSubmission and the sentinel of the error's kind.
func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmission || target == e.Kind.sentinel()
}

// NewSubmissionError creates a submission error of the given kind.
func NewSubmissionError(kind SubmissionKind, cause error) *SubmissionError {
	return &SubmissionError{Kind: kind, Cause: cause}
}

// InsufficientFundsError creates an insufficient funds error
func InsufficientFundsError(owner string, required uint64) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientFunds,
		Code:    "INSUFFICIENT_FUNDS",
		Message: fmt.Sprintf("no funding unit with balance >= %d", required),
		Details: map[string]interface{}{
			"owner":    owner,
			"required": required,
		},
	}
}

// StaleFundingReferenceError reports a pre-supplied unit that no longer qualifies.
func StaleFundingReferenceError(unitID, reason string) *DomainError {
	return &DomainError{
		Err:     ErrStaleFundingReference,
		Code:    "STALE_FUNDING_REFERENCE",
		Message: fmt.Sprintf("funding unit %s is no longer valid: %s", unitID, reason),
		Details: map[string]interface{}{
			"funding_unit_id": unitID,
			"reason":          reason,
		},
	}
}

// UnauthorizedOperationError creates an unauthorized operation error
func UnauthorizedOperationError(operation string) *DomainError {
	return &DomainError{
		Err:     ErrUnauthorizedOperation,
		Code:    "UNAUTHORIZED_OPERATION",
		Message: fmt.Sprintf("%s requires a configured administrator identity", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// InvalidArgumentError creates an invalid argument error
func InvalidArgumentError(field, message string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidArgument,
		Code:    "INVALID_ARGUMENT",
		Message: message,
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// ObjectNotFoundError creates an object not found error
func ObjectNotFoundError(objectID string, cause error) *DomainError {
	err := ErrObjectNotFound
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrObjectNotFound, cause)
	}
	return &DomainError{
		Err:     err,
		Code:    "OBJECT_NOT_FOUND",
		Message: fmt.Sprintf("object %s not found or has no content", objectID),
		Details: map[string]interface{}{
			"object_id": objectID,
		},
	}
}

// SchemaMismatchError reports a missing or unparseable field on an on-chain object.
func SchemaMismatchError(objectID, field string) *DomainError {
	return &DomainError{
		Err:     ErrSchemaMismatch,
		Code:    "SCHEMA_MISMATCH",
		Message: fmt.Sprintf("object %s: field %q missing or malformed", objectID, field),
		Details: map[string]interface{}{
			"object_id": objectID,
			"field":     field,
		},
	}
}

// QueryFailedError wraps a read-path failure. Read paths are idempotent and safe to retry.
func QueryFailedError(query string, cause error) *DomainError {
	return &DomainError{
		Err:       fmt.Errorf("%w: %w", ErrQueryFailed, cause),
		Code:      "QUERY_FAILED",
		Message:   fmt.Sprintf("%s query failed: %v", query, cause),
		Retryable: true,
		Details: map[string]interface{}{
			"query": query,
		},
	}
}

// Outcome tells a caller what is known about funds after a failed operation.
type Outcome int

const (
	// OutcomeFundsNotMoved is safe to retry immediately.
	OutcomeFundsNotMoved Outcome = iota
	// OutcomeFundsStatusUnknown requires re-querying state before any retry.
	OutcomeFundsStatusUnknown
	// OutcomeRejectedOnChain is safe to retry with corrected input.
	OutcomeRejectedOnChain
)

func (o Outcome) String() string {
	switch o {
	case OutcomeFundsNotMoved:
		return "funds_not_moved"
	case OutcomeRejectedOnChain:
		return "rejected_on_chain"
	default:
		return "funds_status_unknown"
	}
}

// ClassifyOutcome maps an error from a value-moving operation to an Outcome.
// Unrecognized errors are treated as unknown.
func ClassifyOutcome(err error) Outcome {
	switch {
	case errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrUnauthorizedOperation),
		errors.Is(err, ErrStaleFundingReference),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrUnitAlreadyConsumed):
		return OutcomeFundsNotMoved
	case errors.Is(err, ErrOnChainAbort):
		return OutcomeRejectedOnChain
	default:
		return OutcomeFundsStatusUnknown
	}
}

// IsInsufficientFunds checks if error is insufficient funds
func IsInsufficientFunds(err error) bool {
	return errors.Is(err, ErrInsufficientFunds)
}

// IsUnitAlreadyConsumed checks if a submission lost a race for its funding unit
func IsUnitAlreadyConsumed(err error) bool {
	return errors.Is(err, ErrUnitAlreadyConsumed)
}

// IsSubmissionError checks if error came from the transaction submitter
func IsSubmissionError(err error) bool {
	return errors.Is(err, ErrSubmission)
}
