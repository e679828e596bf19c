package errors

import (
	"errors"
	"fmt"
)

// Error kinds. Every sentinel below unwraps to exactly one of them, so callers
// can branch on the kind with errors.Is.
var (
	ErrAuthorization      = errors.New("authorization error")
	ErrStateConflict      = errors.New("state conflict")
	ErrNotFound           = errors.New("not found")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrDispatchFailure    = errors.New("dispatch failure")
)

var (
	ErrNotMember  = newKind(ErrAuthorization, "caller is not a member")
	ErrNotSelf    = newKind(ErrAuthorization, "operation is self-authorized")
	ErrNotInvited = newKind(ErrAuthorization, "caller is not invited")
	ErrNotOwner   = newKind(ErrAuthorization, "caller does not own the proxy")

	ErrAlreadyPresent        = newKind(ErrStateConflict, "address already present")
	ErrAlreadyMember         = newKind(ErrStateConflict, "address is already a member")
	ErrAlreadyInvitee        = newKind(ErrStateConflict, "address is already invited")
	ErrAlreadyApplied        = newKind(ErrStateConflict, "address already applied")
	ErrCannotCancelApplied   = newKind(ErrStateConflict, "cannot cancel invitation of an applicant")
	ErrAlreadyVoted          = newKind(ErrStateConflict, "member already voted this way")
	ErrActionAlreadyAllowed  = newKind(ErrStateConflict, "action is already allowed")
	ErrActionDisallowed      = newKind(ErrStateConflict, "action is disallowed")
	ErrActionNotAllowed      = newKind(ErrStateConflict, "action is not allowed")
	ErrAlreadyInitialized    = newKind(ErrStateConflict, "governance is already initialized")
	ErrNotInitialized        = newKind(ErrStateConflict, "governance is not initialized")
	ErrTransactionNotPending = newKind(ErrStateConflict, "transaction is not pending")
	ErrIdempotencyConflict   = newKind(ErrStateConflict, "idempotency key conflict")

	ErrNotPresent          = newKind(ErrNotFound, "address not present")
	ErrMemberNotFound      = newKind(ErrNotFound, "member not found")
	ErrNotInvitee          = newKind(ErrNotFound, "invitee not found")
	ErrNotApplicant        = newKind(ErrNotFound, "applicant not found")
	ErrTransactionNotFound = newKind(ErrNotFound, "transaction not found")
	ErrActionNotFound      = newKind(ErrNotFound, "action not found")

	ErrLastMember        = newKind(ErrInvariantViolation, "cannot remove the last member")
	ErrInvalidPercentage = newKind(ErrInvariantViolation, "required percentage must be within 0..100")
	ErrMismatchedBatch   = newKind(ErrInvariantViolation, "batch arrays differ in length")
	ErrEmptyBatch        = newKind(ErrInvariantViolation, "batch has no items")
	ErrInvalidRange      = newKind(ErrInvariantViolation, "invalid range")
	ErrProtectedAction   = newKind(ErrInvariantViolation, "action is protected")
	ErrEmptyMembers      = newKind(ErrInvariantViolation, "member set cannot be empty")
	ErrInvalidInput      = newKind(ErrInvariantViolation, "invalid input")

	ErrDispatchFailed      = newKind(ErrDispatchFailure, "outbound call failed")
	ErrUnknownDestination  = newKind(ErrDispatchFailure, "no subsystem at destination")
	ErrUnknownSelector     = newKind(ErrDispatchFailure, "selector not declared by destination")
	ErrInsufficientFunds   = newKind(ErrDispatchFailure, "insufficient funds")
	ErrMalformedCallParams = newKind(ErrDispatchFailure, "call payload does not match declared inputs")
)

type kindError struct {
	kind error
	msg  string
}

func newKind(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// DispatchError reports a failed outbound call together with whatever the
// destination returned before failing.
type DispatchError struct {
	Destination string
	Selector    string
	ReturnData  []byte
	Err         error
}

// NewDispatchError wraps err so that it always matches ErrDispatchFailure.
func NewDispatchError(destination string, selector string, returnData []byte, err error) *DispatchError {
	if err == nil {
		err = ErrDispatchFailed
	}
	if !errors.Is(err, ErrDispatchFailure) {
		err = fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}
	return &DispatchError{
		Destination: destination,
		Selector:    selector,
		ReturnData:  append([]byte(nil), returnData...),
		Err:         err,
	}
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch %s to %s: %v", e.Selector, e.Destination, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
