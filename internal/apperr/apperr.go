// Package apperr defines the typed failures raised by the ledger core.
//
// Every failure carries a Kind (used for HTTP mapping), a numeric Code and a
// stable Reason. errors.Is matches on Reason, so callers can compare against
// the sentinels below even when the message was customised.
package apperr

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindStateViolation
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindStateViolation:
		return "state_violation"
	case KindUnsupported:
		return "unsupported"
	}
	return "internal"
}

// HTTPStatus is the status the boundary layer should answer with.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindUnsupported:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindStateViolation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

type Error struct {
	Kind    Kind
	Code    int
	Reason  string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Reason.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Reason == t.Reason
}

// WithMessage returns a copy of e carrying msg.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// Wrap returns a copy of e with err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

func newErr(kind Kind, code int, reason, msg string) *Error {
	return &Error{Kind: kind, Code: code, Reason: reason, Message: msg}
}

var (
	ErrValidation            = newErr(KindValidation, 40001, "VALIDATION_ERROR", "invalid request")
	ErrUnsupported           = newErr(KindUnsupported, 40002, "UNSUPPORTED_TRANSACTION_TYPE", "unsupported transaction type")
	ErrInvalidInvitationRole = newErr(KindValidation, 40003, "INVALID_INVITATION_ROLE", "invitations cannot grant this role")

	ErrUnauthorized       = newErr(KindUnauthorized, 40101, "UNAUTHORIZED", "authentication required")
	ErrInvalidCredentials = newErr(KindUnauthorized, 40102, "INVALID_CREDENTIALS", "invalid username or password")

	ErrNoAccess     = newErr(KindForbidden, 40301, "NO_ACCESS", "no access to this ledger")
	ErrNoPermission = newErr(KindForbidden, 40302, "NO_PERMISSION", "insufficient ledger role")

	ErrNotFound            = newErr(KindNotFound, 40401, "NOT_FOUND", "resource not found")
	ErrLedgerNotFound      = newErr(KindNotFound, 40402, "LEDGER_NOT_FOUND", "ledger not found")
	ErrAccountNotFound     = newErr(KindNotFound, 40403, "ACCOUNT_NOT_FOUND", "account not found")
	ErrBudgetNotFound      = newErr(KindNotFound, 40404, "BUDGET_NOT_FOUND", "budget not found")
	ErrTransactionNotFound = newErr(KindNotFound, 40405, "TRANSACTION_NOT_FOUND", "transaction not found")
	ErrCategoryNotFound    = newErr(KindNotFound, 40406, "CATEGORY_NOT_FOUND", "category not found")
	ErrInvitationNotFound  = newErr(KindNotFound, 40407, "INVITATION_NOT_FOUND", "invitation not found")
	ErrMemberNotFound      = newErr(KindNotFound, 40408, "MEMBER_NOT_FOUND", "member not found")
	ErrUserNotFound        = newErr(KindNotFound, 40409, "USER_NOT_FOUND", "user not found")

	ErrConflict       = newErr(KindConflict, 40901, "CONFLICT", "conflicting update, retry")
	ErrAlreadyMember  = newErr(KindConflict, 40902, "ALREADY_MEMBER", "already a member of this ledger")
	ErrUsernameExists = newErr(KindConflict, 40903, "USERNAME_EXISTS", "username already exists")

	ErrAccountLocked                 = newErr(KindStateViolation, 42201, "ACCOUNT_LOCKED", "account locked, try again later")
	ErrCannotQuitOwner               = newErr(KindStateViolation, 42202, "CANNOT_QUIT_OWNER", "ledger owner cannot quit, transfer ownership first")
	ErrCannotRemoveOwner             = newErr(KindStateViolation, 42203, "CANNOT_REMOVE_OWNER", "ledger owner cannot be removed")
	ErrCannotModifyOwnerRole         = newErr(KindStateViolation, 42204, "CANNOT_MODIFY_OWNER_ROLE", "owner role cannot be changed")
	ErrCannotDeleteLedgerWithMembers = newErr(KindStateViolation, 42205, "CANNOT_DELETE_LEDGER_WITH_MEMBERS", "ledger still has other members")
	ErrInvitationDisabled            = newErr(KindStateViolation, 42206, "INVITATION_DISABLED", "invitation is disabled")
	ErrInvitationExpired             = newErr(KindStateViolation, 42207, "INVITATION_EXPIRED", "invitation has expired")
	ErrInvitationMaxUsesReached      = newErr(KindStateViolation, 42208, "INVITATION_MAX_USES_REACHED", "invitation has reached its use limit")
	ErrRefundExceedsRemaining        = newErr(KindStateViolation, 42209, "REFUND_EXCEEDS_REMAINING", "refund exceeds the refundable amount")
	ErrTransactionHasRefunds         = newErr(KindStateViolation, 42210, "TRANSACTION_HAS_REFUNDS", "cancel the transaction's refunds first")
	ErrInactiveAccount               = newErr(KindStateViolation, 42211, "ACCOUNT_INACTIVE", "account is inactive")
	ErrBudgetCanceled                = newErr(KindStateViolation, 42212, "BUDGET_CANCELED", "budget is canceled")

	ErrInternal = newErr(KindInternal, 50001, "INTERNAL", "internal error")
)

// Validation returns a validation failure with a specific message.
func Validation(msg string) *Error { return ErrValidation.WithMessage(msg) }

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of err; anything not raised by this package is Internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}
