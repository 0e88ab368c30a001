// Package ledgererr defines the error taxonomy returned by the ledger core.
package ledgererr

import (
	"errors"
	"fmt"
)

// Kind groups error codes by how a caller should react.
type Kind int

const (
	// KindUnknown is returned for errors that did not come from the ledger core.
	KindUnknown Kind = iota
	// KindValidation errors are caller-correctable and reported verbatim.
	KindValidation
	// KindState errors are business-rule violations given the current state.
	KindState
	// KindConcurrency errors are retryable with backoff.
	KindConcurrency
	// KindIntegrity errors indicate a bug elsewhere and must surface loudly.
	KindIntegrity
	// KindNotFound errors name an entity that does not exist.
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindState:
		return "state"
	case KindConcurrency:
		return "concurrency"
	case KindIntegrity:
		return "integrity"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Code identifies a single failure condition.
type Code string

const (
	UnbalancedEntry      Code = "UnbalancedEntry"
	UnknownAccount       Code = "UnknownAccount"
	InactiveAccount      Code = "InactiveAccount"
	InvalidAmount        Code = "InvalidAmount"
	DuplicateCode        Code = "DuplicateCode"
	InvalidParent        Code = "InvalidParent"
	InvalidAccount       Code = "InvalidAccount"
	InvalidPeriod        Code = "InvalidPeriod"
	PeriodNotContiguous  Code = "PeriodNotContiguous"
	InvalidEquityAccount Code = "InvalidEquityAccount"
	InvalidAsset         Code = "InvalidAsset"
	InvalidEntry         Code = "InvalidEntry"

	ClosedPeriod                 Code = "ClosedPeriod"
	AlreadyReversed              Code = "AlreadyReversed"
	NotPosted                    Code = "NotPosted"
	AssetFullyDepreciated        Code = "AssetFullyDepreciated"
	AccountInUse                 Code = "AccountInUse"
	PeriodHasUnpostedAdjustments Code = "PeriodHasUnpostedAdjustments"
	PeriodOutOfOrder             Code = "PeriodOutOfOrder"
	EntryNotDraft                Code = "EntryNotDraft"

	LockTimeout       Code = "LockTimeout"
	ConflictingUpdate Code = "ConflictingUpdate"

	UnbalancedLedger Code = "UnbalancedLedger"

	EntryNotFound  Code = "EntryNotFound"
	PeriodNotFound Code = "PeriodNotFound"
	AssetNotFound  Code = "AssetNotFound"
)

var kinds = map[Code]Kind{
	UnbalancedEntry:      KindValidation,
	UnknownAccount:       KindValidation,
	InactiveAccount:      KindValidation,
	InvalidAmount:        KindValidation,
	DuplicateCode:        KindValidation,
	InvalidParent:        KindValidation,
	InvalidAccount:       KindValidation,
	InvalidPeriod:        KindValidation,
	PeriodNotContiguous:  KindValidation,
	InvalidEquityAccount: KindValidation,
	InvalidAsset:         KindValidation,
	InvalidEntry:         KindValidation,

	ClosedPeriod:                 KindState,
	AlreadyReversed:              KindState,
	NotPosted:                    KindState,
	AssetFullyDepreciated:        KindState,
	AccountInUse:                 KindState,
	PeriodHasUnpostedAdjustments: KindState,
	PeriodOutOfOrder:             KindState,
	EntryNotDraft:                KindState,

	LockTimeout:       KindConcurrency,
	ConflictingUpdate: KindConcurrency,

	UnbalancedLedger: KindIntegrity,

	EntryNotFound:  KindNotFound,
	PeriodNotFound: KindNotFound,
	AssetNotFound:  KindNotFound,
}

// Error is a ledger failure with a stable code and a human message.
type Error struct {
	Code    Code
	Message string
}

// New returns an Error with a formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind returns the category of the error's code.
func (e *Error) Kind() Kind {
	return kinds[e.Code]
}

// Is matches any *Error with the same code, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrUnbalancedEntry              = &Error{Code: UnbalancedEntry}
	ErrUnknownAccount               = &Error{Code: UnknownAccount}
	ErrInactiveAccount              = &Error{Code: InactiveAccount}
	ErrInvalidAmount                = &Error{Code: InvalidAmount}
	ErrDuplicateCode                = &Error{Code: DuplicateCode}
	ErrInvalidParent                = &Error{Code: InvalidParent}
	ErrInvalidAccount               = &Error{Code: InvalidAccount}
	ErrInvalidPeriod                = &Error{Code: InvalidPeriod}
	ErrPeriodNotContiguous          = &Error{Code: PeriodNotContiguous}
	ErrInvalidEquityAccount         = &Error{Code: InvalidEquityAccount}
	ErrInvalidAsset                 = &Error{Code: InvalidAsset}
	ErrInvalidEntry                 = &Error{Code: InvalidEntry}
	ErrClosedPeriod                 = &Error{Code: ClosedPeriod}
	ErrAlreadyReversed              = &Error{Code: AlreadyReversed}
	ErrNotPosted                    = &Error{Code: NotPosted}
	ErrAssetFullyDepreciated        = &Error{Code: AssetFullyDepreciated}
	ErrAccountInUse                 = &Error{Code: AccountInUse}
	ErrPeriodHasUnpostedAdjustments = &Error{Code: PeriodHasUnpostedAdjustments}
	ErrPeriodOutOfOrder             = &Error{Code: PeriodOutOfOrder}
	ErrEntryNotDraft                = &Error{Code: EntryNotDraft}
	ErrLockTimeout                  = &Error{Code: LockTimeout}
	ErrConflictingUpdate            = &Error{Code: ConflictingUpdate}
	ErrUnbalancedLedger             = &Error{Code: UnbalancedLedger}
	ErrEntryNotFound                = &Error{Code: EntryNotFound}
	ErrPeriodNotFound               = &Error{Code: PeriodNotFound}
	ErrAssetNotFound                = &Error{Code: AssetNotFound}
)

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindUnknown
}

// CodeOf returns the Code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Retryable reports whether the caller should retry with backoff.
func Retryable(err error) bool {
	return KindOf(err) == KindConcurrency
}
