package types

import (
	"fmt"
	"net/http"
	"time"
)

type ErrorCode string

func (e ErrorCode) String() string {
	return string(e)
}

const (
	// InternalServiceError is the error code for internal service errors
	InternalServiceError ErrorCode = "INTERNAL_SERVICE_ERROR"
	// ValidationError covers malformed amounts, durations and rates
	ValidationError ErrorCode = "VALIDATION_ERROR"
	// Unauthorized is returned when a caller other than the vault
	// authority invokes an admin operation
	Unauthorized ErrorCode = "UNAUTHORIZED"
	// StakeStillLocked is returned when unstake is attempted before the
	// lock window has elapsed; RemainingSeconds carries the wait time
	StakeStillLocked ErrorCode = "STAKE_STILL_LOCKED"
	// NoActiveStake is returned when unstake/claim target an empty record
	NoActiveStake ErrorCode = "NO_ACTIVE_STAKE"
	// NothingToClaim is returned when the total payable reward is zero
	NothingToClaim ErrorCode = "NOTHING_TO_CLAIM"
	// NothingToWithdraw is returned when the vault holds no surplus
	NothingToWithdraw ErrorCode = "NOTHING_TO_WITHDRAW"
	// VaultAlreadyInitialized is returned on duplicate initialization
	VaultAlreadyInitialized ErrorCode = "VAULT_ALREADY_INITIALIZED"
	// VaultNotInitialized is returned when an operation reaches a vault
	// that was never initialized
	VaultNotInitialized ErrorCode = "VAULT_NOT_INITIALIZED"
	// VaultPaused is returned when a stake is attempted while paused
	VaultPaused ErrorCode = "VAULT_PAUSED"
	// CustodyShortfall signals that the custody balance cannot honor a
	// payout the accounting says is owed. This must never happen while
	// the ledger invariants hold and is surfaced as a critical fault.
	CustodyShortfall ErrorCode = "CUSTODY_SHORTFALL"
)

// Error wraps an underlying error with the ledger error code and the HTTP
// status code the API layer should respond with.
type Error struct {
	Err        error
	StatusCode int
	ErrorCode  ErrorCode
	// RemainingSeconds is only set on StakeStillLocked errors
	RemainingSeconds uint64
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.ErrorCode.String()
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(statusCode int, errorCode ErrorCode, err error) *Error {
	return &Error{
		Err:        err,
		StatusCode: statusCode,
		ErrorCode:  errorCode,
	}
}

func NewErrorWithMsg(statusCode int, errorCode ErrorCode, msg string) *Error {
	return NewError(statusCode, errorCode, fmt.Errorf("%s", msg))
}

func NewValidationError(msg string) *Error {
	return NewErrorWithMsg(http.StatusBadRequest, ValidationError, msg)
}

func NewInternalServiceError(err error) *Error {
	return &Error{
		Err:        err,
		StatusCode: http.StatusInternalServerError,
		ErrorCode:  InternalServiceError,
	}
}

// NewStillLockedError reports how long the caller has to wait before the
// stake unlocks, rounded up to whole seconds.
func NewStillLockedError(remaining time.Duration) *Error {
	secs := uint64((remaining + time.Second - 1) / time.Second)
	return &Error{
		Err:              fmt.Errorf("stake is still locked for %ds", secs),
		StatusCode:       http.StatusForbidden,
		ErrorCode:        StakeStillLocked,
		RemainingSeconds: secs,
	}
}
