package db

import "errors"

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func IsDuplicateKeyError(err error) bool {
	var target *DuplicateKeyError
	return errors.As(err, &target)
}

// NotFoundError is returned when a document does not exist or no longer
// matches the qualified state the caller expected.
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// InsufficientCustodyError is returned when a conditional balance debit
// fails because the custody balance cannot cover it. Hitting this on a
// payout means the ledger accounting invariant was violated.
type InsufficientCustodyError struct {
	Required uint64
	Message  string
}

func (e *InsufficientCustodyError) Error() string {
	return e.Message
}

func IsInsufficientCustodyError(err error) bool {
	var target *InsufficientCustodyError
	return errors.As(err, &target)
}
