// Package errors provides structured domain errors and their mapping to
// transport status codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInvalidCurrency Code = "INVALID_CURRENCY"

	// Lookup errors
	CodeNotFound          Code = "NOT_FOUND"
	CodeAccountNotFound   Code = "ACCOUNT_NOT_FOUND"
	CodeOperationNotFound Code = "OPERATION_NOT_FOUND"
	CodeOwnerNotFound     Code = "OWNER_NOT_FOUND"

	// Conflict errors
	CodeAccountAlreadyExists   Code = "ACCOUNT_ALREADY_EXISTS"
	CodeOwnerAlreadyHasAccount Code = "OWNER_ALREADY_HAS_ACCOUNT"
	CodeCapacityExceeded       Code = "CAPACITY_EXCEEDED"

	// Business rule errors
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"

	// State errors
	CodeAccountNotActivated Code = "ACCOUNT_NOT_ACTIVATED"
	CodeAccountDeleted      Code = "ACCOUNT_DELETED"

	// Infrastructure errors
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// BadRequest - validation failures, bad input
	case CodeInvalidArgument,
		CodeInvalidCurrency:
		return http.StatusBadRequest

	// NotFound - lookups that missed
	case CodeNotFound,
		CodeAccountNotFound,
		CodeOperationNotFound,
		CodeOwnerNotFound:
		return http.StatusNotFound

	// Conflict - uniqueness violations
	case CodeAccountAlreadyExists,
		CodeOwnerAlreadyHasAccount:
		return http.StatusConflict

	// TooManyRequests - daily id capacity reached
	case CodeCapacityExceeded:
		return http.StatusTooManyRequests

	// Unauthorized - operations on an account that is not active
	case CodeAccountNotActivated:
		return http.StatusUnauthorized

	// Forbidden - rejected by a business rule
	case CodeInvalidAmount,
		CodeInsufficientBalance,
		CodeAccountDeleted:
		return http.StatusForbidden

	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether a failure with this code can succeed on redelivery.
func (c Code) Retryable() bool {
	switch c {
	case CodeAccountNotFound, CodeInternal, CodeUnknown:
		return true
	default:
		return false
	}
}
