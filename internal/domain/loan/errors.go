package loan

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxExtendDays caps a single extension.
const MaxExtendDays = 365

// MaxFine is the largest amount the decimal(10,2) fine column holds.
var MaxFine = decimal.RequireFromString("99999999.99")

// Error categories. Every business error below matches exactly one of them via errors.Is.
var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("storage unavailable")
)

type Reason string

const (
	ReasonBookUnavailable Reason = "bookUnavailable"
	ReasonAlreadyBorrowed Reason = "alreadyBorrowed"
	ReasonLimitExceeded   Reason = "limitExceeded"
	ReasonNotActive       Reason = "notActive"
	ReasonAlreadyExtended Reason = "alreadyExtended"
)

type NotFoundError struct{ Entity string }

func (e *NotFoundError) Error() string        { return e.Entity + " not found" }
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

type ConflictError struct{ Reason Reason }

func (e *ConflictError) Error() string        { return fmt.Sprintf("conflict: %s", e.Reason) }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type InvalidArgumentError struct {
	Field  string
	Detail string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Detail)
}
func (e *InvalidArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

var (
	ErrBookNotFound = &NotFoundError{Entity: "book"}
	ErrUserNotFound = &NotFoundError{Entity: "user"}
	ErrLoanNotFound = &NotFoundError{Entity: "loan"}

	ErrBookUnavailable = &ConflictError{Reason: ReasonBookUnavailable}
	ErrAlreadyBorrowed = &ConflictError{Reason: ReasonAlreadyBorrowed}
	ErrLimitExceeded   = &ConflictError{Reason: ReasonLimitExceeded}
	ErrNotActive       = &ConflictError{Reason: ReasonNotActive}
	ErrAlreadyExtended = &ConflictError{Reason: ReasonAlreadyExtended}

	ErrInvalidDays  = &InvalidArgumentError{Field: "days", Detail: "must be greater than 0"}
	ErrTooManyDays  = &InvalidArgumentError{Field: "days", Detail: fmt.Sprintf("must be at most %d", MaxExtendDays)}
	ErrNegativeFine = &InvalidArgumentError{Field: "amount", Detail: "must not be negative"}
	ErrFineTooLarge = &InvalidArgumentError{Field: "amount", Detail: "must be at most " + MaxFine.StringFixed(2)}
)

// ReasonOf extracts the conflict reason, if err is a conflict.
func ReasonOf(err error) (Reason, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Reason, true
	}
	return "", false
}
