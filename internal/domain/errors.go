package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPrecondition marks caller mistakes: missing identity, missing or
	// inactive cart, invalid quantity, empty checkout. Never retried.
	ErrPrecondition = errors.New("precondition failed")

	// ErrConflict marks a uniqueness-constraint violation, i.e. a concurrent
	// writer won a race this caller also entered.
	ErrConflict = errors.New("conflict")

	// ErrStoreTimeout marks a store call that exceeded its deadline.
	ErrStoreTimeout = errors.New("store operation timed out")
)

func Preconditionf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrPrecondition)...)
}

// WrapStore annotates a store-level failure, normalizing deadline expiry to
// ErrStoreTimeout so callers can tell a hung store from a broken one.
func WrapStore(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrStoreTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CompensationError reports a failed undo after a partial checkout: the
// order-line insert failed and the follow-up delete of the order header
// failed too, leaving a dangling order that needs manual remediation.
type CompensationError struct {
	OrderID string
	Cause   error
	Undo    error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("order %s left dangling: %v (compensation failed: %v)", e.OrderID, e.Cause, e.Undo)
}

func (e *CompensationError) Unwrap() error {
	return e.Cause
}
