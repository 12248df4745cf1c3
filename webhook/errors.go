package webhook

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("subscription not found")
	ErrConflict             = errors.New("subscription already exists")
	ErrStoreOperation       = errors.New("subscription store operation failed")
	ErrStoreInternal        = errors.New("subscription store internal error")
	ErrInvalidSubscription  = errors.New("invalid subscription")
	ErrInvalidNotification  = errors.New("invalid notification")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// VerificationError is returned when a subscription URI fails the echo
// challenge at registration time. It is never retried automatically.
type VerificationError struct {
	URI    string
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verifying webhook %s: %s: %v", e.URI, e.Reason, e.Err)
	}
	return fmt.Sprintf("verifying webhook %s: %s", e.URI, e.Reason)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}
