package webhook

import "fmt"

// StoreResult represents the result of a subscription store write
type StoreResult int

const (
	StoreSuccess StoreResult = iota + 1
	StoreNotFound
	StoreConflict
	StoreOperationError
	StoreInternalError
)

// String returns the string representation of the store result
func (r StoreResult) String() string {
	switch r {
	case StoreSuccess:
		return "success"
	case StoreNotFound:
		return "not_found"
	case StoreConflict:
		return "conflict"
	case StoreOperationError:
		return "operation_error"
	case StoreInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Validate checks if the store result is valid
func (r StoreResult) Validate() error {
	if r < StoreSuccess || r > StoreInternalError {
		return fmt.Errorf("invalid store result: %d", r)
	}
	return nil
}

// Err maps the result to the sentinel error callers match with errors.Is
func (r StoreResult) Err() error {
	switch r {
	case StoreSuccess:
		return nil
	case StoreNotFound:
		return ErrNotFound
	case StoreConflict:
		return ErrConflict
	case StoreOperationError:
		return ErrStoreOperation
	default:
		return ErrStoreInternal
	}
}
