package domain

import "errors"

var (
	// ErrValidation: malformed or missing input. Not retryable.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound: hotel, room type or booking absent.
	ErrNotFound = errors.New("not found")
	// ErrCapacityExceeded: no room of the type is free for every night requested.
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrForbidden: requester does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict: a concurrent write won the race. Retryable.
	ErrConflict = errors.New("conflict")
	// ErrStorageUnavailable: store timeout or outage. Retryable with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrInvalidTransition: the booking is not in a state that allows the change.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// StorageError hides collaborator internals behind a generic message while
// keeping the cause reachable through errors.Is / errors.As.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return "storage unavailable: " + e.Op }

func (e *StorageError) Unwrap() []error { return []error{ErrStorageUnavailable, e.Err} }

// WrapStorage wraps an infrastructure error; nil and domain errors pass through.
func WrapStorage(op string, err error) error {
	if err == nil || IsDomain(err) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// IsDomain reports whether err already carries one of the typed kinds above.
func IsDomain(err error) bool {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrCapacityExceeded, ErrForbidden,
		ErrConflict, ErrStorageUnavailable, ErrInvalidTransition} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Retryable is true only for lost races and storage outages.
func Retryable(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrStorageUnavailable)
}
