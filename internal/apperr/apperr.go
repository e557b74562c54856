// README: Error kinds surfaced by the core and the structured error that carries them.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrNotFound              = errors.New("not found")
	ErrForbidden             = errors.New("forbidden")
	ErrRestaurantUnavailable = errors.New("restaurant unavailable")
	ErrCapacityExceeded      = errors.New("capacity exceeded")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInvalidCode           = errors.New("invalid pickup code")
	ErrCodeExpired           = errors.New("pickup code expired")
	ErrWrongState            = errors.New("order not ready for pickup")
	ErrInvalidState          = errors.New("invalid state")
	ErrConflict              = errors.New("concurrent update conflict")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Error carries a kind plus the state context a caller needs to render a precise message.
type Error struct {
	Kind      error
	Current   string
	Requested string
	Detail    string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Current != "" || e.Requested != "" {
		fmt.Fprintf(&b, " (current=%s requested=%s)", e.Current, e.Requested)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func New(kind error, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func Wrap(kind error, detail string, err error) *Error {
	return &Error{Kind: kind, Detail: detail, Err: err}
}

func Transition(kind error, current, requested, detail string) *Error {
	return &Error{Kind: kind, Current: current, Requested: requested, Detail: detail}
}

// Retryable reports whether retrying the same call may succeed.
func Retryable(err error) bool {
	return errors.Is(err, ErrDependencyUnavailable)
}

var kinds = []error{
	ErrInvalidRequest, ErrNotFound, ErrForbidden, ErrRestaurantUnavailable, ErrCapacityExceeded,
	ErrInvalidTransition, ErrInvalidCode, ErrCodeExpired, ErrWrongState, ErrInvalidState,
	ErrConflict, ErrDependencyUnavailable,
}

// KindOf returns the first known kind matched by err, or nil.
func KindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
