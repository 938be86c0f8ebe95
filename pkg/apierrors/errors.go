// Package apierrors defines the error taxonomy shared by the datastore,
// the artifact store and the HTTP surface.
package apierrors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusReason is a stable machine readable error code.
type StatusReason string

const (
	StatusReasonInvalid    StatusReason = "invalid_input"
	StatusReasonNotFound   StatusReason = "not_found"
	StatusReasonDependency StatusReason = "dependency_failure"
	StatusReasonInternal   StatusReason = "internal"
	StatusReasonUnknown    StatusReason = ""
)

// StatusError is an error intended for consumption by HTTP clients. Detail is
// safe to expose; Err is the underlying cause and is only logged.
type StatusError struct {
	Reason StatusReason
	Code   int
	Detail string
	Err    error
}

var _ error = &StatusError{}

func (e *StatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// NewInvalid returns an error indicating the caller supplied bad input.
func NewInvalid(format string, args ...interface{}) *StatusError {
	return &StatusError{
		Reason: StatusReasonInvalid,
		Code:   http.StatusBadRequest,
		Detail: fmt.Sprintf(format, args...),
	}
}

// NewNotFound returns an error indicating the named resource does not exist.
func NewNotFound(kind, name string) *StatusError {
	return &StatusError{
		Reason: StatusReasonNotFound,
		Code:   http.StatusNotFound,
		Detail: fmt.Sprintf("%s %q not found", kind, name),
	}
}

// NewDependency wraps a failure of an external dependency such as the
// datastore. Callers may retry with backoff.
func NewDependency(detail string, err error) *StatusError {
	return &StatusError{
		Reason: StatusReasonDependency,
		Code:   http.StatusServiceUnavailable,
		Detail: detail,
		Err:    err,
	}
}

func NewInternal(detail string, err error) *StatusError {
	return &StatusError{
		Reason: StatusReasonInternal,
		Code:   http.StatusInternalServerError,
		Detail: detail,
		Err:    err,
	}
}

// ReasonForError returns the reason of the first StatusError in err's chain.
func ReasonForError(err error) StatusReason {
	var status *StatusError
	if errors.As(err, &status) {
		return status.Reason
	}
	return StatusReasonUnknown
}

// HTTPStatus returns the status code for err. Errors outside the taxonomy map
// to 500.
func HTTPStatus(err error) int {
	var status *StatusError
	if errors.As(err, &status) && status.Code != 0 {
		return status.Code
	}
	return http.StatusInternalServerError
}

// AsStatus returns err as a StatusError. Unknown errors are wrapped as
// internal errors with a generic detail.
func AsStatus(err error) *StatusError {
	var status *StatusError
	if errors.As(err, &status) {
		return status
	}
	return NewInternal("internal error", err)
}

func IsInvalid(err error) bool {
	return ReasonForError(err) == StatusReasonInvalid
}

func IsNotFound(err error) bool {
	return ReasonForError(err) == StatusReasonNotFound
}

func IsDependency(err error) bool {
	return ReasonForError(err) == StatusReasonDependency
}
