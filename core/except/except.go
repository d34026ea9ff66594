package except

import (
	"fmt"
	"k8s.io/apimachinery/pkg/api/errors"
	"net/http"
)

type ErrorReason string

const (
	ErrNotFound             ErrorReason = "NotFound"
	ErrConflict             ErrorReason = "Conflict"
	ErrInternalError        ErrorReason = "InternalError"
	ErrUnsupported          ErrorReason = "Unsupported"
	ErrAlreadyExists        ErrorReason = "AlreadyExists"
	ErrTimeout              ErrorReason = "Timeout"
	ErrInvalid              ErrorReason = "Invalid"
	ErrTransient            ErrorReason = "Transient"
	ErrInsufficientEvidence ErrorReason = "InsufficientEvidence"
	ErrRestoreFailed        ErrorReason = "RestoreFailed"
	ErrAborted              ErrorReason = "Aborted"
	ErrBatch                ErrorReason = "Batch"
)

type ReasonedError interface {
	error
	Reason() ErrorReason
}

type rampError struct {
	ErrReason ErrorReason
	Message   string
}

func (s *rampError) Error() string {
	return s.Message
}

func (s *rampError) Reason() ErrorReason {
	return s.ErrReason
}

func Reason(err error) ErrorReason {
	if err != nil {
		if v, ok := err.(ReasonedError); ok {
			return v.Reason()
		}
	}
	return ErrInternalError
}

// IsTransient reports whether err is worth retrying: either an error minted
// here with ErrTransient, or an apiserver error class that clears on its own.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if v, ok := err.(ReasonedError); ok {
		return v.Reason() == ErrTransient
	}
	return errors.IsServerTimeout(err) ||
		errors.IsTimeout(err) ||
		errors.IsTooManyRequests(err) ||
		errors.IsServiceUnavailable(err) ||
		errors.IsInternalError(err) ||
		errors.IsConflict(err)
}

func ToHttpStatus(err error) int {
	if errors.IsNotFound(err) {
		return http.StatusNotFound
	} else if errors.IsAlreadyExists(err) {
		return http.StatusBadRequest
	} else {
		switch Reason(err) {
		case ErrNotFound:
			return http.StatusNotFound
		case ErrAlreadyExists, ErrUnsupported, ErrInvalid:
			return http.StatusBadRequest
		case ErrConflict:
			return http.StatusConflict
		case ErrTimeout:
			return http.StatusRequestTimeout
		case ErrTransient:
			return http.StatusServiceUnavailable
		case ErrInsufficientEvidence:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	}
}

func NewError(msg string, reason ErrorReason, args ...interface{}) error {
	return &rampError{
		ErrReason: reason,
		Message:   fmt.Sprintf(msg, args...),
	}
}
