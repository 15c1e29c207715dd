package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel values for the failure taxonomy of the report workflow. Every
// precondition violation is surfaced as one of these so the calling layer can
// render a distinct, user-actionable message.
var (
	ErrNotFound                = errors.New("not found")
	ErrPermissionDenied        = errors.New("permission denied")
	ErrWindowExpired           = errors.New("time window expired")
	ErrValidationFailed        = errors.New("validation failed")
	ErrIncompleteImageMetadata = errors.New("incomplete image metadata")
	ErrConflict                = errors.New("resource conflict")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrInternal                = errors.New("internal server error")
)

type ApiErr struct {
	StatusCode int
	err        error
	Details    string // Additional details about the error
	Field      string // Field that caused the error (for validation errors)
	Cause      error  // The underlying cause of the error
}

// implements error interface. this allows us to pass an instance of ApiErr as an argument of type `error`
func (e *ApiErr) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.err.Error(), e.Details)
	}
	return e.err.Error()
}

// GetFullError returns a recursive error message including all causes
func (e *ApiErr) GetFullError() string {
	msg := e.Error()
	if e.Cause != nil {
		var apiErr *ApiErr
		if errors.As(e.Cause, &apiErr) {
			msg = fmt.Sprintf("%s -> %s", msg, apiErr.GetFullError())
		} else {
			msg = fmt.Sprintf("%s -> %s", msg, e.Cause.Error())
		}
	}
	return msg
}

// this function allows us to do the following:
// err := &ApiErr{StatusCode: ..., err: someSentinelError}
// errors.Is(err, someSentinelError) ==> evaluates to true
func (e *ApiErr) Unwrap() error {
	return e.err
}

func NewNotFound(entity string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%s %w", entity, ErrNotFound),
	}
}

func NewPermissionDenied(details string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusForbidden,
		err:        ErrPermissionDenied,
		Details:    details,
	}
}

func NewWindowExpired(details string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusGone,
		err:        ErrWindowExpired,
		Details:    details,
	}
}

func NewValidationFailed(field, reason string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrValidationFailed,
		Details:    reason,
		Field:      field,
	}
}

func NewIncompleteImageMetadata() *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusUnprocessableEntity,
		err:        ErrIncompleteImageMetadata,
		Details:    "every gallery image needs a caption and a photographer name before publishing",
	}
}

func NewConflict(entity string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusConflict,
		err:        fmt.Errorf("%s: %w", entity, ErrConflict),
	}
}

func NewUnauthorized(details string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusUnauthorized,
		err:        ErrUnauthorized,
		Details:    details,
	}
}

func NewInternal(message string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        errors.New(message),
	}
}

func NewInternalWithCause(message string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        errors.New(message),
		Cause:      cause,
	}
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsPermissionDenied(err error) bool {
	return errors.Is(err, ErrPermissionDenied)
}

func IsWindowExpired(err error) bool {
	return errors.Is(err, ErrWindowExpired)
}

func IsValidationFailed(err error) bool {
	return errors.Is(err, ErrValidationFailed)
}

func IsIncompleteImageMetadata(err error) bool {
	return errors.Is(err, ErrIncompleteImageMetadata)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
