/*
Package errs provides the client's typed error values and application error code constants.

This file defines CustomError, which carries a code, a user-facing message, the HTTP status
involved (the upstream response status for REST failures), the raw response body when
there was one, and an optional underlying cause.
*/
package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"xalvion/internal/pkg/logx"
)

// Kind classifies a CustomError into the client's error taxonomy.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuth
	KindNetwork
	KindConnection
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindAuth:
		return "AuthError"
	case KindNetwork:
		return "NetworkError"
	case KindConnection:
		return "ConnectionError"
	default:
		return "InternalError"
	}
}

// CustomError is the error type returned by every client component.
type CustomError struct {
	// Code is the application error code (see constants definition).
	Code int

	// Message is the user-facing description.
	Message string

	// Status is the HTTP status involved. For REST failures it is the upstream status.
	Status int

	// Body is the raw upstream response body, if any.
	Body string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Error Code %d (HTTP %d): %s: %v", e.Code, e.Status, e.Message, e.Err)
	}
	return fmt.Sprintf("Error Code %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap returns the underlying cause.
func (e CustomError) Unwrap() error {
	return e.Err
}

// Kind reports the taxonomy class of the error from its code range.
func (e CustomError) Kind() Kind {
	switch {
	case e.Code >= 1000 && e.Code < 2000:
		return KindValidation
	case e.Code >= 3000 && e.Code < 4000:
		return KindAuth
	case e.Code >= 4100 && e.Code < 4200:
		return KindConnection
	case e.Code >= 4000 && e.Code < 5000:
		return KindNetwork
	default:
		return KindInternal
	}
}

// NewError constructs a *CustomError from a predefined error code.
// Optional details are printf arguments for the message template. An unknown code
// yields ErrUnknown. For ErrUnknown, an error passed as the first detail becomes the cause.
func NewError(code int, details ...any) *CustomError {
	templateErr, ok := errorMap[code]

	if !ok {
		logx.Error(
			fmt.Errorf("attempted to create an error with an unknown code in errorMap"),
			"Unknown error code requested",
			"requested_code", code,
		)

		unknownErr := errorMap[ErrUnknown]
		return &unknownErr
	}

	customErr := templateErr

	if code == ErrUnknown && len(details) > 0 {
		if originalErr, ok := details[0].(error); ok {
			customErr.Err = originalErr
		}
	} else if len(details) > 0 {
		if strings.Contains(customErr.Message, "%") {
			customErr.Message = fmt.Sprintf(customErr.Message, details...)
		} else {
			logx.Warn(
				"Details provided for error, but message template has no formatting placeholders. Details ignored.",
				"code", code,
			)
		}
	}

	return &customErr
}

// Wrap constructs a *CustomError for code with err as its cause.
func Wrap(code int, err error, details ...any) *CustomError {
	customErr := NewError(code, details...)
	customErr.Err = err
	return customErr
}

// FromResponse builds the typed failure for a non-2xx REST response.
// 401 and 403 become ErrUnauthorized; everything else ErrUnexpectedStatus.
// A FastAPI-style {"detail": "..."} body replaces the generic message.
func FromResponse(status int, body []byte) *CustomError {
	var customErr *CustomError
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		customErr = NewError(ErrUnauthorized)
	} else {
		customErr = NewError(ErrUnexpectedStatus, status)
	}

	customErr.Status = status
	customErr.Body = string(body)

	if detail := ResponseDetail(body); detail != "" {
		customErr.Message = detail
	}

	return customErr
}

// ResponseDetail extracts the string "detail" field of an error body, or "".
func ResponseDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if s, ok := payload.Detail.(string); ok {
		return s
	}
	return ""
}

// As extracts the *CustomError from err's chain.
func As(err error) (*CustomError, bool) {
	var customErr *CustomError
	if errors.As(err, &customErr) {
		return customErr, true
	}
	return nil, false
}

// KindOf reports the taxonomy class of err. Errors that are not CustomErrors are internal.
func KindOf(err error) Kind {
	if customErr, ok := As(err); ok {
		return customErr.Kind()
	}
	return KindInternal
}

// IsAuth reports whether err is an AuthError.
func IsAuth(err error) bool { return err != nil && KindOf(err) == KindAuth }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool { return err != nil && KindOf(err) == KindValidation }

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool { return err != nil && KindOf(err) == KindNetwork }

// IsConnection reports whether err is a ConnectionError.
func IsConnection(err error) bool { return err != nil && KindOf(err) == KindConnection }

// HasCode reports whether err is a CustomError with the given code.
func HasCode(err error, code int) bool {
	customErr, ok := As(err)
	return ok && customErr.Code == code
}
