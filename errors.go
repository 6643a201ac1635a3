package tiqology

import (
	"errors"
	"net/http"
)

// ErrorKind classifies failures surfaced to callers.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindAuth
	KindForbidden
	KindNotFound
	KindServer
	KindNetwork
	KindTimeout
	KindInvalidResponse
)

var kindNames = map[ErrorKind]string{
	KindUnknown:         "unknown",
	KindValidation:      "validation",
	KindAuth:            "auth",
	KindForbidden:       "forbidden",
	KindNotFound:        "not_found",
	KindServer:          "server",
	KindNetwork:         "network",
	KindTimeout:         "timeout",
	KindInvalidResponse: "invalid_response",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// User-facing messages, one per kind.
const (
	MsgGeneric         = "Something went wrong. Please try again."
	MsgValidation      = "The request was rejected. Please check your input and try again."
	MsgAuth            = "Invalid email or password"
	MsgForbidden       = "You don't have permission to perform this action."
	MsgNotFound        = "The requested resource was not found."
	MsgServer          = "Server error. Please try again later."
	MsgNetwork         = "Network error: Unable to connect to API server. Please check if the server is running."
	MsgTimeout         = "Request timed out. Please try again."
	MsgInvalidResponse = "Received an unexpected response from the server."
)

// Error is a normalized failure carrying a short, user-safe message.
// Err holds the diagnostic cause and is never meant for display.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return DefaultMessage(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation      = &Error{Kind: KindValidation}
	ErrAuth            = &Error{Kind: KindAuth}
	ErrForbidden       = &Error{Kind: KindForbidden}
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrServer          = &Error{Kind: KindServer}
	ErrNetwork         = &Error{Kind: KindNetwork}
	ErrTimeout         = &Error{Kind: KindTimeout}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
)

// NewError builds an Error with the default message for kind.
func NewError(kind ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Message: DefaultMessage(kind), Err: cause}
}

// DefaultMessage returns the fixed user-facing message for kind.
func DefaultMessage(kind ErrorKind) string {
	switch kind {
	case KindValidation:
		return MsgValidation
	case KindAuth:
		return MsgAuth
	case KindForbidden:
		return MsgForbidden
	case KindNotFound:
		return MsgNotFound
	case KindServer:
		return MsgServer
	case KindNetwork:
		return MsgNetwork
	case KindTimeout:
		return MsgTimeout
	case KindInvalidResponse:
		return MsgInvalidResponse
	default:
		return MsgGeneric
	}
}

// KindForStatus maps a non-2xx HTTP status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuth
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status >= 500:
		return KindServer
	default:
		return KindUnknown
	}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
