package persist

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	ErrUnknownEntity   ErrorKind = "unknown_entity"
	ErrMalformedSchema ErrorKind = "malformed_schema"
	ErrStorage         ErrorKind = "storage"
	ErrStreamClosed    ErrorKind = "stream_closed"
	ErrConfig          ErrorKind = "config"
	ErrClosed          ErrorKind = "closed"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Field   string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Field != "" {
		base = fmt.Sprintf("%s (field=%s)", base, e.Field)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", base, e.Cause)
	}
	return base
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func Wrap(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func New(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func UnknownEntityError(entity string) *Error {
	return &Error{Kind: ErrUnknownEntity, Message: fmt.Sprintf("no storage client registered for entity %q", entity)}
}

func MalformedSchemaError(field, msg string) *Error {
	return &Error{Kind: ErrMalformedSchema, Field: field, Message: msg}
}

func StreamClosedError() *Error {
	return &Error{Kind: ErrStreamClosed, Message: "stream is closed"}
}

func ClosedError(what string) *Error {
	return &Error{Kind: ErrClosed, Message: what + " is closed"}
}

func ConfigError(msg string) *Error {
	return &Error{Kind: ErrConfig, Message: msg}
}

func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
