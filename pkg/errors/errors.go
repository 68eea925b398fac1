package errors

import (
	"errors"
	"fmt"
)

// New returns an error with the given message. It's a passthrough to the
// standard library so that callers only need to import one errors package.
func New(msg string) error {
	return errors.New(msg)
}

// contextError annotates an error with a description of what was being
// attempted when it occurred.
type contextError struct {
	context string
	cause   error
}

// WithContext wraps `err` with `context`. The resulting message reads
// "context: err". A nil error stays nil.
func WithContext(err error, context string) error {
	if err == nil {
		return nil
	}
	return contextError{context: context, cause: err}
}

func (err contextError) Error() string {
	return fmt.Sprintf("%s: %s", err.context, err.cause)
}

func (err contextError) Unwrap() error {
	return err.cause
}

// FriendlyError is an error whose message is meant to be shown directly to
// the user, without the chain of contexts that led to it.
type FriendlyError interface {
	error
	FriendlyMessage() string
}

type friendlyError struct {
	msg string
}

// NewFriendlyError creates an error whose message is printed as-is by
// GetPrintableMessage.
func NewFriendlyError(format string, args ...interface{}) error {
	return friendlyError{fmt.Sprintf(format, args...)}
}

func (err friendlyError) Error() string {
	return err.msg
}

func (err friendlyError) FriendlyMessage() string {
	return err.msg
}

// GetPrintableMessage returns the message that should be shown to the user
// for `err`. If any error in the chain is a FriendlyError, its message is
// used. Otherwise, the full contextual message is returned.
func GetPrintableMessage(err error) string {
	var friendly FriendlyError
	if errors.As(err, &friendly) {
		return friendly.FriendlyMessage()
	}
	return err.Error()
}

// Is is a passthrough to the standard library.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a passthrough to the standard library.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
