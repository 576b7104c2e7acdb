// Package errors wraps github.com/pkg/errors with printf-style constructors so
// call sites can build messages without an extra fmt.Sprintf. Stack traces are
// attached on creation and picked up by zerolog's pkgerrors marshaller.
package errors

import (
	"github.com/pkg/errors"
)

var (
	As     = errors.As
	Is     = errors.Is
	Cause  = errors.Cause
	Unwrap = errors.Unwrap
)

// New returns an error with the formatted message and a stack trace.
func New(message string, args ...interface{}) error {
	if len(args) > 0 {
		return errors.Errorf(message, args...)
	}

	return errors.New(message)
}

// Wrap annotates err with the formatted message. Wrap returns nil if err is nil.
func Wrap(err error, message string, args ...interface{}) error {
	if err == nil {
		return nil
	}

	if len(args) > 0 {
		return errors.Wrapf(err, message, args...)
	}

	return errors.Wrap(err, message)
}
