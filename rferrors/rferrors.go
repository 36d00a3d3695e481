// Package rferrors defines the error taxonomy shared by data, sample, tree,
// forest and rfio. Every fallible operation in those packages returns one of
// the five sentinels below, wrapped with github.com/pkg/errors so that
// errors.Is still resolves after the wrap and errors.Cause/%+v keep a stack
// trace for CLI diagnostics.
package rferrors

import (
	"github.com/pkg/errors"
)

// Sentinel errors. Callers compare with errors.Is, never with ==, since
// every occurrence is wrapped at the point it's detected.
var (
	// ErrInvalidArgument marks malformed caller inputs: zero-length
	// sample_fraction, mismatched lengths, incompatible option
	// combinations.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrOutOfRange marks a key or column index beyond the bounds of
	// the data it indexes.
	ErrOutOfRange = errors.New("out of range")

	// ErrDomain marks a numeric precondition violated by otherwise
	// well-formed input: negative weights, a non-injective merge
	// mapping, binary-only split rule on a non-binary response.
	ErrDomain = errors.New("domain error")

	// ErrSerialization marks a malformed or incompatible archive:
	// unknown family tag, truncated stream, version mismatch.
	ErrSerialization = errors.New("serialization error")

	// ErrCancelled marks a training or prediction run whose context was
	// observed as cancelled by the plant/predict worker loop.
	ErrCancelled = errors.New("cancelled")
)

// InvalidArgument wraps ErrInvalidArgument with a formatted message.
func InvalidArgument(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidArgument, format, args...)
}

// OutOfRange wraps ErrOutOfRange with a formatted message.
func OutOfRange(format string, args ...interface{}) error {
	return errors.Wrapf(ErrOutOfRange, format, args...)
}

// Domain wraps ErrDomain with a formatted message.
func Domain(format string, args ...interface{}) error {
	return errors.Wrapf(ErrDomain, format, args...)
}

// Serialization wraps ErrSerialization with a formatted message.
func Serialization(format string, args ...interface{}) error {
	return errors.Wrapf(ErrSerialization, format, args...)
}

// Cancelled wraps ErrCancelled with a formatted message.
func Cancelled(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCancelled, format, args...)
}

// Is reports whether err (or any error it wraps) matches target. It's a
// thin re-export so callers don't need to import both errors and
// github.com/pkg/errors.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
