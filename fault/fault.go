// Package fault defines the shared failure classification for the rendering
// core. Every package wraps one of these sentinels so callers can branch on
// class without parsing messages.
package fault

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidArgument reports nil, zero-sized or contradictory inputs.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrFormat reports a malformed command stream: bad magic, out-of-bounds
	// offsets, unbalanced clip stack.
	ErrFormat = errors.New("malformed stream")

	// ErrUnsupported reports a recognized but unimplemented version or opcode.
	// Distinct from ErrFormat: the stream may be well-formed for a newer engine.
	ErrUnsupported = errors.New("unsupported")

	// ErrLimit reports a stream or grid exceeding configured caps.
	ErrLimit = errors.New("limit exceeded")

	// ErrOutOfMemory reports grid or scratch allocation failure.
	ErrOutOfMemory = errors.New("out of memory")
)

// Is reports whether err classifies as target. Walks both pkg/errors cause
// chains and stdlib wrap chains.
func Is(err, target error) bool {
	for err != nil {
		if err == target {
			return true
		}
		switch e := err.(type) {
		case interface{ Cause() error }:
			err = e.Cause()
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		default:
			return false
		}
	}
	return false
}
