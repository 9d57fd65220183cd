// Package vexerr defines the error kinds raised by the virtual exFAT block
// device and the UDPBD protocol engine.
//
// Two of these are fatal at startup (ErrBindFailed, ErrImageBuildFailed); the
// rest are local to a single sector, packet, or send and are meant to be
// logged and swallowed by the caller rather than propagated.
package vexerr

import "fmt"

// ServerError is a sentinel error string, following the same shape as a Go
// errno: comparable with ==, wrappable with context via WithMessage.
type ServerError string

func (e ServerError) Error() string { return string(e) }

// WithMessage attaches additional context to the sentinel, keeping it
// comparable via errors.Is through Unwrap.
func (e ServerError) WithMessage(message string) ContextualError {
	return contextualError{message: message, cause: e}
}

// WrapError attaches an underlying error as additional context.
func (e ServerError) WrapError(err error) ContextualError {
	return contextualError{
		message: fmt.Sprintf("%s: %s", e.Error(), err.Error()),
		cause:   err,
	}
}

// ContextualError is a ServerError with a caller-supplied message layered on
// top; Unwrap still reaches the original sentinel or wrapped error.
type ContextualError interface {
	error
	WithMessage(message string) ContextualError
	Unwrap() error
}

type contextualError struct {
	message string
	cause   error
}

func (e contextualError) Error() string { return e.message }

func (e contextualError) WithMessage(message string) ContextualError {
	return contextualError{
		message: fmt.Sprintf("%s: %s", e.message, message),
		cause:   e,
	}
}

func (e contextualError) Unwrap() error { return e.cause }

// Fatal at startup.
const (
	// ErrBindFailed means the UDP socket could not be bound to 0xBDBD.
	ErrBindFailed = ServerError("failed to bind UDPBD socket")
	// ErrImageBuildFailed means the host directory tree could not be laid
	// out as an exFAT volume (e.g. it overflows a 32-bit cluster count).
	ErrImageBuildFailed = ServerError("failed to build virtual exFAT image")
)

// Local to a single operation; logged and swallowed by the caller.
const (
	// ErrHostIO means a read against a mapped host file failed; the
	// affected sector is zero-filled instead.
	ErrHostIO = ServerError("host file I/O failed")
	// ErrProtocolDecode means an incoming packet was malformed or used a
	// reserved command code.
	ErrProtocolDecode = ServerError("malformed UDPBD packet")
	// ErrSendFailed means sending a reply packet failed; the PS2 is
	// expected to re-issue the request on its own.
	ErrSendFailed = ServerError("failed to send UDPBD reply")
)

// Bounds and capacity failures used by the vexfat package.
const (
	ErrOutOfRange       = ServerError("value not in valid range")
	ErrGeometryOverflow = ServerError("tree does not fit in a 32-bit cluster count")
)
