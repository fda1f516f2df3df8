package engage

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the controllers for caller mistakes rather
// than network failures.
var (
	// ErrBusy is returned when a send or clear is attempted while a chat
	// stream is already in flight, or a call session operation overlaps.
	ErrBusy = errors.New("engage: operation already in flight")

	// ErrEmptyMessage is returned when a chat send contains only whitespace.
	ErrEmptyMessage = errors.New("engage: empty message")

	// ErrSessionState is returned when a session operation is invalid for
	// the current call state (e.g. Start while already active).
	ErrSessionState = errors.New("engage: invalid session state")
)

// CredentialError means the session token issuance step failed: the endpoint
// was unreachable, returned a non-2xx status, or omitted the session id or
// session token. Recoverable; the session returns to idle for retry.
type CredentialError struct {
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential error: %v", e.Err)
}

func (e *CredentialError) Unwrap() error { return e.Err }

// UserMessage returns the translated-summary key shown to the user in place
// of raw network text.
func (e *CredentialError) UserMessage() string { return "error.session.credential" }

// ActivationError means the session start step failed or did not return the
// realtime transport connection parameters.
type ActivationError struct {
	Err error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activation error: %v", e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

func (e *ActivationError) UserMessage() string { return "error.session.activation" }

// TransportError means the realtime transport connection could not be
// established, or a control call timed out at the transport level.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) UserMessage() string { return "error.session.transport" }

// StreamError means a chat exchange failed mid-stream. The chat controller
// absorbs it into a fallback assistant message; it is exported so callers
// observing OnError can distinguish it.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %v", e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

func (e *StreamError) UserMessage() string { return "error.chat.stream" }
