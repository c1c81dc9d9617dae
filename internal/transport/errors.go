package transport

import "fmt"

// ConnectError indicates a network or TLS failure while opening a session.
// The transport never falls back to an unencrypted channel.
type ConnectError struct {
	Endpoint string
	Err      error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connecting to %s: %v", e.Endpoint, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AuthError indicates the server rejected the supplied credentials. The
// caller must not retry with the same credentials automatically.
type AuthError struct {
	Endpoint string
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed for %s on %s: %v", e.Username, e.Endpoint, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// SendError indicates the server did not accept a message for delivery.
// There is no local retry or backoff; submission is fire-and-forget.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send failed: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// FetchError records the failure to fetch one message. It is isolated to
// its UID and never discards messages already fetched.
type FetchError struct {
	UID uint32
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching message %d: %v", e.UID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }
