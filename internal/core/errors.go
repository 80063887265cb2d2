package core

import "errors"

// Error codes surfaced to clients over the wire.
const (
	ErrCodeUnauthorized      = "unauthorized"
	ErrCodeUnknownTopic      = "unknown_topic"
	ErrCodeAlreadySubscribed = "already_subscribed"
	ErrCodeBadRequest        = "bad_request"
)

var (
	// ErrUnauthorized is returned when the subscription requires an
	// authenticated session and the session is anonymous.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrUnknownTopic is returned for topics the server does not serve.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrAlreadySubscribed is returned on a duplicate subscribe.
	ErrAlreadySubscribed = errors.New("already subscribed")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// CoreError wraps a code and human-readable message for the wire.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// WireError maps a session error to its protocol representation.
func WireError(err error) *CoreError {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return &CoreError{Code: ErrCodeUnauthorized, Message: "authentication required"}
	case errors.Is(err, ErrUnknownTopic):
		return &CoreError{Code: ErrCodeUnknownTopic, Message: "unknown topic"}
	case errors.Is(err, ErrAlreadySubscribed):
		return &CoreError{Code: ErrCodeAlreadySubscribed, Message: "already subscribed"}
	default:
		return &CoreError{Code: ErrCodeBadRequest, Message: err.Error()}
	}
}
