package domain

import "errors"

// Contract-violation errors caught before any network call is attempted.
var (
	ErrSessionClosed = errors.New("conversation: session is closed")
	ErrUnauthorized  = errors.New("conversation: role lacks permission for this operation")
	ErrInvalidState  = errors.New("conversation: operation not legal in current session state")
)
