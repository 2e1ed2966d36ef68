package relay

import "errors"

// Connection-related errors
var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrWriteTimeout     = errors.New("write timeout after 5 seconds")
	ErrInvalidJSON      = errors.New("invalid JSON data")
)

// Registry-related errors
var (
	ErrNilConnection         = errors.New("connection cannot be nil")
	ErrConnectionNotAdmitted = errors.New("connection must be admitted before registration")
)
