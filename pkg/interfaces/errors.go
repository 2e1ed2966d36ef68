package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrMessageNotFound = errors.New("message not found")
	ErrProfileNotFound = errors.New("profile not found")
)
