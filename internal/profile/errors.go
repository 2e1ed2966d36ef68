package profile

import "errors"

// Profile validation errors
var (
	ErrMissingName = errors.New("profile name is required")
)
