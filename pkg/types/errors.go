package types

import "errors"

// Validation errors surfaced to clients as structured rejections.
var (
	ErrInvalidGigID         = errors.New("invalid gigId")
	ErrInvalidSellerID      = errors.New("invalid sellerId")
	ErrInvalidUserID        = errors.New("invalid userId")
	ErrInvalidSenderID      = errors.New("invalid senderId")
	ErrInvalidRecipientID   = errors.New("invalid recipientId")
	ErrMissingRequiredField = errors.New("gigId and senderId are required")
	ErrMissingText          = errors.New("text is required")
	ErrTextTooLong          = errors.New("text exceeds maximum length")
	ErrInvalidTimestamp     = errors.New("timestamp must not be negative")
)
