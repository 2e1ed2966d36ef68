package types

import "regexp"

// Store identifiers are 24-character hex tokens. Compiled once at package
// initialization.
var storeIDRegex = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

// Maximum accepted message text length in bytes.
const MaxTextLength = 4096

// IsValidStoreID reports whether value is syntactically a well-formed store
// identifier. Used to gate every externally supplied id before store access.
func IsValidStoreID(value string) bool {
	return storeIDRegex.MatchString(value)
}

// Validate ensures a conversation key carries three well-formed identifiers.
func (k ConversationKey) Validate() error {
	if !IsValidStoreID(k.GigID) {
		return ErrInvalidGigID
	}
	if !IsValidStoreID(k.SellerID) {
		return ErrInvalidSellerID
	}
	if !IsValidStoreID(k.UserID) {
		return ErrInvalidUserID
	}
	return nil
}

// Validate checks an inbound message's required fields and identifier
// formats. It does not check conversation membership; that belongs to the
// relay layer which knows the connection's bound key.
func (m *InboundMessage) Validate() error {
	if m.GigID == "" || m.SenderID == "" {
		return ErrMissingRequiredField
	}
	if m.Text == "" {
		return ErrMissingText
	}
	if len(m.Text) > MaxTextLength {
		return ErrTextTooLong
	}
	if !IsValidStoreID(m.GigID) {
		return ErrInvalidGigID
	}
	if !IsValidStoreID(m.SenderID) {
		return ErrInvalidSenderID
	}
	if m.RecipientID != "" && !IsValidStoreID(m.RecipientID) {
		return ErrInvalidRecipientID
	}
	if m.Timestamp < 0 {
		return ErrInvalidTimestamp
	}
	return nil
}
