package types

// ConversationKey identifies the conversation a connection is bound to.
// GigID scopes the conversation, SellerID is the designated seller side,
// UserID is the identity that opened the connection.
type ConversationKey struct {
	GigID    string `json:"gigId"`
	SellerID string `json:"sellerId"`
	UserID   string `json:"userId"`
}

// InboundMessage is the wire payload received on a relay connection.
// Timestamp is a millisecond epoch supplied by the client; zero means the
// server assigns one. MessageID is an optional client idempotency key.
type InboundMessage struct {
	GigID       string `json:"gigId"`
	SenderID    string `json:"senderId"`
	Text        string `json:"text"`
	RecipientID string `json:"recipientId,omitempty"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	MessageID   string `json:"messageId,omitempty"`
}

// StoredMessage is the durable record of an accepted message. Name and
// Avatar are joined in from the sender profile before delivery and are not
// persisted on the messages table.
type StoredMessage struct {
	MessageID   string `json:"messageId"`
	GigID       string `json:"gigId"`
	UserID      string `json:"userId"`
	RecipientID string `json:"recipientId,omitempty"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	Read        bool   `json:"read"`

	Name   string `json:"name,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Profile is the display profile joined onto delivered messages.
type Profile struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// ErrorPayload is the structured rejection sent back on the originating
// connection for every admission or message failure.
type ErrorPayload struct {
	Error string `json:"error"`
}
