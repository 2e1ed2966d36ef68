package interfaces

import (
	"context"

	"gigrelay/pkg/types"
)

// MessageStore handles all durable message and profile operations. The relay
// treats it as an opaque append/query service; implementations own their
// write ordering guarantees.
type MessageStore interface {
	// AppendMessage persists a message. Must complete before the message is
	// routed so the durable record never lags delivery.
	AppendMessage(ctx context.Context, message *types.StoredMessage) error

	// FindMessageByID returns the message with the given id, or
	// ErrMessageNotFound.
	FindMessageByID(ctx context.Context, messageID string) (*types.StoredMessage, error)

	// FindRecentMessage returns a message matching (gigID, senderID, text)
	// with a timestamp at or after since, or ErrMessageNotFound. Backs the
	// windowed duplicate check.
	FindRecentMessage(ctx context.Context, gigID, senderID, text string, since int64) (*types.StoredMessage, error)

	// ConversationHistory returns all messages for a gig ordered by
	// timestamp ascending.
	ConversationHistory(ctx context.Context, gigID string) ([]*types.StoredMessage, error)

	// GetProfile returns the display profile for a user, or
	// ErrProfileNotFound.
	GetProfile(ctx context.Context, userID string) (*types.Profile, error)

	// UpsertProfile creates or replaces a display profile.
	UpsertProfile(ctx context.Context, profile *types.Profile) error

	// HealthCheck verifies store connectivity and basic reads.
	HealthCheck(ctx context.Context) error

	// Close releases store resources after pending writes complete.
	Close() error
}
