// Package dedup implements duplicate suppression for inbound messages.
// Two strategies exist behind the interfaces.Suppressor contract: a
// time-windowed content match and a strict client-key match. Deployments
// pick one; the windowed strategy can collapse distinct rapid identical
// messages, so deployments needing real idempotency configure strict.
package dedup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

// DefaultWindow is the lookback interval for the windowed strategy.
const DefaultWindow = 5000 * time.Millisecond

// Strategy names accepted by New.
const (
	StrategyWindow = "window"
	StrategyStrict = "strict"
)

// New returns the suppressor for the named strategy.
func New(strategy string, store interfaces.MessageStore, window time.Duration) (interfaces.Suppressor, error) {
	switch strategy {
	case StrategyWindow:
		return NewWindowSuppressor(store, window), nil
	case StrategyStrict:
		return NewStrictSuppressor(store), nil
	default:
		return nil, fmt.Errorf("unknown dedup strategy %q", strategy)
	}
}

// WindowSuppressor treats a candidate as a duplicate when a stored message
// with the same (gigId, senderId, text) exists within the lookback window of
// the candidate timestamp.
type WindowSuppressor struct {
	store  interfaces.MessageStore
	window time.Duration
}

// NewWindowSuppressor creates a windowed suppressor. A non-positive window
// falls back to DefaultWindow.
func NewWindowSuppressor(store interfaces.MessageStore, window time.Duration) *WindowSuppressor {
	if window <= 0 {
		window = DefaultWindow
	}
	return &WindowSuppressor{store: store, window: window}
}

// IsDuplicate consults the store for a windowed content match.
func (s *WindowSuppressor) IsDuplicate(ctx context.Context, candidate *types.StoredMessage) (bool, error) {
	since := candidate.Timestamp - s.window.Milliseconds()
	_, err := s.store.FindRecentMessage(ctx, candidate.GigID, candidate.UserID, candidate.Text, since)
	if err != nil {
		if errors.Is(err, interfaces.ErrMessageNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// StrictSuppressor treats a candidate as a duplicate only on an exact
// messageId collision. Candidates without a client-supplied id are never
// duplicates; the server assigns them fresh ids.
type StrictSuppressor struct {
	store interfaces.MessageStore
}

// NewStrictSuppressor creates a strict suppressor.
func NewStrictSuppressor(store interfaces.MessageStore) *StrictSuppressor {
	return &StrictSuppressor{store: store}
}

// IsDuplicate consults the store for an id collision.
func (s *StrictSuppressor) IsDuplicate(ctx context.Context, candidate *types.StoredMessage) (bool, error) {
	if candidate.MessageID == "" {
		return false, nil
	}
	_, err := s.store.FindMessageByID(ctx, candidate.MessageID)
	if err != nil {
		if errors.Is(err, interfaces.ErrMessageNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
