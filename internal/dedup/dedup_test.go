package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

const (
	gigID    = "64a1f2e3b4c5d6a7b8c9d0e1"
	senderID = "64a1f2e3b4c5d6a7b8c9d0e3"
)

// fakeStore implements just enough of MessageStore for suppressor tests.
type fakeStore struct {
	messages []*types.StoredMessage
	readErr  error
}

func (f *fakeStore) AppendMessage(ctx context.Context, m *types.StoredMessage) error {
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) FindMessageByID(ctx context.Context, id string) (*types.StoredMessage, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	for _, m := range f.messages {
		if m.MessageID == id {
			return m, nil
		}
	}
	return nil, interfaces.ErrMessageNotFound
}

func (f *fakeStore) FindRecentMessage(ctx context.Context, gig, sender, text string, since int64) (*types.StoredMessage, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	for _, m := range f.messages {
		if m.GigID == gig && m.UserID == sender && m.Text == text && m.Timestamp >= since {
			return m, nil
		}
	}
	return nil, interfaces.ErrMessageNotFound
}

func (f *fakeStore) ConversationHistory(ctx context.Context, gig string) ([]*types.StoredMessage, error) {
	return f.messages, nil
}

func (f *fakeStore) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	return nil, interfaces.ErrProfileNotFound
}

func (f *fakeStore) UpsertProfile(ctx context.Context, p *types.Profile) error { return nil }
func (f *fakeStore) HealthCheck(ctx context.Context) error                     { return nil }
func (f *fakeStore) Close() error                                              { return nil }

func storedMessage(id string, ts int64) *types.StoredMessage {
	return &types.StoredMessage{
		MessageID: id,
		GigID:     gigID,
		UserID:    senderID,
		Text:      "hello",
		Timestamp: ts,
	}
}

func TestNewStrategySelection(t *testing.T) {
	store := &fakeStore{}

	s, err := New(StrategyWindow, store, 0)
	if err != nil {
		t.Fatalf("window strategy: %v", err)
	}
	if _, ok := s.(*WindowSuppressor); !ok {
		t.Errorf("expected WindowSuppressor, got %T", s)
	}

	s, err = New(StrategyStrict, store, 0)
	if err != nil {
		t.Fatalf("strict strategy: %v", err)
	}
	if _, ok := s.(*StrictSuppressor); !ok {
		t.Errorf("expected StrictSuppressor, got %T", s)
	}

	if _, err := New("fuzzy", store, 0); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestWindowSuppressorInsideWindow(t *testing.T) {
	store := &fakeStore{}
	base := time.Now().UnixMilli()
	store.messages = append(store.messages, storedMessage("m1", base))

	s := NewWindowSuppressor(store, DefaultWindow)

	dup, err := s.IsDuplicate(context.Background(), storedMessage("", base+3000))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if !dup {
		t.Error("resubmission inside the window should be a duplicate")
	}
}

func TestWindowSuppressorOutsideWindow(t *testing.T) {
	store := &fakeStore{}
	base := time.Now().UnixMilli()
	store.messages = append(store.messages, storedMessage("m1", base))

	s := NewWindowSuppressor(store, DefaultWindow)

	dup, err := s.IsDuplicate(context.Background(), storedMessage("", base+6000))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if dup {
		t.Error("resubmission outside the window should be treated as new")
	}
}

func TestWindowSuppressorDifferentContent(t *testing.T) {
	store := &fakeStore{}
	base := time.Now().UnixMilli()
	store.messages = append(store.messages, storedMessage("m1", base))

	s := NewWindowSuppressor(store, DefaultWindow)

	candidate := storedMessage("", base+100)
	candidate.Text = "different"
	dup, err := s.IsDuplicate(context.Background(), candidate)
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if dup {
		t.Error("different text should not match")
	}
}

func TestWindowSuppressorStoreError(t *testing.T) {
	store := &fakeStore{readErr: errors.New("disk on fire")}
	s := NewWindowSuppressor(store, DefaultWindow)

	if _, err := s.IsDuplicate(context.Background(), storedMessage("", 1000)); err == nil {
		t.Error("store errors must propagate")
	}
}

func TestStrictSuppressor(t *testing.T) {
	store := &fakeStore{}
	store.messages = append(store.messages, storedMessage("client-key-1", 1000))

	s := NewStrictSuppressor(store)

	dup, err := s.IsDuplicate(context.Background(), storedMessage("client-key-1", 2000))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if !dup {
		t.Error("id collision should be a duplicate")
	}

	dup, err = s.IsDuplicate(context.Background(), storedMessage("client-key-2", 2000))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if dup {
		t.Error("unseen id should not be a duplicate")
	}

	// No client id means the server assigns a fresh one later.
	dup, err = s.IsDuplicate(context.Background(), storedMessage("", 2000))
	if err != nil {
		t.Fatalf("IsDuplicate: %v", err)
	}
	if dup {
		t.Error("candidate without a client id is never a duplicate")
	}
}
