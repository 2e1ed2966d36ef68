package relay

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"

	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

const (
	testGigID    = "64a1f2e3b4c5d6a7b8c9d0e1"
	testGigID2   = "64a1f2e3b4c5d6a7b8c9d0f9"
	testSellerID = "64a1f2e3b4c5d6a7b8c9d0e2"
	testBuyerID  = "64a1f2e3b4c5d6a7b8c9d0e3"
	testOtherID  = "64a1f2e3b4c5d6a7b8c9d0e4"
)

// Test WebSocket upgrader for creating test connections
var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func testKey(gigID, sellerID, userID string) types.ConversationKey {
	return types.ConversationKey{GigID: gigID, SellerID: sellerID, UserID: userID}
}

// createTestWebSocketConnection returns the client side of a live WebSocket
// whose server side just drains frames.
func createTestWebSocketConnection(t *testing.T) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		defer conn.Close()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}))

	t.Cleanup(func() { server.Close() })

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to create test WebSocket connection: %v", err)
	}

	return conn
}

// newConnPair returns both ends of a live WebSocket so tests can write on
// the server side and read delivered frames on the client side.
func newConnPair(t *testing.T) (serverSide *websocket.Conn, clientSide *websocket.Conn) {
	t.Helper()

	serverCh := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("Failed to upgrade connection: %v", err)
			return
		}
		serverCh <- conn
	}))

	t.Cleanup(func() { server.Close() })

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	clientSide, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial test server: %v", err)
	}

	return <-serverCh, clientSide
}

// memStore is an in-memory MessageStore for relay tests.
type memStore struct {
	mu       sync.Mutex
	messages []*types.StoredMessage
	profiles map[string]*types.Profile
}

func newMemStore() *memStore {
	return &memStore{profiles: make(map[string]*types.Profile)}
}

func (s *memStore) AppendMessage(ctx context.Context, m *types.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *m
	s.messages = append(s.messages, &stored)
	return nil
}

func (s *memStore) FindMessageByID(ctx context.Context, id string) (*types.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.MessageID == id {
			return m, nil
		}
	}
	return nil, interfaces.ErrMessageNotFound
}

func (s *memStore) FindRecentMessage(ctx context.Context, gigID, senderID, text string, since int64) (*types.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.GigID == gigID && m.UserID == senderID && m.Text == text && m.Timestamp >= since {
			return m, nil
		}
	}
	return nil, interfaces.ErrMessageNotFound
}

func (s *memStore) ConversationHistory(ctx context.Context, gigID string) ([]*types.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*types.StoredMessage
	for _, m := range s.messages {
		if m.GigID == gigID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, interfaces.ErrProfileNotFound
	}
	return p, nil
}

func (s *memStore) UpsertProfile(ctx context.Context, p *types.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.UserID] = p
	return nil
}

func (s *memStore) HealthCheck(ctx context.Context) error { return nil }
func (s *memStore) Close() error                          { return nil }

func (s *memStore) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
