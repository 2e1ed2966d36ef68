package relay

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"gigrelay/pkg/types"
)

// State is the connection lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateAdmitted
	StateClosed
)

// Close code sent to a connection evicted by a newer connection claiming the
// same (user, gig) slot.
const CloseSuperseded = 4001

// Connection wraps a WebSocket bound to one conversation. All writes go
// through a single writer goroutine so concurrent broadcasts never race on
// the underlying socket.
type Connection struct {
	ws        *websocket.Conn
	key       types.ConversationKey
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex
	state     State
}

// NewConnection creates a connection wrapper in the Connecting state and
// starts its writer goroutine.
func NewConnection(ws *websocket.Conn, key types.ConversationKey) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		ws:      ws,
		key:     key,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
		state:   StateConnecting,
	}

	go c.writeLoop()

	return c
}

// Key returns the conversation this connection is bound to.
func (c *Connection) Key() types.ConversationKey {
	return c.key
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// MarkAdmitted transitions Connecting -> Admitted. Only admitted connections
// may enter the registry.
func (c *Connection) MarkAdmitted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateConnecting {
		c.state = StateAdmitted
	}
}

// Done is closed when the connection is torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// writeLoop is the single writer goroutine.
func (c *Connection) writeLoop() {
	defer func() {
		for len(c.writeCh) > 0 {
			<-c.writeCh
		}
		close(c.writeCh)
	}()

	for {
		select {
		case data, ok := <-c.writeCh:
			if !ok {
				return
			}

			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Write queues a pre-serialized payload for delivery.
func (c *Connection) Write(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-time.After(5 * time.Second):
		return ErrWriteTimeout
	case <-c.ctx.Done():
		return ErrConnectionClosed
	}
}

// WriteJSON serializes v and queues it for delivery.
func (c *Connection) WriteJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}
	return c.Write(data)
}

// CloseWithStatus sends a close frame with the given code and reason, then
// tears the connection down. Used for admission rejections (policy
// violation) and eviction (CloseSuperseded).
func (c *Connection) CloseWithStatus(code int, reason string) error {
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	return c.Close()
}

// Close tears the connection down exactly once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.mu.Unlock()

		c.cancel()

		if c.ws != nil {
			err = c.ws.Close()
		}
	})
	return err
}
