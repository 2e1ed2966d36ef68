package relay

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gigrelay/internal/profile"
	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Authentication happens upstream; origin policy belongs there too.
		return true
	},
	HandshakeTimeout: 10 * time.Second,
}

// Handler runs the per-connection lifecycle: admission handshake, inbound
// message loop, and teardown.
type Handler struct {
	registry   *Registry
	store      interfaces.MessageStore
	profiles   *profile.Manager
	suppressor interfaces.Suppressor
	router     *Router
	limiter    *RateLimiter
	queueSize  int
}

// NewHandler creates a relay handler. queueSize bounds each connection's
// inbound queue; messages on one connection are processed strictly in order.
func NewHandler(registry *Registry, store interfaces.MessageStore, profiles *profile.Manager, suppressor interfaces.Suppressor, router *Router, queueSize int) *Handler {
	if queueSize <= 0 {
		queueSize = 16
	}
	return &Handler{
		registry:   registry,
		store:      store,
		profiles:   profiles,
		suppressor: suppressor,
		router:     router,
		limiter:    NewRateLimiter(),
		queueSize:  queueSize,
	}
}

// RunMaintenance prunes idle rate-limit state once per window until the
// context ends.
func (h *Handler) RunMaintenance(ctx context.Context) {
	ticker := time.NewTicker(rateLimitWindow)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.limiter.Cleanup()
		}
	}
}

// HandleRelay upgrades the request and runs the admission handshake. The
// socket is established first so rejections can carry a structured error
// payload and a policy-violation close code; the registry is never touched
// for a rejected connection.
func (h *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	query := r.URL.Query()
	key := types.ConversationKey{
		GigID:    query.Get("gigId"),
		SellerID: query.Get("sellerId"),
		UserID:   query.Get("userId"),
	}

	if err := key.Validate(); err != nil {
		_ = ws.WriteJSON(types.ErrorPayload{Error: err.Error()})
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(time.Second))
		_ = ws.Close()
		return
	}

	conn := NewConnection(ws, key)
	conn.MarkAdmitted()
	if err := h.registry.Admit(conn); err != nil {
		log.Printf("Failed to admit connection: %v", err)
		_ = conn.Close()
		return
	}

	log.Printf("Connection admitted: gig=%s user=%s", key.GigID, key.UserID)

	go h.serve(conn)
}

// serve owns the connection from admission to teardown. A bounded inbound
// queue drained by a single goroutine keeps per-connection processing
// sequential without blocking the read loop's close detection; registry
// removal runs exactly once, immediately on transport close.
func (h *Handler) serve(conn *Connection) {
	defer func() {
		h.registry.Remove(conn)
		_ = conn.Close()
		log.Printf("Connection closed: gig=%s user=%s", conn.Key().GigID, conn.Key().UserID)
	}()

	if err := conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second)); err != nil {
		log.Printf("Failed to set read deadline: %v", err)
		return
	}
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.ws.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			case <-conn.Done():
				return
			}
		}
	}()

	inbound := make(chan []byte, h.queueSize)
	go func() {
		for data := range inbound {
			h.processMessage(conn, data)
		}
	}()
	defer close(inbound)

	for {
		messageType, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, CloseSuperseded) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}

		select {
		case inbound <- data:
		case <-conn.Done():
			return
		}
	}
}

// processMessage runs one inbound message through validation, rate limiting,
// duplicate suppression, persistence, enrichment, and fan-out. Every failure
// is reported to the originating connection only and never disturbs other
// connections or the registry.
func (h *Handler) processMessage(conn *Connection, data []byte) {
	var inbound types.InboundMessage
	if err := json.Unmarshal(data, &inbound); err != nil {
		h.sendError(conn, "invalid message payload")
		return
	}

	if err := inbound.Validate(); err != nil {
		h.sendError(conn, err.Error())
		return
	}

	if inbound.GigID != conn.Key().GigID {
		h.sendError(conn, "gigId does not match connection")
		return
	}

	if !h.limiter.Allow(inbound.SenderID) {
		h.sendError(conn, "rate limit exceeded")
		return
	}

	// Server assigns the timestamp when the client omits one; the client id,
	// if any, is preserved so the strict suppressor can key on it.
	candidate := &types.StoredMessage{
		MessageID:   inbound.MessageID,
		GigID:       inbound.GigID,
		UserID:      inbound.SenderID,
		RecipientID: inbound.RecipientID,
		Text:        inbound.Text,
		Timestamp:   inbound.Timestamp,
	}
	if candidate.Timestamp == 0 {
		candidate.Timestamp = time.Now().UnixMilli()
	}

	// Teardown is never gated on these store calls; a write completing after
	// disconnect is simply not delivered because Matching no longer includes
	// the closed connection.
	ctx := context.Background()

	duplicate, err := h.suppressor.IsDuplicate(ctx, candidate)
	if err != nil {
		log.Printf("Duplicate check failed: %v", err)
		h.sendError(conn, "internal server error")
		return
	}
	if duplicate {
		h.sendError(conn, "duplicate message")
		return
	}

	if candidate.MessageID == "" {
		candidate.MessageID = uuid.New().String()
	}

	if err := h.store.AppendMessage(ctx, candidate); err != nil {
		log.Printf("Failed to persist message: %v", err)
		h.sendError(conn, "internal server error")
		return
	}

	if err := h.profiles.Enrich(ctx, candidate); err != nil {
		log.Printf("Failed to enrich message %s: %v", candidate.MessageID, err)
		h.sendError(conn, "internal server error")
		return
	}

	delivered := h.router.Broadcast(conn.Key(), candidate)
	log.Printf("Message routed: gig=%s from=%s delivered=%d", candidate.GigID, candidate.UserID, delivered)
}

// sendError reports a structured rejection to the originating connection.
func (h *Handler) sendError(conn *Connection, reason string) {
	if err := conn.WriteJSON(types.ErrorPayload{Error: reason}); err != nil {
		log.Printf("Failed to send error payload: %v", err)
	}
}
