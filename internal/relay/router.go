package relay

import (
	"encoding/json"
	"log"

	"gigrelay/pkg/types"
)

// Router computes the audience for an accepted message and performs
// fan-out. Stateless given the registry.
type Router struct {
	registry *Registry
}

// NewRouter creates a new message router
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Broadcast serializes the enriched message once and delivers it to every
// open audience connection. Delivery is fire-and-forget per connection:
// closed connections are skipped and reaped, and a failed write never aborts
// delivery to the rest. Returns the number of connections delivered to.
func (r *Router) Broadcast(key types.ConversationKey, message *types.StoredMessage) int {
	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("Failed to serialize message %s: %v", message.MessageID, err)
		return 0
	}

	delivered := 0
	for _, conn := range r.registry.Matching(key) {
		if conn.State() != StateAdmitted {
			r.reap(conn)
			continue
		}

		if err := conn.Write(payload); err != nil {
			log.Printf("Failed to deliver message to %s: %v", conn.Key().UserID, err)
			r.reap(conn)
			continue
		}
		delivered++
	}

	return delivered
}

// reap removes a dead connection found during fan-out.
func (r *Router) reap(conn *Connection) {
	r.registry.Remove(conn)
	_ = conn.Close()
}
