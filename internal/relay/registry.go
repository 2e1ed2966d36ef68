package relay

import (
	"log"
	"sync"

	"gigrelay/pkg/types"
)

// Registry tracks live connections grouped by user identity. Invariant: at
// most one connection per (userId, gigId); admitting a newer one evicts the
// prior holder of the slot. The per-gig index makes audience lookup O(1)
// instead of a scan over all live connections.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[string]*Connection // userID -> gigID -> Connection
	byGig  map[string]map[string]*Connection // gigID -> userID -> Connection
}

// NewRegistry creates a new connection registry
func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[string]*Connection),
		byGig:  make(map[string]map[string]*Connection),
	}
}

// Admit registers a connection under its bound (userId, gigId). Any existing
// connection for the same slot is closed with a superseded status and
// removed first; the close runs asynchronously so eviction never deadlocks
// admission.
func (r *Registry) Admit(conn *Connection) error {
	if conn == nil {
		return ErrNilConnection
	}
	if conn.State() != StateAdmitted {
		return ErrConnectionNotAdmitted
	}

	key := conn.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byUser[key.UserID][key.GigID]; ok {
		go func() {
			if err := existing.CloseWithStatus(CloseSuperseded, "superseded by newer connection"); err != nil {
				log.Printf("Failed to close superseded connection: %v", err)
			}
		}()
	}

	if r.byUser[key.UserID] == nil {
		r.byUser[key.UserID] = make(map[string]*Connection)
	}
	r.byUser[key.UserID][key.GigID] = conn

	if r.byGig[key.GigID] == nil {
		r.byGig[key.GigID] = make(map[string]*Connection)
	}
	r.byGig[key.GigID][key.UserID] = conn

	return nil
}

// Remove deletes a connection from both indexes. Only the instance currently
// registered for the slot is removed, so a superseded connection's teardown
// never unregisters its replacement. Empty buckets are pruned.
func (r *Registry) Remove(conn *Connection) {
	if conn == nil {
		return
	}

	key := conn.Key()

	r.mu.Lock()
	defer r.mu.Unlock()

	registered, ok := r.byUser[key.UserID][key.GigID]
	if !ok || registered != conn {
		return
	}

	delete(r.byUser[key.UserID], key.GigID)
	if len(r.byUser[key.UserID]) == 0 {
		delete(r.byUser, key.UserID)
	}

	if bucket, ok := r.byGig[key.GigID]; ok {
		delete(bucket, key.UserID)
		if len(bucket) == 0 {
			delete(r.byGig, key.GigID)
		}
	}
}

// Matching returns every registered connection that is a party to the
// conversation: same gigId, and a bound userId equal to the key's seller or
// the key's own user. The result is a snapshot safe to iterate while other
// connections admit or close.
func (r *Registry) Matching(key types.ConversationKey) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.byGig[key.GigID]
	if !ok {
		return nil
	}

	var audience []*Connection
	if conn, ok := bucket[key.SellerID]; ok {
		audience = append(audience, conn)
	}
	if key.UserID != key.SellerID {
		if conn, ok := bucket[key.UserID]; ok {
			audience = append(audience, conn)
		}
	}

	return audience
}

// CountForGig returns the number of live connections bound to a gig.
func (r *Registry) CountForGig(gigID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byGig[gigID])
}

// CloseAll closes every registered connection and empties the registry.
// Used during shutdown after the HTTP server stops accepting upgrades.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	var conns []*Connection
	for _, gigs := range r.byUser {
		for _, conn := range gigs {
			conns = append(conns, conn)
		}
	}
	r.byUser = make(map[string]map[string]*Connection)
	r.byGig = make(map[string]map[string]*Connection)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

// Stats returns registry statistics for the health endpoint.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, gigs := range r.byUser {
		total += len(gigs)
	}

	return map[string]int{
		"total_connections":    total,
		"active_conversations": len(r.byGig),
	}
}
