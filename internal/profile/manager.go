package profile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

// Manager caches sender display profiles in front of the store and joins
// them onto messages before delivery.
type Manager struct {
	store    interfaces.MessageStore
	profiles map[string]*types.Profile // userID -> Profile
	mu       sync.RWMutex
}

// NewManager creates a new profile manager
func NewManager(store interfaces.MessageStore) *Manager {
	return &Manager{
		store:    store,
		profiles: make(map[string]*types.Profile),
	}
}

// Get retrieves a profile, cache first. Returns
// interfaces.ErrProfileNotFound when no profile is registered.
func (m *Manager) Get(ctx context.Context, userID string) (*types.Profile, error) {
	m.mu.RLock()
	profile, exists := m.profiles[userID]
	m.mu.RUnlock()
	if exists {
		return profile, nil
	}

	profile, err := m.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.profiles[userID] = profile
	m.mu.Unlock()

	return profile, nil
}

// Upsert persists a profile and refreshes the cache.
func (m *Manager) Upsert(ctx context.Context, profile *types.Profile) error {
	if !types.IsValidStoreID(profile.UserID) {
		return types.ErrInvalidUserID
	}
	if profile.Name == "" {
		return ErrMissingName
	}

	if err := m.store.UpsertProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	m.mu.Lock()
	m.profiles[profile.UserID] = profile
	m.mu.Unlock()

	log.Printf("Profile updated: user=%s", profile.UserID)
	return nil
}

// Enrich joins the sender's display profile onto a stored message. A user
// with no registered profile enriches with empty fields; only a store read
// failure is an error.
func (m *Manager) Enrich(ctx context.Context, message *types.StoredMessage) error {
	profile, err := m.Get(ctx, message.UserID)
	if err != nil {
		if errors.Is(err, interfaces.ErrProfileNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load sender profile: %w", err)
	}

	message.Name = profile.Name
	message.Avatar = profile.Avatar
	return nil
}
