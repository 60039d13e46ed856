// Package usecases - session.go keeps user identities stable across reconnects.
package usecases

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/0xcro3dile/localrag-gateway/internal/domain/entities"
)

// DefaultDisplayName is given to new users that did not supply a name.
const DefaultDisplayName = "Guest"

// SessionRegistry owns the map from user id to user state.
// Entries are never removed; a disconnected user is only deactivated.
type SessionRegistry struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*entities.User
	defaultName string
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry(defaultName string) *SessionRegistry {
	if strings.TrimSpace(defaultName) == "" {
		defaultName = DefaultDisplayName
	}
	return &SessionRegistry{
		users:       make(map[uuid.UUID]*entities.User),
		defaultName: defaultName,
	}
}

// ResolveOrCreate reattaches a known user to conn, or creates a new user.
// The boolean is true when a new user was created.
func (r *SessionRegistry) ResolveOrCreate(requestedID, displayName string, conn entities.Outbound) (entities.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if requestedID != "" {
		if id, err := uuid.Parse(requestedID); err == nil {
			if u, ok := r.users[id]; ok {
				u.IsActive = true
				u.Conn = conn
				log.Info().Str("user", id.String()).Str("name", u.DisplayName).Msg("user reconnected")
				return *u, false
			}
		}
		log.Debug().Str("requested_id", requestedID).Msg("unknown user id, minting a new one")
	}

	name := strings.TrimSpace(displayName)
	if name == "" {
		name = r.defaultName
	}
	u := &entities.User{
		ID:          r.newID(),
		DisplayName: name,
		IsActive:    true,
		Conn:        conn,
	}
	r.users[u.ID] = u
	log.Info().Str("user", u.ID.String()).Str("name", name).Msg("user created")
	return *u, true
}

// newID mints an id not present in the registry. Callers hold r.mu.
func (r *SessionRegistry) newID() uuid.UUID {
	for {
		id := uuid.New()
		if _, taken := r.users[id]; !taken {
			return id
		}
	}
}

// Deactivate marks the user inactive and clears its connection.
// It does nothing if conn is no longer the user's current connection,
// so a stale close cannot detach a newer session.
func (r *SessionRegistry) Deactivate(id uuid.UUID, conn entities.Outbound) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok || u.Conn != conn {
		return
	}
	u.IsActive = false
	u.Conn = nil
	log.Info().Str("user", id.String()).Msg("user disconnected")
}

// Lookup returns a copy of the user with the given id.
func (r *SessionRegistry) Lookup(id uuid.UUID) (entities.User, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return entities.User{}, false
	}
	return *u, true
}

// Len returns the number of known users, active or not.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

// ActiveCount returns the number of users with a live connection.
func (r *SessionRegistry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, u := range r.users {
		if u.IsActive {
			n++
		}
	}
	return n
}
