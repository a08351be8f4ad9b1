// services/session_registry.go
package services

import (
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Game kinds served by the coordinator.
const (
	GameKniffel   = "kniffel"
	GameOlympiade = "olympiade"
)

const maxDisplayNameLen = 32

// normalizeDisplayName trims and NFC-normalizes a player name.
func normalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(norm.NFC.String(name))
	if name == "" {
		return "", validationf("name is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return "", validationf("name must be at most %d characters", maxDisplayNameLen)
	}
	return name, nil
}

// Session is one open transport connection and the identities it joined as.
type Session struct {
	ConnectionID string
	OpenedAt     time.Time
	Players      map[string]string // game kind -> player id
}

// SessionRegistry maps connection ids to player identities per game.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[string]*Session)}
}

// Open registers a new connection.
func (r *SessionRegistry) Open(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connectionID] = &Session{
		ConnectionID: connectionID,
		OpenedAt:     time.Now(),
		Players:      make(map[string]string),
	}
}

// Has reports whether the connection is open.
func (r *SessionRegistry) Has(connectionID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[connectionID]
	return ok
}

// Bind records that connectionID acts as playerID in game.
func (r *SessionRegistry) Bind(connectionID, game, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return notFoundf("unknown connection %q, open the event stream first", connectionID)
	}
	sess.Players[game] = playerID
	return nil
}

// PlayerFor resolves the identity a connection joined game with.
func (r *SessionRegistry) PlayerFor(connectionID, game string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return "", false
	}
	id, ok := sess.Players[game]
	return id, ok
}

// Close forgets the connection and returns what it was bound to.
func (r *SessionRegistry) Close(connectionID string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[connectionID]
	if !ok {
		return Session{}, false
	}
	delete(r.sessions, connectionID)
	return *sess, true
}

// Count returns the number of open sessions.
func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
