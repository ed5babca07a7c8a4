// Package presence tracks which users currently have a live session.
package presence

import (
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"chat-sync/internal/logx"
	"chat-sync/internal/models"
	"chat-sync/internal/observability"
	"chat-sync/internal/protocol"
)

var (
	// ErrSendQueueFull is returned by a Session whose outbound queue is full.
	ErrSendQueueFull = errors.New("session send queue full")
	// ErrSessionClosed is returned by Send after Close.
	ErrSessionClosed = errors.New("session closed")
)

// Session is the transport handle of one live connection.
type Session interface {
	// Send queues a frame without blocking.
	Send(frame protocol.Frame) error
	// Close shuts the transport down. It is idempotent; Send fails afterwards.
	Close()
}

type entry struct {
	session  Session
	clientID string
}

// Registry maps each user to at most one live session.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]entry
	logger  zerolog.Logger

	locksMu sync.Mutex
	locks   map[int]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int]entry),
		logger:  logx.Component("presence"),
		locks:   make(map[int]*userLock),
	}
}

// Register makes session the live session of userID. A previous session
// opened by a different client instance is closed and evicted. A previous
// session of the same client instance is replaced and left to close itself.
func (r *Registry) Register(userID int, session Session, clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.entries[userID]; ok && prev.session != session {
		if prev.clientID != clientID {
			prev.session.Close()
			observability.IncSessionEvicted()
			r.logger.Info().
				Int("user_id", userID).
				Str("old_client_id", prev.clientID).
				Str("client_id", clientID).
				Msg("evicted previous session")
		}
	}
	r.entries[userID] = entry{session: session, clientID: clientID}
	observability.SetSessionsRegistered(len(r.entries))
}

// Unregister removes userID only while session is still its live session, so
// a late close of a replaced session cannot evict its successor. It reports
// whether an entry was removed.
func (r *Registry) Unregister(userID int, session Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.entries[userID]
	if !ok || cur.session != session {
		return false
	}
	delete(r.entries, userID)
	observability.SetSessionsRegistered(len(r.entries))
	return true
}

// LockUser serializes presence transitions of one user. Callers hold it
// across Register or Unregister and the presence write and broadcast that
// follow, so an older session going offline cannot land after a newer one
// came online. The returned func releases the lock.
func (r *Registry) LockUser(userID int) func() {
	r.locksMu.Lock()
	l, ok := r.locks[userID]
	if !ok {
		l = &userLock{}
		r.locks[userID] = l
	}
	l.refs++
	r.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		r.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(r.locks, userID)
		}
		r.locksMu.Unlock()
	}
}

// IsReachable reports whether userID has a live session.
func (r *Registry) IsReachable(userID int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[userID]
	return ok
}

// Route returns the live session of userID.
func (r *Registry) Route(userID int) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[userID]
	return e.session, ok
}

// Online lists the registered users in ascending order.
func (r *Registry) Online() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Ints(ids)
	return ids
}

// Count returns the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// BroadcastPresence pushes a user_status frame for userID to every live
// session. Sends happen outside the lock; a failing session is logged and
// skipped.
func (r *Registry) BroadcastPresence(userID int, status models.PresenceStatus) {
	r.mu.RLock()
	targets := make(map[int]Session, len(r.entries))
	for id, e := range r.entries {
		targets[id] = e.session
	}
	r.mu.RUnlock()

	frame := protocol.UserStatusFrame(userID, status)
	for id, s := range targets {
		if err := s.Send(frame); err != nil {
			observability.IncPush(string(frame.Type), observability.OutcomeFailed)
			r.logger.Warn().Err(err).
				Int("user_id", id).
				Int("subject_id", userID).
				Msg("presence push failed")
			continue
		}
		observability.IncPush(string(frame.Type), observability.OutcomeSent)
	}
}

// Shutdown closes every live session. Entries are removed by the sessions'
// own close path.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	sessions := make([]Session, 0, len(r.entries))
	for _, e := range r.entries {
		sessions = append(sessions, e.session)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
	r.logger.Info().Int("sessions", len(sessions)).Msg("closed live sessions")
}
