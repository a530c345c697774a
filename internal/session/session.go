/*-------------------------------------------------------------------------
 *
 * BigQuery Data Agent
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

// Package session keeps per-conversation state. The delegation flow writes
// bearer tokens into a session; tool calls only read them.
package session

import (
	"context"
	"sync"
	"time"
)

// TokenKey returns the reserved state key holding the delegated token for
// an authorization
func TokenKey(authID string) string {
	return "temp:" + authID
}

// State is a key/value bag scoped to one conversation
type State struct {
	mu     sync.RWMutex
	values map[string]string
	seen   time.Time
}

// NewState creates an empty state bag
func NewState() *State {
	return &State{values: make(map[string]string), seen: time.Now()}
}

// Get returns the value stored under key
func (s *State) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Set stores value under key
func (s *State) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

// Delete removes key
func (s *State) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

func (s *State) touch() {
	s.mu.Lock()
	s.seen = time.Now()
	s.mu.Unlock()
}

func (s *State) lastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seen
}

// Store maps session ids to their state
type Store struct {
	mu       sync.Mutex
	sessions map[string]*State
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*State)}
}

// Get returns the state of an existing session
func (s *Store) Get(id string) (*State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	if ok {
		state.touch()
	}
	return state, ok
}

// GetOrCreate returns the state for id, creating it on first use
func (s *Store) GetOrCreate(id string) *State {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.sessions[id]
	if !ok {
		state = NewState()
		s.sessions[id] = state
	} else {
		state.touch()
	}
	return state
}

// Delete ends a session
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Len returns the number of live sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Expire drops sessions not used for longer than idle and returns how many
// were removed
func (s *Store) Expire(idle time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-idle)
	removed := 0
	for id, state := range s.sessions {
		if state.lastSeen().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

type contextKey struct{}

// WithState attaches a session state to ctx
func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, contextKey{}, state)
}

// FromContext returns the session state attached to ctx, if any
func FromContext(ctx context.Context) (*State, bool) {
	state, ok := ctx.Value(contextKey{}).(*State)
	return state, ok && state != nil
}
