package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"insights-filter/internal/clock"
	"insights-filter/internal/insights"
	"insights-filter/internal/logger"
	"insights-filter/internal/metrics"
	"insights-filter/internal/utils"
)

var ErrSessionNotFound = errors.New("session not found")

// Session owns one loaded table and the highlight list applied to it.
type Session struct {
	ID         string
	Table      *insights.Table
	Highlights insights.HighlightSet
	CreatedAt  time.Time
	LastSeen   time.Time
}

// Store keeps sessions in memory and expires them after ttl of inactivity.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	clock    clock.Clock
	logger   *logger.Logger
}

func NewStore(ttl time.Duration, clk clock.Clock, log *logger.Logger) *Store {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		clock:    clk,
		logger:   log,
	}
}

// Create stores table under a fresh session ID.
func (s *Store) Create(table *insights.Table) *Session {
	now := s.clock.Now()
	sess := &Session{
		ID:         utils.GenerateSessionID(),
		Table:      table,
		Highlights: insights.HighlightSet{},
		CreatedAt:  now,
		LastSeen:   now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return sess
}

// Get returns a snapshot of the session and refreshes its idle timer.
// An expired session is removed and reported as not found.
func (s *Store) Get(id string) (Session, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if s.expired(sess, now) {
		delete(s.sessions, id)
		metrics.ActiveSessions.Set(float64(len(s.sessions)))
		return Session{}, ErrSessionNotFound
	}
	sess.LastSeen = now
	return *sess, nil
}

// SetHighlights replaces the session's highlight list.
func (s *Store) SetHighlights(id string, set insights.HighlightSet) error {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess, now) {
		return ErrSessionNotFound
	}
	if set == nil {
		set = insights.HighlightSet{}
	}
	sess.Highlights = set
	sess.LastSeen = now
	return nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes every expired session and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	if removed > 0 && s.logger != nil {
		s.logger.Info("SESSION", fmt.Sprintf("Expired %d idle sessions, %d remaining", removed, n))
	}
	return removed
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.LastSeen) > s.ttl
}
