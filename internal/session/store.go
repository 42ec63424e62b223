package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-quote/internal/quote"
)

var (
	// ErrNotFound indicates the session does not exist or has expired.
	ErrNotFound = errors.New("session not found")
	// ErrLimitReached is returned when the store already holds the maximum number of sessions.
	ErrLimitReached = errors.New("session limit reached")
)

// Session is one visitor's quote in progress.
type Session struct {
	ID         uuid.UUID
	Builder    string
	Aggregator *quote.Aggregator
	CreatedAt  time.Time

	lastSeen time.Time
}

// StoreConfig configures a Store.
type StoreConfig struct {
	TTL time.Duration
	Max int
	Now func() time.Time
}

// Store keeps sessions in memory and expires them after TTL of inactivity.
type Store struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	ttl      time.Duration
	max      int
	now      func() time.Time
}

// NewStore constructs a Store. Zero values fall back to a 2h TTL and 10000 sessions.
func NewStore(cfg StoreConfig) *Store {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	limit := cfg.Max
	if limit <= 0 {
		limit = 10000
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		sessions: make(map[uuid.UUID]*Session),
		ttl:      ttl,
		max:      limit,
		now:      now,
	}
}

// TTL returns the inactivity timeout.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create registers a new session owning agg.
func (s *Store) Create(builder string, agg *quote.Aggregator) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if len(s.sessions) >= s.max {
		s.sweepLocked(now)
		if len(s.sessions) >= s.max {
			return nil, ErrLimitReached
		}
	}
	sess := &Session{
		ID:         uuid.New(),
		Builder:    builder,
		Aggregator: agg,
		CreatedAt:  now,
		lastSeen:   now,
	}
	s.sessions[sess.ID] = sess
	return sess, nil
}

// Get returns a live session and refreshes its expiry.
func (s *Store) Get(id string) (*Session, error) {
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, key)
		return nil, ErrNotFound
	}
	sess.lastSeen = now
	return sess, nil
}

// Touch refreshes a session's expiry.
func (s *Store) Touch(id string) error {
	_, err := s.Get(id)
	return err
}

// ExpiresAt reports when the session will expire if left idle.
func (s *Store) ExpiresAt(sess *Session) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sess.lastSeen.Add(s.ttl)
}

// Delete removes a session. Deleting an unknown or expired session returns ErrNotFound.
func (s *Store) Delete(id string) (*Session, error) {
	key, err := parseID(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.sessions, key)
	if s.expired(sess, s.now()) {
		return nil, ErrNotFound
	}
	return sess, nil
}

// Sweep drops sessions idle past the TTL and returns how many were removed.
func (s *Store) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(now)
}

func (s *Store) sweepLocked(now time.Time) int {
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of sessions held, including expired ones not yet swept.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// RunJanitor sweeps expired sessions every interval until ctx is cancelled. onSweep, when
// set, receives the removed and remaining counts after each pass.
func (s *Store) RunJanitor(ctx context.Context, interval time.Duration, onSweep func(removed, remaining int)) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := s.Sweep(s.now())
			if onSweep != nil {
				onSweep(removed, s.Len())
			}
		}
	}
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.lastSeen) > s.ttl
}

func parseID(id string) (uuid.UUID, error) {
	key, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", ErrNotFound, id)
	}
	return key, nil
}
