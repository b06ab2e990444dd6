// Package session keeps one interactive backtest pipeline per browser
// session.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/newthinker/quantlens/internal/core"
	"github.com/newthinker/quantlens/internal/pipeline"
	"go.uber.org/zap"
)

// CookieName is the cookie carrying the session ID.
const CookieName = "quantlens_session"

// Session is one browser's backtest workspace.
type Session struct {
	ID        string
	CreatedAt time.Time
	*Results

	lastSeen time.Time
}

// Gauge receives the number of live sessions.
type Gauge interface {
	SetSessionsActive(count int)
}

// Factory builds the pipeline for a new session.
type Factory func(id string) *pipeline.Pipeline

// Store holds sessions in memory. Sessions idle for longer than the TTL
// expire; at capacity the oldest session is evicted.
type Store struct {
	sessions map[string]*Session
	order    []string // creation order, for eviction
	maxSize  int
	ttl      time.Duration
	factory  Factory
	gauge    Gauge
	logger   *zap.Logger
	now      func() time.Time
	mu       sync.Mutex
}

// NewStore creates a session store.
func NewStore(maxSize int, ttl time.Duration, factory Factory, logger *zap.Logger) *Store {
	if maxSize <= 0 {
		maxSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		sessions: make(map[string]*Session),
		order:    make([]string, 0, maxSize),
		maxSize:  maxSize,
		ttl:      ttl,
		factory:  factory,
		logger:   logger,
		now:      time.Now,
	}
}

// SetGauge reports the session count to g on every change.
func (s *Store) SetGauge(g Gauge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gauge = g
	g.SetSessionsActive(len(s.sessions))
}

// Create starts a new session.
func (s *Store) Create() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.expireLocked(now)

	id := uuid.NewString()
	sess := &Session{
		ID:        id,
		CreatedAt: now,
		Results:   NewResults(s.factory(id), s.logger),
		lastSeen:  now,
	}

	for len(s.sessions) >= s.maxSize && len(s.order) > 0 {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.sessions, oldest)
		s.logger.Debug("evicted session", zap.String("session", oldest))
	}

	s.sessions[id] = sess
	s.order = append(s.order, id)
	s.reportLocked()

	s.logger.Debug("created session", zap.String("session", id))
	return sess
}

// Get returns a live session and marks it as used.
func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	if s.expired(sess, now) {
		s.removeLocked(id)
		s.reportLocked()
		return nil, core.ErrSessionNotFound
	}
	sess.lastSeen = now
	return sess, nil
}

// GetOrCreate returns the session for id, or a new one if id is unknown
// or expired. created reports which happened.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if id != "" {
		if sess, err := s.Get(id); err == nil {
			return sess, false
		}
	}
	return s.Create(), true
}

// Len returns the number of stored sessions, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// TTL is the idle lifetime of a session.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) expired(sess *Session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}

func (s *Store) expireLocked(now time.Time) {
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			s.removeLocked(id)
			s.logger.Debug("expired session", zap.String("session", id))
		}
	}
}

func (s *Store) removeLocked(id string) {
	delete(s.sessions, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) reportLocked() {
	if s.gauge != nil {
		s.gauge.SetSessionsActive(len(s.sessions))
	}
}
