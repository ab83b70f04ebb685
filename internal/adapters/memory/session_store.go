package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/walkguide/internal/core/domain"
)

// SessionStore keeps discovery sessions in process memory. Sessions idle
// for longer than the TTL are treated as gone.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]domain.Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a SessionStore. A zero ttl keeps sessions forever.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *SessionStore) Create(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(sess.ID); ok {
		return fmt.Errorf("%w: session %s already exists", domain.ErrInvalidInput, sess.ID)
	}
	s.sessions[sess.ID] = clone(sess)
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	out := clone(&sess)
	return &out, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.lookup(sess.ID)
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, domain.ErrNotFound)
	}
	if cur.Version != sess.Version {
		return fmt.Errorf("session %s at version %d, write based on %d: %w",
			sess.ID, cur.Version, sess.Version, domain.ErrConflict)
	}
	sess.Version++
	s.sessions[sess.ID] = clone(sess)
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(id); !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	delete(s.sessions, id)
	return nil
}

// lookup must be called with mu held.
func (s *SessionStore) lookup(id string) (domain.Session, bool) {
	sess, ok := s.sessions[id]
	if !ok {
		return domain.Session{}, false
	}
	if s.ttl > 0 && s.now().Sub(sess.UpdatedAt) > s.ttl {
		delete(s.sessions, id)
		return domain.Session{}, false
	}
	return sess, true
}

// clone detaches the position pointer. VisitedSet is immutable and safe to share.
func clone(sess *domain.Session) domain.Session {
	out := *sess
	if sess.Position != nil {
		p := *sess.Position
		out.Position = &p
	}
	return out
}
