package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implementa Store en memoria, para desarrollo y tests.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	sessions map[string]*memorySession
}

type memorySession struct {
	values    map[string]string
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:      ttl,
		sessions: make(map[string]*memorySession),
	}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(sid)
	if sess == nil {
		return "", false, nil
	}
	val, ok := sess.values[key]
	return val, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(sid)
	if sess == nil {
		sess = &memorySession{values: make(map[string]string)}
		s.sessions[sid] = sess
	}
	sess.values[key] = value
	sess.expiresAt = time.Now().UTC().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.live(sid)
	if sess == nil {
		return nil
	}
	for _, key := range keys {
		delete(sess.values, key)
	}
	return nil
}

func (s *MemoryStore) Destroy(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

func (s *MemoryStore) live(sid string) *memorySession {
	sess, ok := s.sessions[sid]
	if !ok {
		return nil
	}
	if !sess.expiresAt.IsZero() && time.Now().UTC().After(sess.expiresAt) {
		delete(s.sessions, sid)
		return nil
	}
	return sess
}
