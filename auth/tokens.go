package auth

import (
	"crypto/rand"
	"encoding/base64"
	"sync"
	"time"
)

// tokenStore maps random tokens to values that expire after a fixed lifetime.
// Sessions and pending logins both live in one.
type tokenStore[V any] struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]tokenEntry[V]
	now     func() time.Time
}

type tokenEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func newTokenStore[V any](ttl time.Duration) *tokenStore[V] {
	return &tokenStore[V]{
		ttl:     ttl,
		entries: make(map[string]tokenEntry[V]),
		now:     time.Now,
	}
}

// issue stores v under a fresh token and returns the token.
func (s *tokenStore[V]) issue(v V) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[token] = tokenEntry[V]{value: v, expiresAt: s.now().Add(s.ttl)}
	return token, nil
}

// lookup returns the value for an unexpired token.
func (s *tokenStore[V]) lookup(token string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(token)
}

// redeem returns the value for an unexpired token and forgets the token.
func (s *tokenStore[V]) redeem(token string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.live(token)
	delete(s.entries, token)
	return v, ok
}

func (s *tokenStore[V]) revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
}

// sweep drops expired entries and returns how many remain.
func (s *tokenStore[V]) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for token, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, token)
		}
	}
	return len(s.entries)
}

// live must be called with mu held.
func (s *tokenStore[V]) live(token string) (V, bool) {
	e, ok := s.entries[token]
	if !ok || s.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	return e.value, true
}

// newToken returns 32 random bytes, URL-safe encoded.
func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
