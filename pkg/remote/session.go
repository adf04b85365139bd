package remote

import (
	"context"
	"sync"
	"time"
)

// Session is the cached authentication state for one (idc, project)
// pair: the issued token, the identity catalog and the project map.
type Session struct {
	Token    string
	Regions  map[string]RegionDetail
	Projects map[string]string // name -> remote project ID
	IssuedAt time.Time
}

// LoginFunc performs a fresh login and catalog fetch.
type LoginFunc func(ctx context.Context) (*Session, error)

// SessionCache holds sessions keyed by (idc, project) with a fixed
// TTL. It replaces ambient process-wide session state: construct one,
// inject it into the client factory, and tear it down with Purge.
type SessionCache struct {
	ttl time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

// DefaultSessionTTL bounds how long a cached token is reused.
const DefaultSessionTTL = 5 * time.Minute

// NewSessionCache creates a cache with the given TTL; ttl <= 0 uses
// DefaultSessionTTL.
func NewSessionCache(ttl time.Duration) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionCache{
		ttl:      ttl,
		sessions: make(map[string]*Session),
	}
}

// Key builds the cache key for an IDC/project pair.
func Key(idc, project string) string {
	return idc + "/" + project
}

// Get returns a cached, unexpired session or nil.
func (c *SessionCache) Get(key string) *Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[key]
	if !ok {
		return nil
	}
	if time.Since(s.IssuedAt) >= c.ttl {
		delete(c.sessions, key)
		return nil
	}
	return s
}

// GetOrLogin returns the cached session for key, logging in via fn on
// miss or expiry. Login failures are not cached.
func (c *SessionCache) GetOrLogin(ctx context.Context, key string, fn LoginFunc) (*Session, error) {
	if s := c.Get(key); s != nil {
		return s, nil
	}

	s, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	if s.IssuedAt.IsZero() {
		s.IssuedAt = time.Now()
	}

	c.mu.Lock()
	c.sessions[key] = s
	c.mu.Unlock()
	return s, nil
}

// Invalidate drops the session for key, forcing a re-login on next
// use. Called when the control plane rejects a cached token.
func (c *SessionCache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.sessions, key)
	c.mu.Unlock()
}

// Purge drops every cached session.
func (c *SessionCache) Purge() {
	c.mu.Lock()
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()
}

// Len reports the number of cached sessions, expired or not.
func (c *SessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}
