package remote

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSessionCacheGetOrLogin(t *testing.T) {
	cache := NewSessionCache(time.Minute)
	logins := 0
	login := func(context.Context) (*Session, error) {
		logins++
		return &Session{Token: "tok"}, nil
	}

	ctx := context.Background()
	key := Key("dc1", "admin")

	s, err := cache.GetOrLogin(ctx, key, login)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if s.Token != "tok" {
		t.Fatalf("token = %q", s.Token)
	}

	// Second call within TTL is a cache hit.
	if _, err := cache.GetOrLogin(ctx, key, login); err != nil {
		t.Fatalf("cached login failed: %v", err)
	}
	if logins != 1 {
		t.Fatalf("logins = %d, want 1", logins)
	}

	// Different project pair logs in independently.
	if _, err := cache.GetOrLogin(ctx, Key("dc1", "team-a"), login); err != nil {
		t.Fatalf("second pair login failed: %v", err)
	}
	if logins != 2 {
		t.Fatalf("logins = %d, want 2", logins)
	}
}

func TestSessionCacheExpiry(t *testing.T) {
	cache := NewSessionCache(10 * time.Millisecond)
	logins := 0
	login := func(context.Context) (*Session, error) {
		logins++
		return &Session{Token: "tok", IssuedAt: time.Now().Add(-time.Minute)}, nil
	}

	key := Key("dc1", "admin")
	if _, err := cache.GetOrLogin(context.Background(), key, login); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	// The session was issued in the past, so the next call re-logins.
	if _, err := cache.GetOrLogin(context.Background(), key, login); err != nil {
		t.Fatalf("relogin failed: %v", err)
	}
	if logins != 2 {
		t.Fatalf("logins = %d, want expiry to force re-login", logins)
	}
}

func TestSessionCacheLoginFailureNotCached(t *testing.T) {
	cache := NewSessionCache(time.Minute)
	boom := errors.New("denied")
	calls := 0
	login := func(context.Context) (*Session, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return &Session{Token: "tok"}, nil
	}

	key := Key("dc1", "admin")
	if _, err := cache.GetOrLogin(context.Background(), key, login); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want login failure surfaced", err)
	}
	if cache.Len() != 0 {
		t.Fatal("failed login must not be cached")
	}

	if _, err := cache.GetOrLogin(context.Background(), key, login); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestSessionCacheInvalidate(t *testing.T) {
	cache := NewSessionCache(time.Minute)
	logins := 0
	login := func(context.Context) (*Session, error) {
		logins++
		return &Session{Token: "tok"}, nil
	}

	key := Key("dc1", "admin")
	ctx := context.Background()
	if _, err := cache.GetOrLogin(ctx, key, login); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	cache.Invalidate(key)
	if _, err := cache.GetOrLogin(ctx, key, login); err != nil {
		t.Fatalf("relogin failed: %v", err)
	}
	if logins != 2 {
		t.Fatalf("logins = %d, want invalidation to force re-login", logins)
	}
}

func TestErrorClassification(t *testing.T) {
	auth := NewAuthError("login", errors.New("401"))
	notFound := NewNotFoundError("attachments", errors.New("404"))
	timeout := NewTimeoutError("servers", errors.New("deadline"))
	unavailable := NewUnavailableError("ports", errors.New("503"))

	if !IsAuth(auth) || IsAuth(notFound) {
		t.Fatal("IsAuth misclassifies")
	}
	if !IsNotFound(notFound) || IsNotFound(auth) {
		t.Fatal("IsNotFound misclassifies")
	}
	if !IsUnavailable(unavailable) || !IsUnavailable(timeout) {
		t.Fatal("IsUnavailable should cover timeouts")
	}
	if IsUnavailable(notFound) {
		t.Fatal("NotFound is not unavailability")
	}
}
