package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/cache"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const guestKey = "guest"

// Session is the single holder of identity for the flow. It is loaded from
// the store once and written through on Save/Clear.
type Session struct {
	mu    sync.RWMutex
	store cache.SessionStore
	key   string
	data  domain.SessionData
	now   func() time.Time
	log   *slog.Logger
}

func New(store cache.SessionStore, key string, log *slog.Logger) *Session {
	return &Session{
		store: store,
		key:   key,
		now:   time.Now,
		log:   log.With("component", "session"),
	}
}

// Load reads the stored session. A missing session is not an error.
func (s *Session) Load(ctx context.Context) error {
	data, err := s.store.GetSession(ctx, s.key)
	if errors.Is(err, cache.ErrCacheMiss) {
		s.set(domain.SessionData{})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.set(*data)
	return nil
}

func (s *Session) Save(ctx context.Context, data domain.SessionData) error {
	s.set(data)
	if err := s.store.SetSession(ctx, s.key, data); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Clear forgets the session locally even when the store fails.
func (s *Session) Clear(ctx context.Context) error {
	s.set(domain.SessionData{})
	if err := s.store.DeleteSession(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Session) set(data domain.SessionData) {
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
}

func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.AccessToken
}

func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.RefreshToken
}

func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.data.User == nil {
		return nil
	}
	u := *s.data.User
	return &u
}

// UserKey identifies the user for client-side storage keys.
func (s *Session) UserKey() string {
	if u := s.User(); u != nil && u.ID > 0 {
		return strconv.FormatInt(u.ID, 10)
	}
	if claims, ok := s.claims(); ok && claims.Subject != "" {
		return claims.Subject
	}
	return guestKey
}

// ExpiresAt returns the access token expiry, if the token carries one.
func (s *Session) ExpiresAt() (time.Time, bool) {
	claims, ok := s.claims()
	if !ok || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *Session) Authenticated() bool {
	if s.AccessToken() == "" {
		return false
	}
	if exp, ok := s.ExpiresAt(); ok && !s.now().Before(exp) {
		return false
	}
	return true
}

// claims decodes the token without verifying it. The backend verifies;
// the client only needs expiry and subject.
func (s *Session) claims() (*jwt.RegisteredClaims, bool) {
	token := s.AccessToken()
	if token == "" {
		return nil, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		s.log.Debug("access token is not a jwt", "error", err)
		return nil, false
	}
	return claims, true
}
