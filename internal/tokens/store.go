// Package tokens holds the CSRF and refresh tokens shared by the request
// client and the realtime client.
package tokens

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"maple-party/internal/logging"
	"maple-party/internal/persist"
)

const ContainerName = "tokens"

// Tokens is a snapshot of the current credentials. Empty means absent.
type Tokens struct {
	CSRF    string `json:"csrfToken"`
	Refresh string `json:"refreshToken"`
}

func (t Tokens) Authenticated() bool {
	return t.CSRF != "" && t.Refresh != ""
}

// Update overwrites only the non-nil fields.
type Update struct {
	CSRF    *string
	Refresh *string
}

type Store struct {
	mu        sync.RWMutex
	current   Tokens
	container *persist.Container
	logger    *logging.Logger
}

// New binds the CSRF token to the session tier and the refresh token to the
// local tier, then restores whatever those tiers already hold.
func New(ctx context.Context, session, local persist.Backend, logger *logging.Logger) (*Store, error) {
	if logger == nil {
		panic("tokens.New: logger must not be nil")
	}
	s := &Store{
		container: persist.NewContainer(ContainerName,
			persist.Binding{Backend: session, Pick: []string{"csrfToken"}},
			persist.Binding{Backend: local, Pick: []string{"refreshToken"}},
		),
		logger: logger,
	}
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Store) Set(ctx context.Context, update Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if update.CSRF != nil {
		s.current.CSRF = *update.CSRF
	}
	if update.Refresh != nil {
		s.current.Refresh = *update.Refresh
	}
	return s.persistLocked(ctx)
}

// Replace writes both tokens as one update.
func (s *Store) Replace(ctx context.Context, csrf, refresh string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Tokens{CSRF: csrf, Refresh: refresh}
	return s.persistLocked(ctx)
}

func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Tokens{}
	return s.persistLocked(ctx)
}

// Reload re-reads both tiers. Used at startup and when another process
// rewrites the local tier.
func (s *Store) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.current
	if err := s.container.Restore(ctx, &next); err != nil {
		return err
	}
	if next.Refresh != s.current.Refresh {
		s.logger.Debug("refresh token reloaded", logging.Field("refresh_token", next.Refresh))
	}
	s.current = next
	return nil
}

// RefreshExpiry reports the exp claim when the refresh token is a JWT. The
// signature is not verified, so the result is for display only.
func (s *Store) RefreshExpiry() (time.Time, bool) {
	refresh := strings.TrimSpace(s.Get().Refresh)
	if refresh == "" {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(refresh, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *Store) persistLocked(ctx context.Context) error {
	return s.container.Save(ctx, s.current)
}

func (s *Store) CSRFToken() string {
	return s.Get().CSRF
}
