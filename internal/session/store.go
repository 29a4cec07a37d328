// Package session holds the signed-in user's client-side state: identity,
// resume and applied parties, received applications, the active party and
// a few UI flags. Every container persists an explicit allow-list of fields.
package session

import (
	"context"
	"sync"

	"maple-party/internal/persist"
)

type store[T any] struct {
	mu        sync.RWMutex
	state     T
	container *persist.Container
}

func newStore[T any](ctx context.Context, container *persist.Container, initial T) (*store[T], error) {
	s := &store[T]{state: initial, container: container}
	if err := s.reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *store[T]) reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.container.Restore(ctx, &s.state)
}

func (s *store[T]) view(fn func(*T)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

// mutate applies fn and persists the result. fn returning false skips the
// save.
func (s *store[T]) mutate(ctx context.Context, fn func(*T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !fn(&s.state) {
		return nil
	}
	return s.container.Save(ctx, s.state)
}

// Session groups the containers of one signed-in user.
type Session struct {
	Identity     *Identity
	Resume       *Resume
	Applications *Applications
	ActiveParty  *ActiveParty
	Flags        *Flags
}

// Open restores every container from the two tiers.
func Open(ctx context.Context, sessionTier, localTier persist.Backend) (*Session, error) {
	identity, err := NewIdentity(ctx, localTier)
	if err != nil {
		return nil, err
	}
	resume, err := NewResume(ctx, localTier)
	if err != nil {
		return nil, err
	}
	applications, err := NewApplications(ctx, localTier)
	if err != nil {
		return nil, err
	}
	active, err := NewActiveParty(ctx, localTier)
	if err != nil {
		return nil, err
	}
	flags, err := NewFlags(ctx, sessionTier, localTier)
	if err != nil {
		return nil, err
	}
	return &Session{
		Identity:     identity,
		Resume:       resume,
		Applications: applications,
		ActiveParty:  active,
		Flags:        flags,
	}, nil
}

// Reload re-reads the named container after another process changed it.
// Unknown names are ignored.
func (s *Session) Reload(ctx context.Context, container string) error {
	switch container {
	case identityContainer:
		return s.Identity.store.reload(ctx)
	case resumeContainer:
		return s.Resume.store.reload(ctx)
	case applicationsContainer:
		return s.Applications.store.reload(ctx)
	case activePartyContainer:
		return s.ActiveParty.store.reload(ctx)
	case flagsContainer:
		return s.Flags.store.reload(ctx)
	}
	return nil
}
