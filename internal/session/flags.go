package session

import (
	"context"

	"maple-party/internal/persist"
)

const flagsContainer = "flags"

type flagsState struct {
	// session tier
	HasActiveParty bool `json:"hasActiveParty"`
	// local tier
	IsVisited     bool `json:"isVisited"`
	TermsRead     bool `json:"isRead"`
	SessionActive bool `json:"sessionActive"`
}

type Flags struct {
	store *store[flagsState]
}

func NewFlags(ctx context.Context, sessionTier, local persist.Backend) (*Flags, error) {
	s, err := newStore(ctx, persist.NewContainer(flagsContainer,
		persist.Binding{Backend: sessionTier, Pick: []string{"hasActiveParty"}},
		persist.Binding{Backend: local, Pick: []string{"isVisited", "isRead", "sessionActive"}},
	), flagsState{})
	if err != nil {
		return nil, err
	}
	return &Flags{store: s}, nil
}

func (f *Flags) HasActiveParty() bool {
	var v bool
	f.store.view(func(s *flagsState) { v = s.HasActiveParty })
	return v
}

func (f *Flags) SetActiveParty(ctx context.Context, active bool) error {
	return f.store.mutate(ctx, func(s *flagsState) bool {
		s.HasActiveParty = active
		return true
	})
}

func (f *Flags) TermsRead() bool {
	var v bool
	f.store.view(func(s *flagsState) { v = s.TermsRead })
	return v
}

func (f *Flags) ReadTerms(ctx context.Context) error {
	return f.store.mutate(ctx, func(s *flagsState) bool {
		changed := !s.TermsRead
		s.TermsRead = true
		return changed
	})
}

// MarkVisited reports whether this is the first visit and records it.
func (f *Flags) MarkVisited(ctx context.Context) (bool, error) {
	first := false
	err := f.store.mutate(ctx, func(s *flagsState) bool {
		first = !s.IsVisited
		s.IsVisited = true
		return first
	})
	return first, err
}

// CheckRestart reports whether an earlier run already marked the session
// active, then marks it.
func (f *Flags) CheckRestart(ctx context.Context) (bool, error) {
	restarted := false
	err := f.store.mutate(ctx, func(s *flagsState) bool {
		restarted = s.SessionActive
		s.SessionActive = true
		return !restarted
	})
	return restarted, err
}
