package session

import (
	"context"

	"maple-party/internal/persist"
)

const activePartyContainer = "partyOwner"

type activePartyState struct {
	IsMyParty       bool   `json:"isMyParty"`
	PartyRecruitID  *int64 `json:"partyRecruitId"`
	HasCreatedParty bool   `json:"hasCreatedParty"`
}

// ActiveParty is the party whose chat is open.
type ActiveParty struct {
	store *store[activePartyState]
}

func NewActiveParty(ctx context.Context, local persist.Backend) (*ActiveParty, error) {
	s, err := newStore(ctx, persist.NewContainer(activePartyContainer,
		persist.Binding{Backend: local, Pick: []string{"isMyParty", "partyRecruitId", "hasCreatedParty"}},
	), activePartyState{})
	if err != nil {
		return nil, err
	}
	return &ActiveParty{store: s}, nil
}

func (p *ActiveParty) PartyRecruitID() (int64, bool) {
	var (
		id int64
		ok bool
	)
	p.store.view(func(s *activePartyState) {
		if s.PartyRecruitID != nil {
			id, ok = *s.PartyRecruitID, true
		}
	})
	return id, ok
}

func (p *ActiveParty) IsMine() bool {
	var mine bool
	p.store.view(func(s *activePartyState) { mine = s.IsMyParty })
	return mine
}

// Enter makes id the active party. Owning it also records that the user has
// created a party.
func (p *ActiveParty) Enter(ctx context.Context, id int64, mine bool) error {
	return p.store.mutate(ctx, func(s *activePartyState) bool {
		s.PartyRecruitID = &id
		s.IsMyParty = mine
		if mine {
			s.HasCreatedParty = true
		}
		return true
	})
}

func (p *ActiveParty) Leave(ctx context.Context) error {
	return p.store.mutate(ctx, func(s *activePartyState) bool {
		s.PartyRecruitID = nil
		s.IsMyParty = false
		return true
	})
}
