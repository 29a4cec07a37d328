package session

import (
	"context"
	"strconv"

	"maple-party/internal/persist"
)

const identityContainer = "auth"

type UserInfo struct {
	Name     *string `json:"name"`
	UniqueID *int64  `json:"uniqueId"`
}

type identityState struct {
	UserInfo   UserInfo `json:"userInfo"`
	IsLoggedIn bool     `json:"isLoggedIn"`
}

type Identity struct {
	store *store[identityState]
}

func NewIdentity(ctx context.Context, local persist.Backend) (*Identity, error) {
	s, err := newStore(ctx, persist.NewContainer(identityContainer,
		persist.Binding{Backend: local, Pick: []string{"userInfo", "isLoggedIn"}},
	), identityState{})
	if err != nil {
		return nil, err
	}
	return &Identity{store: s}, nil
}

func (i *Identity) SignIn(ctx context.Context, name string, uniqueID int64) error {
	return i.store.mutate(ctx, func(s *identityState) bool {
		s.UserInfo = UserInfo{Name: &name, UniqueID: &uniqueID}
		s.IsLoggedIn = true
		return true
	})
}

func (i *Identity) SignOut(ctx context.Context) error {
	return i.store.mutate(ctx, func(s *identityState) bool {
		*s = identityState{}
		return true
	})
}

// Authenticated requires both the login flag and a user id.
func (i *Identity) Authenticated() bool {
	var ok bool
	i.store.view(func(s *identityState) {
		ok = s.IsLoggedIn && s.UserInfo.UniqueID != nil
	})
	return ok
}

// UserID is the unique id as used in broker destinations, or "".
func (i *Identity) UserID() string {
	var id string
	i.store.view(func(s *identityState) {
		if s.UserInfo.UniqueID != nil {
			id = strconv.FormatInt(*s.UserInfo.UniqueID, 10)
		}
	})
	return id
}

func (i *Identity) Name() string {
	var name string
	i.store.view(func(s *identityState) {
		if s.UserInfo.Name != nil {
			name = *s.UserInfo.Name
		}
	})
	return name
}
