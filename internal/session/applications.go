package session

import (
	"context"
	"encoding/json"
	"fmt"

	"maple-party/internal/persist"
)

const applicationsContainer = "partyApplications"

// PartyApplication is an application document with the fields the client
// reads. Raw keeps the full server document.
type PartyApplication struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
	Raw    json.RawMessage
}

type applicationsState struct {
	Applications []json.RawMessage `json:"applications"`
}

type Applications struct {
	store *store[applicationsState]
}

func NewApplications(ctx context.Context, local persist.Backend) (*Applications, error) {
	s, err := newStore(ctx, persist.NewContainer(applicationsContainer,
		persist.Binding{Backend: local, Pick: []string{"applications"}},
	), applicationsState{})
	if err != nil {
		return nil, err
	}
	return &Applications{store: s}, nil
}

// AddApplication appends a raw application document.
func (a *Applications) AddApplication(ctx context.Context, application []byte) error {
	if !json.Valid(application) {
		return fmt.Errorf("application is not valid JSON")
	}
	return a.store.mutate(ctx, func(s *applicationsState) bool {
		s.Applications = append(s.Applications, append(json.RawMessage(nil), application...))
		return true
	})
}

func (a *Applications) Clean(ctx context.Context) error {
	return a.store.mutate(ctx, func(s *applicationsState) bool {
		s.Applications = nil
		return true
	})
}

// List decodes the stored applications in arrival order. Documents that no
// longer decode are skipped.
func (a *Applications) List() []PartyApplication {
	var out []PartyApplication
	a.store.view(func(s *applicationsState) {
		out = make([]PartyApplication, 0, len(s.Applications))
		for _, raw := range s.Applications {
			app := PartyApplication{}
			if err := json.Unmarshal(raw, &app); err != nil {
				continue
			}
			app.Raw = append(json.RawMessage(nil), raw...)
			out = append(out, app)
		}
	})
	return out
}
